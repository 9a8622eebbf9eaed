// Package sink writes build artifacts into the output tree.
package sink

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
)

// FS writes artifacts below an output root. Writes whose content already
// matches the file on disk are skipped.
type FS struct {
	fs      *storage.FS
	writes  atomic.Int64
	deletes atomic.Int64
}

// New creates the output root if needed and returns a sink for it.
func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("sink: create output dir: %w", err)
	}
	fs, err := storage.NewFS(root)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}
	return &FS{fs: fs}, nil
}

// Root returns the absolute output directory.
func (s *FS) Root() string {
	return s.fs.Root()
}

// Write stores data at path and reports whether the file changed. Failures
// are *apperr.FileError of kind apperr.ErrArtifactWrite.
func (s *FS) Write(path string, data []byte) (bool, error) {
	if cur, err := s.fs.Read(path); err == nil && bytes.Equal(cur, data) {
		return false, nil
	}
	if err := s.fs.Write(path, data); err != nil {
		return false, apperr.NewFileError(apperr.ErrArtifactWrite, path, err)
	}
	s.writes.Add(1)
	return true, nil
}

// Delete removes the artifact at path and reports whether a file was
// removed. A missing file is not an error. Failures are *apperr.FileError
// of kind apperr.ErrArtifactDelete.
func (s *FS) Delete(path string) (bool, error) {
	err := s.fs.Delete(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, apperr.NewFileError(apperr.ErrArtifactDelete, path, err)
	}
	s.deletes.Add(1)
	return true, nil
}

// Writes returns the number of files written since creation.
func (s *FS) Writes() int64 {
	return s.writes.Load()
}

// Deletes returns the number of files removed since creation.
func (s *FS) Deletes() int64 {
	return s.deletes.Load()
}
