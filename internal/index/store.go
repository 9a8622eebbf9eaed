package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/storage"
)

// Store persists index snapshots. Load returns an empty index when no
// snapshot exists yet and an error wrapping apperr.ErrIndexLoad when one
// exists but cannot be trusted. Save replaces the snapshot as a whole.
type Store interface {
	Load(ctx context.Context) (*Index, error)
	Save(ctx context.Context, idx *Index) error
	Close() error
}

// Verify implementations satisfy Store at compile time.
var (
	_ Store = (*JSONStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

// JSONStore keeps the snapshot in a single JSON file replaced atomically.
type JSONStore struct {
	fs   *storage.FS
	name string
}

// NewJSONStore creates a store for the snapshot file at path, creating its
// directory if needed.
func NewJSONStore(path string) (*JSONStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create snapshot dir: %w", err)
	}
	fs, err := storage.NewFS(dir)
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return &JSONStore{fs: fs, name: filepath.Base(path)}, nil
}

// Load reads and decodes the snapshot file.
func (s *JSONStore) Load(_ context.Context) (*Index, error) {
	data, err := s.fs.Read(s.name)
	if errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperr.ErrIndexLoad, err)
	}
	idx, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperr.ErrIndexLoad, s.name, err)
	}
	return idx, nil
}

// Save encodes idx and atomically replaces the snapshot file.
func (s *JSONStore) Save(_ context.Context, idx *Index) error {
	data, err := Encode(idx)
	if err != nil {
		return err
	}
	if err := s.fs.Write(s.name, data); err != nil {
		return fmt.Errorf("index: save snapshot: %w", err)
	}
	return nil
}

// Close is a no-op for the file store.
func (s *JSONStore) Close() error {
	return nil
}
