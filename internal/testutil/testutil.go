// Package testutil provides shared test helpers for source trees and index stores.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/folio/internal/index"
	"github.com/starford/folio/internal/models"
	"github.com/starford/folio/internal/storage"
)

// TestStore creates a JSON index store in a temporary directory.
func TestStore(t *testing.T) (*index.JSONStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state", "index.json")
	store, err := index.NewJSONStore(path)
	if err != nil {
		t.Fatal(err)
	}
	return store, path
}

// TestSources creates a temporary source directory with a storage provider.
func TestSources(t *testing.T) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// WriteSource writes a source document below dir and sets its modification
// time.
func WriteSource(t *testing.T, dir, name, content string, mtime time.Time) models.SourceFile {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	return models.SourceFile{Path: name, ModTime: mtime}
}

// Logger returns a logger that drops everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
