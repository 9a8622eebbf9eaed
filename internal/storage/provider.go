// Package storage defines the file-system abstraction for source and output trees.
package storage

import "github.com/starford/folio/internal/models"

// Provider is the interface for file operations relative to a root directory.
type Provider interface {
	// List returns every .md file under dir (relative to root) in lexical order.
	List(dir string) ([]models.SourceFile, error)
	// Read returns the raw bytes of the file at path (relative to root).
	Read(path string) ([]byte, error)
	// Write atomically writes content to path (relative to root).
	Write(path string, content []byte) error
	// Delete removes the file at path (relative to root).
	Delete(path string) error
}

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)
