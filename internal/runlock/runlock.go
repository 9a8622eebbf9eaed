// Package runlock keeps two builds from working on the same output and
// index at once.
package runlock

import (
	"fmt"
	"os"
	"path/filepath"
)

// Lock is a held run lock. Release it when the run ends.
type Lock struct {
	path    string
	release func() error
}

// Acquire takes the lock file at path without blocking. It returns an error
// wrapping apperr.ErrLocked when another run holds it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("runlock: create lock dir: %w", err)
	}
	release, err := acquire(path)
	if err != nil {
		return nil, err
	}
	return &Lock{path: path, release: release}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release gives up the lock. Calling it more than once is a no-op.
func (l *Lock) Release() error {
	if l == nil || l.release == nil {
		return nil
	}
	err := l.release()
	l.release = nil
	return err
}
