// Package apperr defines the error kinds shared across the build pipeline.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrLoad marks an unreadable or unparsable source file. Isolated to that file.
	ErrLoad = errors.New("load error")

	// ErrDateResolution marks unusable date metadata. Recovered with the epoch date.
	ErrDateResolution = errors.New("date resolution failure")

	// ErrIndexLoad marks a corrupt or unreadable snapshot. Recovered as an empty index.
	ErrIndexLoad = errors.New("index load error")

	// ErrArtifactWrite marks an output filesystem failure. Fatal for the run.
	ErrArtifactWrite = errors.New("artifact write error")

	// ErrArtifactDelete marks a failed artifact removal. Logged, never fatal.
	ErrArtifactDelete = errors.New("artifact delete error")

	// ErrLocked is returned when another run holds the output lock.
	ErrLocked = errors.New("build already running")

	// ErrNotFound is returned for lookups of unknown posts or tags.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a post whose path or id is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict is returned when an update carries a stale checksum.
	ErrConflict = errors.New("conflict")

	// ErrInvalid marks a rejected request: bad path, bad content.
	ErrInvalid = errors.New("invalid request")
)

// FileError ties an error kind to the file that caused it.
type FileError struct {
	Kind error
	Path string
	Err  error
}

// NewFileError wraps err as kind for path.
func NewFileError(kind error, path string, err error) *FileError {
	return &FileError{Kind: kind, Path: path, Err: err}
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%v: %s: %v", e.Kind, e.Path, e.Err)
}

// Is matches the error kind so callers can use errors.Is(err, apperr.ErrLoad).
func (e *FileError) Is(target error) bool {
	return target == e.Kind
}

func (e *FileError) Unwrap() error {
	return e.Err
}
