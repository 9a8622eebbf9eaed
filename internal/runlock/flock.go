//go:build darwin || linux

package runlock

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/starford/folio/internal/apperr"
)

// acquire holds an exclusive flock on path. The kernel drops it when the
// process exits, so a crashed run never leaves a stale lock behind.
func acquire(path string) (func() error, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlock: open %s: %w", path, err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %s", apperr.ErrLocked, path)
		}
		return nil, fmt.Errorf("runlock: flock %s: %w", path, err)
	}
	return func() error {
		if err := unix.Flock(fd, unix.LOCK_UN); err != nil {
			unix.Close(fd)
			return fmt.Errorf("runlock: unlock %s: %w", path, err)
		}
		return unix.Close(fd)
	}, nil
}
