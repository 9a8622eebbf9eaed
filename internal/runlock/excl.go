//go:build !(darwin || linux)

package runlock

import (
	"errors"
	"fmt"
	"os"

	"github.com/starford/folio/internal/apperr"
)

// acquire creates path exclusively. A run that crashes leaves the file
// behind and it has to be removed by hand.
func acquire(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("%w: %s", apperr.ErrLocked, path)
	}
	if err != nil {
		return nil, fmt.Errorf("runlock: create %s: %w", path, err)
	}
	f.Close()
	return func() error {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("runlock: remove %s: %w", path, err)
		}
		return nil
	}, nil
}
