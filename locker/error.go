package locker

import (
	"errors"
	"fmt"
)

var (
	ErrLockNotHeld           = errors.New("reslock: lock not held")
	ErrLockAcquisitionFailed = errors.New("reslock: lock acquisition failed")
	ErrDuplicateLock         = errors.New("reslock: duplicate lock")
	ErrFailedUnlock          = errors.New("reslock: failed unlock")
)

// Wrap annotates a sentinel error with the identifier and an optional cause.
func Wrap(sentinel error, id string, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return fmt.Errorf("%w: %s: %w", sentinel, id, cause)
}
