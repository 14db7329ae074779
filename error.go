package reslock

import (
	"errors"
	"fmt"

	"github.com/ezraisw/reslock/locker"
)

var (
	ErrLockNotHeld           = locker.ErrLockNotHeld
	ErrLockAcquisitionFailed = locker.ErrLockAcquisitionFailed
	ErrDuplicateLock         = locker.ErrDuplicateLock
	ErrLockExpired           = errors.New("reslock: lock expired")
)

type lockError struct {
	category    string
	id          string
	previousErr error
}

func newLockError(category string, id string, previousErr error) *lockError {
	return &lockError{
		category:    category,
		id:          id,
		previousErr: previousErr,
	}
}

func (e lockError) Error() string {
	return fmt.Sprintf("error while attempting to %s %s (%s)", e.category, e.id, e.previousErr.Error())
}

func (e lockError) Unwrap() error {
	return e.previousErr
}
