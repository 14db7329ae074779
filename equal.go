package reslock

import (
	"context"
	"errors"

	"github.com/ezraisw/reslock/locker"
)

type equalReadWriteLocker struct {
	locker locker.Locker
}

// NewEqualReadWriteLocker creates a ReadWriteLocker that treats reads as
// writes. Every critical section on an identifier runs alone.
func NewEqualReadWriteLocker(locker locker.Locker) ReadWriteLocker {
	return &equalReadWriteLocker{
		locker: locker,
	}
}

func (l equalReadWriteLocker) WithReadLock(ctx context.Context, id string, fn CriticalFunc) error {
	return withLock(ctx, l.locker, id, fn)
}

func (l equalReadWriteLocker) WithWriteLock(ctx context.Context, id string, fn CriticalFunc) error {
	return withLock(ctx, l.locker, id, fn)
}

func withLock(ctx context.Context, l locker.Locker, id string, fn CriticalFunc) (err error) {
	if err := l.Acquire(ctx, id); err != nil {
		return newLockError("acquire", id, err)
	}
	defer func() {
		// Release even if the caller gave up in the meantime.
		if rerr := l.Release(context.WithoutCancel(ctx), id); rerr != nil {
			err = errors.Join(err, newLockError("release", id, rerr))
		}
	}()

	return fn(ctx)
}
