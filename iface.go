package reslock

import (
	"context"
)

type (
	// CriticalFunc is executed while a lock is held.
	CriticalFunc func(ctx context.Context) error

	// MaintainFunc signals that a critical section is still making progress.
	MaintainFunc func()

	// ExpiringFunc is a critical section that has to call maintain periodically.
	ExpiringFunc func(ctx context.Context, maintain MaintainFunc) error

	ReadWriteLocker interface {
		// Run fn with shared access to id.
		// The lock is released on every exit path of fn.
		WithReadLock(ctx context.Context, id string, fn CriticalFunc) error

		// Run fn with exclusive access to id.
		// The lock is released on every exit path of fn.
		WithWriteLock(ctx context.Context, id string, fn CriticalFunc) error
	}

	// ExpiringReadWriteLocker is a ReadWriteLocker whose critical sections
	// fail with ErrLockExpired when they stop calling maintain.
	ExpiringReadWriteLocker interface {
		WithReadLock(ctx context.Context, id string, fn ExpiringFunc) error
		WithWriteLock(ctx context.Context, id string, fn ExpiringFunc) error
	}
)

// ReadLocked runs fn under a read lock and returns its value.
func ReadLocked[T any](ctx context.Context, l ReadWriteLocker, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := l.WithReadLock(ctx, id, func(ctx context.Context) error {
		var err error
		value, err = fn(ctx)
		return err
	})
	return value, err
}

// WriteLocked runs fn under a write lock and returns its value.
func WriteLocked[T any](ctx context.Context, l ReadWriteLocker, id string, fn func(ctx context.Context) (T, error)) (T, error) {
	var value T
	err := l.WithWriteLock(ctx, id, func(ctx context.Context) error {
		var err error
		value, err = fn(ctx)
		return err
	})
	return value, err
}
