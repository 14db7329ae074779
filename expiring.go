package reslock

import (
	"context"
	"fmt"
	"time"

	"github.com/ezraisw/reslock/logger"
)

const (
	ExpirationDefault = 6 * time.Second
)

type lockFunc func(ctx context.Context, id string, fn CriticalFunc) error

type expiringReadWriteLocker struct {
	locker     ReadWriteLocker
	expiration time.Duration
	logger     logger.Logger
}

// NewExpiringReadWriteLocker wraps locker so that critical sections fail with
// ErrLockExpired when maintain is not called within expiration of the lock
// being granted or of the previous call.
//
// An expired critical section is not interrupted. It keeps the lock until it
// returns, and the lock is then released through locker as usual.
func NewExpiringReadWriteLocker(locker ReadWriteLocker, expiration time.Duration, logger logger.Logger) ExpiringReadWriteLocker {
	if expiration <= 0 {
		expiration = ExpirationDefault
	}

	return &expiringReadWriteLocker{
		locker:     locker,
		expiration: expiration,
		logger:     logger,
	}
}

func (l expiringReadWriteLocker) WithReadLock(ctx context.Context, id string, fn ExpiringFunc) error {
	return l.run(ctx, id, fn, l.locker.WithReadLock)
}

func (l expiringReadWriteLocker) WithWriteLock(ctx context.Context, id string, fn ExpiringFunc) error {
	return l.run(ctx, id, fn, l.locker.WithWriteLock)
}

func (l expiringReadWriteLocker) run(ctx context.Context, id string, fn ExpiringFunc, with lockFunc) error {
	granted := make(chan struct{})
	done := make(chan error, 1)
	kick := make(chan struct{}, 1)

	maintain := func() {
		select {
		case kick <- struct{}{}:
		default:
		}
	}

	go func() {
		done <- with(ctx, id, func(ctx context.Context) (err error) {
			close(granted)

			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("reslock: critical section on %s panicked: %v", id, r)
				}
			}()

			return fn(ctx, maintain)
		})
	}()

	// Waiting for the lock is not subject to expiration.
	select {
	case err := <-done:
		return err
	case <-granted:
	}

	timer := time.NewTimer(l.expiration)
	defer timer.Stop()

	for {
		select {
		case err := <-done:
			return err
		case <-kick:
			timer.Reset(l.expiration)
		case <-timer.C:
			l.logger.Warn("lock expired", id)
			return newLockError("keep", id, ErrLockExpired)
		}
	}
}
