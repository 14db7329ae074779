package reslock

import (
	"context"
	"errors"

	"github.com/ezraisw/reslock/locker"
)

// ReaderCounter keeps the number of active readers per identifier.
//
// Counts are only mutated while the counter lock of the identifier is held.
type ReaderCounter interface {
	// CounterID derives the identifier guarding the count of id.
	CounterID(id string) string

	// Increment adds a reader to id and returns the new count.
	Increment(ctx context.Context, id string) (int, error)

	// Decrement removes a reader from id and returns the new count.
	Decrement(ctx context.Context, id string) (int, error)
}

// CountingReadWriteLocker lets any number of readers share a resource while
// writers get it alone.
//
// The resource lock is taken by the first reader and given back by the last
// one. New readers pile on as long as one reader is active, even when a
// writer is already waiting, so writers can starve under constant reads.
type CountingReadWriteLocker struct {
	resource      locker.Locker
	counterLocker locker.Locker
	counter       ReaderCounter
}

func NewCountingReadWriteLocker(resource locker.Locker, counterLocker locker.Locker, counter ReaderCounter) *CountingReadWriteLocker {
	return &CountingReadWriteLocker{
		resource:      resource,
		counterLocker: counterLocker,
		counter:       counter,
	}
}

func (l *CountingReadWriteLocker) WithWriteLock(ctx context.Context, id string, fn CriticalFunc) error {
	return withLock(ctx, l.resource, id, fn)
}

func (l *CountingReadWriteLocker) WithReadLock(ctx context.Context, id string, fn CriticalFunc) (err error) {
	if err := l.acquireReadLock(ctx, id); err != nil {
		return err
	}
	defer func() {
		if rerr := l.releaseReadLock(context.WithoutCancel(ctx), id); rerr != nil {
			err = errors.Join(err, rerr)
		}
	}()

	return fn(ctx)
}

func (l *CountingReadWriteLocker) acquireReadLock(ctx context.Context, id string) error {
	return withLock(ctx, l.counterLocker, l.counter.CounterID(id), func(ctx context.Context) error {
		count, err := l.counter.Increment(ctx, id)
		if err != nil {
			return newLockError("count", id, err)
		}
		if count != 1 {
			return nil
		}

		// First reader takes the resource for every reader that follows.
		if err := l.resource.Acquire(ctx, id); err != nil {
			if _, derr := l.counter.Decrement(ctx, id); derr != nil {
				err = errors.Join(err, derr)
			}
			return newLockError("acquire", id, err)
		}
		return nil
	})
}

func (l *CountingReadWriteLocker) releaseReadLock(ctx context.Context, id string) error {
	return withLock(ctx, l.counterLocker, l.counter.CounterID(id), func(ctx context.Context) error {
		count, err := l.counter.Decrement(ctx, id)
		if err != nil {
			return newLockError("count", id, err)
		}
		if count != 0 {
			return nil
		}

		// Last reader gives the resource back.
		if err := l.resource.Release(ctx, id); err != nil {
			return newLockError("release", id, err)
		}
		return nil
	})
}
