// Package lease keeps track of locally owned network locks and renews their
// leases in the background until they are released.
package lease

import (
	"context"
	"time"

	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

type RenewFunc func(ctx context.Context) error

type record[H any] struct {
	handle H
	cancel context.CancelFunc
	done   chan struct{}
}

// Registry holds at most one record per identifier.
type Registry[H any] struct {
	records *xsync.MapOf[string, *record[H]]
	logger  logger.Logger
}

func NewRegistry[H any](logger logger.Logger) *Registry[H] {
	return &Registry[H]{
		records: xsync.NewMapOf[string, *record[H]](),
		logger:  logger,
	}
}

// Hold records the handle for id and calls renew every interval until the
// record is taken. A failed renewal drops the record.
func (r *Registry[H]) Hold(id string, handle H, interval time.Duration, renew RenewFunc) error {
	ctx, cancel := context.WithCancel(context.Background())
	rec := &record[H]{
		handle: handle,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if _, loaded := r.records.LoadOrStore(id, rec); loaded {
		cancel()
		return locker.Wrap(locker.ErrDuplicateLock, id, nil)
	}

	go r.renew(ctx, id, rec, interval, renew)
	return nil
}

// Take removes the record for id and stops its renewal.
func (r *Registry[H]) Take(id string) (H, error) {
	rec, ok := r.records.LoadAndDelete(id)
	if !ok {
		var zero H
		return zero, locker.Wrap(locker.ErrLockNotHeld, id, nil)
	}

	rec.cancel()
	<-rec.done
	return rec.handle, nil
}

func (r *Registry[H]) Len() int {
	return r.records.Size()
}

// Close stops every renewal without releasing anything.
// Leases expire on their own afterwards.
func (r *Registry[H]) Close() {
	r.records.Range(func(id string, rec *record[H]) bool {
		r.records.Delete(id)
		rec.cancel()
		<-rec.done
		return true
	})
}

func (r *Registry[H]) renew(ctx context.Context, id string, rec *record[H], interval time.Duration, renew RenewFunc) {
	defer close(rec.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := renew(ctx)
		if err == nil {
			r.logger.Debug("lease renewed", id)
			continue
		}

		if ctx.Err() != nil {
			// Taken while renewing.
			return
		}

		r.logger.Error("lease renewal failed, lock lost", id, err)
		r.records.Compute(id, func(old *record[H], loaded bool) (*record[H], bool) {
			return old, !loaded || old == rec
		})
		return
	}
}
