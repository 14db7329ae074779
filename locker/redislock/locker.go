// Package redislock provides an exclusive locker backed by a single redis
// node, for deployments that do not run a redis quorum.
package redislock

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/locker/internal/lease"
	"github.com/ezraisw/reslock/logger"
)

const (
	ExpiryDefault     = 10 * time.Second
	TriesDefault      = 32
	RetryDelayDefault = 200 * time.Millisecond
)

type Options struct {
	// Lease TTL of every lock. Leases are renewed at half this interval.
	Expiry time.Duration

	// Maximum attempts at obtaining the lock.
	Tries int

	// Delay between attempts.
	RetryDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.Expiry <= 0 {
		o.Expiry = ExpiryDefault
	}
	if o.Tries <= 0 {
		o.Tries = TriesDefault
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = RetryDelayDefault
	}
	return o
}

type Locker struct {
	lc      *redislock.Client
	opts    Options
	records *lease.Registry[*redislock.Lock]
	logger  logger.Logger
}

func NewLocker(client redislock.RedisClient, opts Options, logger logger.Logger) *Locker {
	return &Locker{
		lc:      redislock.New(client),
		opts:    opts.withDefaults(),
		records: lease.NewRegistry[*redislock.Lock](logger),
		logger:  logger,
	}
}

func (l *Locker) Acquire(ctx context.Context, id string) error {
	lock, err := l.lc.Obtain(ctx, id, l.opts.Expiry, &redislock.Options{
		// Obtain counts retries, not attempts.
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.opts.RetryDelay), l.opts.Tries-1),
	})
	if err != nil {
		return locker.Wrap(locker.ErrLockAcquisitionFailed, id, err)
	}

	err = l.records.Hold(id, lock, l.opts.Expiry/2, func(ctx context.Context) error {
		return lock.Refresh(ctx, l.opts.Expiry, nil)
	})
	if err != nil {
		if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
			l.logger.Error("failed to release duplicate", id, rerr)
		}
		return err
	}

	l.logger.Debug("lock acquired", id)
	return nil
}

func (l *Locker) Release(ctx context.Context, id string) error {
	lock, err := l.records.Take(id)
	if err != nil {
		return err
	}

	if err := lock.Release(ctx); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// The lease expired or was taken over before release.
			return locker.Wrap(locker.ErrLockNotHeld, id, err)
		}
		return locker.Wrap(locker.ErrFailedUnlock, id, err)
	}

	l.logger.Debug("lock released", id)
	return nil
}

func (l *Locker) Held() int {
	return l.records.Len()
}

// Close stops renewing every held lock. Held leases are left to expire.
func (l *Locker) Close() error {
	l.records.Close()
	return nil
}
