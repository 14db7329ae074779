package redsync

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"time"

	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/locker/internal/lease"
	"github.com/ezraisw/reslock/logger"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis"
)

const (
	ExpiryDefault      = 10 * time.Second
	TriesDefault       = 32
	RetryDelayDefault  = 200 * time.Millisecond
	RetryJitterDefault = 200 * time.Millisecond
	DriftFactorDefault = 0.01
)

type Options struct {
	// Lease TTL of every lock. Leases are renewed at half this interval.
	Expiry time.Duration

	// Maximum attempts at reaching a quorum.
	Tries int

	// Fixed delay between attempts.
	RetryDelay time.Duration

	// Upper bound of the random delay added on top of RetryDelay.
	RetryJitter time.Duration

	// Clock drift compensation, as a fraction of Expiry.
	DriftFactor float64

	// Codec of the owner record stored as lock value.
	Codec OwnerCodec

	// Driver used by NewLockerFromNodes.
	Driver Driver
}

func (o Options) withDefaults() Options {
	if o.Expiry <= 0 {
		o.Expiry = ExpiryDefault
	}
	if o.Tries <= 0 {
		o.Tries = TriesDefault
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	} else if o.RetryDelay == 0 {
		o.RetryDelay = RetryDelayDefault
	}
	if o.RetryJitter < 0 {
		o.RetryJitter = 0
	}
	if o.DriftFactor <= 0 {
		o.DriftFactor = DriftFactorDefault
	}
	if o.Codec == nil {
		o.Codec = NewMsgpackCodec()
	}
	return o
}

// Locker is a distributed exclusive locker reaching a quorum over independent
// redis nodes. Held locks are renewed until released.
type Locker struct {
	rs      *redsync.Redsync
	pools   []redis.Pool
	closers []io.Closer
	opts    Options
	records *lease.Registry[*redsync.Mutex]
	logger  logger.Logger
}

func NewLocker(pools []redis.Pool, opts Options, logger logger.Logger) *Locker {
	return &Locker{
		rs:      redsync.New(pools...),
		pools:   pools,
		opts:    opts.withDefaults(),
		records: lease.NewRegistry[*redsync.Mutex](logger),
		logger:  logger,
	}
}

// NewLockerFromNodes connects to every host:port node. Clients are closed by Close.
func NewLockerFromNodes(nodes []string, opts Options, logger logger.Logger) (*Locker, error) {
	pools, closers, err := NewPools(opts.Driver, nodes)
	if err != nil {
		return nil, err
	}

	l := NewLocker(pools, opts, logger)
	l.closers = closers
	return l, nil
}

func (l *Locker) Acquire(ctx context.Context, id string) error {
	mutex := l.rs.NewMutex(id,
		redsync.WithExpiry(l.opts.Expiry),
		redsync.WithTries(l.opts.Tries),
		redsync.WithRetryDelayFunc(l.retryDelay),
		redsync.WithDriftFactor(l.opts.DriftFactor),
		redsync.WithGenValueFunc(l.genValue),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return locker.Wrap(locker.ErrLockAcquisitionFailed, id, err)
	}

	err := l.records.Hold(id, mutex, l.opts.Expiry/2, func(ctx context.Context) error {
		return extend(ctx, mutex)
	})
	if err != nil {
		// The quorum was reached by this mutex, so its value must not linger.
		if _, uerr := mutex.UnlockContext(context.WithoutCancel(ctx)); uerr != nil {
			l.logger.Error("failed to unlock duplicate", id, uerr)
		}
		return err
	}

	l.logger.Debug("lock acquired", id)
	return nil
}

func (l *Locker) Release(ctx context.Context, id string) error {
	mutex, err := l.records.Take(id)
	if err != nil {
		return err
	}

	ok, err := mutex.UnlockContext(ctx)
	if err != nil || !ok {
		return locker.Wrap(locker.ErrFailedUnlock, id, err)
	}

	l.logger.Debug("lock released", id)
	return nil
}

// Inspect returns the owner of id as seen by the first node holding it,
// or nil if no node does.
func (l *Locker) Inspect(ctx context.Context, id string) (*Owner, error) {
	var errs error
	for _, pool := range l.pools {
		value, err := get(ctx, pool, id)
		if err != nil {
			errs = errors.Join(errs, err)
			continue
		}
		if value == "" {
			continue
		}
		return l.opts.Codec.Decode(value)
	}

	if errs != nil {
		return nil, errs
	}
	return nil, nil
}

// Held returns the amount of locks owned by this process.
func (l *Locker) Held() int {
	return l.records.Len()
}

// Close stops renewing every held lock and closes owned clients.
// Held leases are left to expire.
func (l *Locker) Close() error {
	l.records.Close()

	var errs error
	for _, c := range l.closers {
		errs = errors.Join(errs, c.Close())
	}
	return errs
}

func (l *Locker) genValue() (string, error) {
	return l.opts.Codec.Encode(newOwner())
}

func (l *Locker) retryDelay(int) time.Duration {
	if l.opts.RetryJitter <= 0 {
		return l.opts.RetryDelay
	}
	return l.opts.RetryDelay + time.Duration(rand.Int63n(int64(l.opts.RetryJitter)))
}

func extend(ctx context.Context, mutex *redsync.Mutex) error {
	ok, err := mutex.ExtendContext(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return redsync.ErrExtendFailed
	}
	return nil
}

func get(ctx context.Context, pool redis.Pool, id string) (string, error) {
	conn, err := pool.Get(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	return conn.Get(id)
}
