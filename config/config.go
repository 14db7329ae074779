// Package config assembles a locker stack from configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/ezraisw/reslock"
	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/locker/memory"
	"github.com/ezraisw/reslock/locker/redislock"
	"github.com/ezraisw/reslock/locker/redsync"
	"github.com/ezraisw/reslock/logger"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

const (
	BackendMemory    = "memory"
	BackendRedsync   = "redsync"
	BackendRedislock = "redislock"
	BackendNoop      = "noop"

	ReadersCounting = "counting"
	ReadersEqual    = "equal"
)

var ErrInvalidConfig = errors.New("reslock: invalid config")

type Config struct {
	// One of memory, redsync, redislock or noop.
	Backend string `mapstructure:"backend"`

	// Must be set for in-process backends: they give no guarantees across processes.
	SingleProcess bool `mapstructure:"single_process"`

	// How readers are handled, counting or equal.
	// Defaults to counting for memory and equal for network backends.
	Readers string `mapstructure:"readers"`

	// host:port of every lock node.
	Nodes []string `mapstructure:"nodes"`

	// Client used by the redsync backend, goredis or redigo.
	Driver string `mapstructure:"driver"`

	// Time a critical section may go without calling maintain.
	Expiration time.Duration `mapstructure:"expiration"`

	Quorum QuorumConfig `mapstructure:"quorum"`

	// Metrics are recorded when set.
	Metrics *metrics.Set `mapstructure:"-"`
}

type QuorumConfig struct {
	Expiry      time.Duration `mapstructure:"expiry"`
	Tries       int           `mapstructure:"tries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	RetryJitter time.Duration `mapstructure:"retry_jitter"`
	DriftFactor float64       `mapstructure:"drift_factor"`
}

// SetDefaults registers the default values of every key in v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("backend", BackendMemory)
	v.SetDefault("single_process", false)
	v.SetDefault("driver", string(redsync.DriverGoRedis))
	v.SetDefault("expiration", reslock.ExpirationDefault)
	v.SetDefault("quorum.expiry", redsync.ExpiryDefault)
	v.SetDefault("quorum.tries", redsync.TriesDefault)
	v.SetDefault("quorum.retry_delay", redsync.RetryDelayDefault)
	v.SetDefault("quorum.retry_jitter", redsync.RetryJitterDefault)
	v.SetDefault("quorum.drift_factor", redsync.DriftFactorDefault)
}

func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}

// Stack is an assembled locker with the resources it owns.
type Stack struct {
	Locker reslock.ExpiringReadWriteLocker

	// Nil for the noop backend.
	Exclusive locker.Locker

	closers []io.Closer
}

func (s *Stack) Close() error {
	var errs error
	for _, c := range s.closers {
		errs = errors.Join(errs, c.Close())
	}
	return errs
}

func New(cfg Config, logger logger.Logger) (*Stack, error) {
	if cfg.Backend == BackendNoop {
		return instrument(cfg, &Stack{Locker: reslock.NewNoopLocker(logger)}), nil
	}

	stack := &Stack{}
	readers := cfg.Readers

	switch cfg.Backend {
	case BackendMemory, "":
		if !cfg.SingleProcess {
			return nil, fmt.Errorf("%w: the memory backend requires single_process", ErrInvalidConfig)
		}
		stack.Exclusive = memory.NewLocker()
		if readers == "" {
			readers = ReadersCounting
		}

	case BackendRedsync:
		l, err := redsync.NewLockerFromNodes(cfg.Nodes, redsync.Options{
			Expiry:      cfg.Quorum.Expiry,
			Tries:       cfg.Quorum.Tries,
			RetryDelay:  cfg.Quorum.RetryDelay,
			RetryJitter: cfg.Quorum.RetryJitter,
			DriftFactor: cfg.Quorum.DriftFactor,
			Driver:      redsync.Driver(cfg.Driver),
		}, logger)
		if err != nil {
			return nil, err
		}
		stack.Exclusive = l
		stack.closers = append(stack.closers, l)

	case BackendRedislock:
		if len(cfg.Nodes) != 1 {
			return nil, fmt.Errorf("%w: the redislock backend takes exactly one node", ErrInvalidConfig)
		}
		addr, err := redsync.ParseNode(cfg.Nodes[0])
		if err != nil {
			return nil, err
		}

		client := goredis.NewClient(&goredis.Options{Addr: addr})
		l := redislock.NewLocker(client, redislock.Options{
			Expiry:     cfg.Quorum.Expiry,
			Tries:      cfg.Quorum.Tries,
			RetryDelay: cfg.Quorum.RetryDelay,
		}, logger)
		stack.Exclusive = l
		stack.closers = append(stack.closers, l, client)

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
	}

	if readers == "" {
		readers = ReadersEqual
	}

	var rw reslock.ReadWriteLocker
	switch readers {
	case ReadersCounting:
		rw = reslock.NewMemoryReadWriteLocker(stack.Exclusive)
	case ReadersEqual:
		rw = reslock.NewEqualReadWriteLocker(stack.Exclusive)
	default:
		stack.Close()
		return nil, fmt.Errorf("%w: unknown readers %q", ErrInvalidConfig, readers)
	}

	stack.Locker = reslock.NewExpiringReadWriteLocker(rw, cfg.Expiration, logger)
	return instrument(cfg, stack), nil
}

func instrument(cfg Config, stack *Stack) *Stack {
	if cfg.Metrics != nil {
		stack.Locker = reslock.NewInstrumentedLocker(stack.Locker, cfg.Metrics, cfg.Backend)
	}
	return stack
}
