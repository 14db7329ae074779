package redsync

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/ezraisw/reslock/locker"
	rsredis "github.com/go-redsync/redsync/v4/redis"
	rsgoredis "github.com/go-redsync/redsync/v4/redis/goredis/v9"
	rsredigo "github.com/go-redsync/redsync/v4/redis/redigo"
	"github.com/gomodule/redigo/redis"
	goredis "github.com/redis/go-redis/v9"
)

type Driver string

const (
	DriverGoRedis Driver = "goredis"
	DriverRedigo  Driver = "redigo"
)

const redigoIdleTimeout = 4 * time.Minute

// ParseNode validates a host:port node specification.
func ParseNode(node string) (string, error) {
	host, port, err := net.SplitHostPort(node)
	if err != nil {
		return "", locker.Wrap(locker.ErrLockAcquisitionFailed, node, err)
	}

	p, err := strconv.ParseUint(port, 10, 16)
	if err != nil || p == 0 {
		return "", locker.Wrap(locker.ErrLockAcquisitionFailed, node, err)
	}

	return net.JoinHostPort(host, port), nil
}

// NewPools creates one pool per node using the given driver.
// The returned closers belong to the caller.
func NewPools(driver Driver, nodes []string) ([]rsredis.Pool, []io.Closer, error) {
	addrs := make([]string, 0, len(nodes))
	for _, node := range nodes {
		addr, err := ParseNode(node)
		if err != nil {
			return nil, nil, err
		}
		addrs = append(addrs, addr)
	}

	if len(addrs) == 0 {
		return nil, nil, locker.Wrap(locker.ErrLockAcquisitionFailed, "no nodes configured", nil)
	}

	pools := make([]rsredis.Pool, 0, len(addrs))
	closers := make([]io.Closer, 0, len(addrs))

	switch driver {
	case DriverRedigo:
		for _, addr := range addrs {
			pool := newRedigoPool(addr)
			pools = append(pools, rsredigo.NewPool(pool))
			closers = append(closers, pool)
		}
	case DriverGoRedis, "":
		for _, addr := range addrs {
			client := goredis.NewClient(&goredis.Options{Addr: addr})
			pools = append(pools, rsgoredis.NewPool(client))
			closers = append(closers, client)
		}
	default:
		return nil, nil, locker.Wrap(locker.ErrLockAcquisitionFailed, "unknown driver "+string(driver), nil)
	}

	return pools, closers, nil
}

func newRedigoPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     3,
		IdleTimeout: redigoIdleTimeout,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}
}
