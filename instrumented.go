package reslock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
)

const (
	modeRead  = "read"
	modeWrite = "write"
)

type lockMetrics struct {
	wait     *metrics.Histogram
	hold     *metrics.Histogram
	active   *metrics.Counter
	acquired *metrics.Counter
	expired  *metrics.Counter
	failed   *metrics.Counter
}

func newLockMetrics(set *metrics.Set, name string, mode string) lockMetrics {
	metric := func(m string) string {
		return fmt.Sprintf(`reslock_%s{locker=%q,mode=%q}`, m, name, mode)
	}

	return lockMetrics{
		wait:     set.GetOrCreateHistogram(metric("wait_seconds")),
		hold:     set.GetOrCreateHistogram(metric("hold_seconds")),
		active:   set.GetOrCreateCounter(metric("active")),
		acquired: set.GetOrCreateCounter(metric("acquired_total")),
		expired:  set.GetOrCreateCounter(metric("expired_total")),
		failed:   set.GetOrCreateCounter(metric("failed_total")),
	}
}

type instrumentedLocker struct {
	locker ExpiringReadWriteLocker
	read   lockMetrics
	write  lockMetrics
}

// NewInstrumentedLocker records lock wait and hold times, active critical
// sections and failures of locker in set, labelled with name.
func NewInstrumentedLocker(locker ExpiringReadWriteLocker, set *metrics.Set, name string) ExpiringReadWriteLocker {
	return &instrumentedLocker{
		locker: locker,
		read:   newLockMetrics(set, name, modeRead),
		write:  newLockMetrics(set, name, modeWrite),
	}
}

func (l instrumentedLocker) WithReadLock(ctx context.Context, id string, fn ExpiringFunc) error {
	return l.observe(l.read, fn, func(fn ExpiringFunc) error {
		return l.locker.WithReadLock(ctx, id, fn)
	})
}

func (l instrumentedLocker) WithWriteLock(ctx context.Context, id string, fn ExpiringFunc) error {
	return l.observe(l.write, fn, func(fn ExpiringFunc) error {
		return l.locker.WithWriteLock(ctx, id, fn)
	})
}

func (l instrumentedLocker) observe(m lockMetrics, fn ExpiringFunc, with func(ExpiringFunc) error) error {
	start := time.Now()

	err := with(func(ctx context.Context, maintain MaintainFunc) error {
		granted := time.Now()
		m.wait.Update(granted.Sub(start).Seconds())
		m.acquired.Inc()
		m.active.Inc()
		defer func() {
			m.active.Dec()
			m.hold.Update(time.Since(granted).Seconds())
		}()

		return fn(ctx, maintain)
	})

	if errors.Is(err, ErrLockExpired) {
		m.expired.Inc()
	} else if err != nil {
		m.failed.Inc()
	}
	return err
}
