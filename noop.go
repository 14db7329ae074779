package reslock

import (
	"context"

	"github.com/ezraisw/reslock/logger"
)

type noopLocker struct {
}

// NewNoopLocker creates a locker that runs every critical section right away
// without any exclusion. Only use it when nothing else writes concurrently.
func NewNoopLocker(logger logger.Logger) ExpiringReadWriteLocker {
	logger.Warn("locking is disabled, concurrent requests on the same resource may corrupt data")
	return &noopLocker{}
}

func (l noopLocker) WithReadLock(ctx context.Context, _ string, fn ExpiringFunc) error {
	return fn(ctx, noopMaintain)
}

func (l noopLocker) WithWriteLock(ctx context.Context, _ string, fn ExpiringFunc) error {
	return fn(ctx, noopMaintain)
}

func noopMaintain() {}
