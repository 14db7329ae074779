package reslock

import (
	"context"

	"github.com/ezraisw/reslock/locker"
	"github.com/ezraisw/reslock/locker/memory"
	"github.com/puzpuzpuz/xsync/v3"
)

const CounterSuffix = ".count"

// MemoryReaderCounter keeps reader counts in process memory.
// Identifiers without readers are not retained.
type MemoryReaderCounter struct {
	counts *xsync.MapOf[string, int]
}

func NewMemoryReaderCounter() *MemoryReaderCounter {
	return &MemoryReaderCounter{
		counts: xsync.NewMapOf[string, int](),
	}
}

func (c *MemoryReaderCounter) CounterID(id string) string {
	return id + CounterSuffix
}

func (c *MemoryReaderCounter) Increment(_ context.Context, id string) (int, error) {
	count, _ := c.counts.Compute(id, func(old int, _ bool) (int, bool) {
		return old + 1, false
	})
	return count, nil
}

func (c *MemoryReaderCounter) Decrement(_ context.Context, id string) (int, error) {
	count := -1
	c.counts.Compute(id, func(old int, loaded bool) (int, bool) {
		if !loaded || old <= 0 {
			return 0, true
		}
		count = old - 1
		return count, count == 0
	})

	if count < 0 {
		return 0, locker.Wrap(locker.ErrLockNotHeld, id, nil)
	}
	return count, nil
}

// Count returns the active readers of id.
func (c *MemoryReaderCounter) Count(id string) int {
	count, _ := c.counts.Load(id)
	return count
}

// Len returns the amount of identifiers with active readers.
func (c *MemoryReaderCounter) Len() int {
	return c.counts.Size()
}

// NewMemoryReadWriteLocker creates a counting ReadWriteLocker whose reader
// counts live in process memory. Counts are guarded by a private in-process
// locker, kept apart from resource so releasing counts never interferes with
// whoever owns the resource lock.
func NewMemoryReadWriteLocker(resource locker.Locker) *CountingReadWriteLocker {
	return NewCountingReadWriteLocker(resource, memory.NewLocker(), NewMemoryReaderCounter())
}
