package memory

import (
	"context"
	"sync"

	"github.com/ezraisw/reslock/locker"
)

type entry struct {
	// Waiters in arrival order. The entry existing means the key is held.
	waiters []chan struct{}
}

// Locker is an in-process exclusive locker granting ownership of each key in
// strict arrival order. Keys never block each other.
type Locker struct {
	entries map[string]*entry
	mu      *sync.Mutex
}

func NewLocker() *Locker {
	return &Locker{
		entries: make(map[string]*entry),
		mu:      &sync.Mutex{},
	}
}

// Acquire waits until the key is handed over to the caller.
//
// A pending acquire cannot be cancelled: the context is not consulted while
// waiting, and the caller stays responsible for releasing once it returns.
func (l *Locker) Acquire(_ context.Context, id string) error {
	ch, ok := l.enqueue(id)
	if !ok {
		return nil
	}

	<-ch
	return nil
}

func (l *Locker) Release(_ context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return locker.Wrap(locker.ErrLockNotHeld, id, nil)
	}

	if len(e.waiters) == 0 {
		delete(l.entries, id)
		return nil
	}

	next := e.waiters[0]
	e.waiters[0] = nil
	e.waiters = e.waiters[1:]

	// Ownership passes directly to the next waiter, the entry stays.
	next <- struct{}{}
	return nil
}

// Len returns the amount of keys currently held or waited upon.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

func (l *Locker) enqueue(id string) (<-chan struct{}, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		l.entries[id] = &entry{}
		return nil, false
	}

	ch := make(chan struct{}, 1)
	e.waiters = append(e.waiters, ch)
	return ch, true
}
