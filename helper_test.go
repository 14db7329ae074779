package reslock_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ezraisw/reslock/locker"
)

var errMock = errors.New("mock error")

const waitTimeout = 2 * time.Second

// recordingLocker counts the calls made to the wrapped locker.
type recordingLocker struct {
	locker locker.Locker

	waiting  int32
	acquired int32
	released int32
}

func (l *recordingLocker) Acquire(ctx context.Context, id string) error {
	atomic.AddInt32(&l.waiting, 1)
	defer atomic.AddInt32(&l.waiting, -1)

	if err := l.locker.Acquire(ctx, id); err != nil {
		return err
	}
	atomic.AddInt32(&l.acquired, 1)
	return nil
}

func (l *recordingLocker) Release(ctx context.Context, id string) error {
	if err := l.locker.Release(ctx, id); err != nil {
		return err
	}
	atomic.AddInt32(&l.released, 1)
	return nil
}

func (l *recordingLocker) Waiting() int {
	return int(atomic.LoadInt32(&l.waiting))
}

func (l *recordingLocker) Acquired() int {
	return int(atomic.LoadInt32(&l.acquired))
}

func (l *recordingLocker) Released() int {
	return int(atomic.LoadInt32(&l.released))
}

type failingLocker struct {
	acquireErr error
	releaseErr error
}

func (l failingLocker) Acquire(context.Context, string) error {
	return l.acquireErr
}

func (l failingLocker) Release(context.Context, string) error {
	return l.releaseErr
}

// overlapTracker detects critical sections running at the same time.
type overlapTracker struct {
	readers int32
	writers int32
	invalid int32
	maxRead int32
}

func (t *overlapTracker) read(d time.Duration) {
	n := atomic.AddInt32(&t.readers, 1)
	if atomic.LoadInt32(&t.writers) > 0 {
		atomic.StoreInt32(&t.invalid, 1)
	}
	for {
		prev := atomic.LoadInt32(&t.maxRead)
		if n <= prev || atomic.CompareAndSwapInt32(&t.maxRead, prev, n) {
			break
		}
	}
	time.Sleep(d)
	atomic.AddInt32(&t.readers, -1)
}

func (t *overlapTracker) write(d time.Duration) {
	if atomic.AddInt32(&t.writers, 1) > 1 || atomic.LoadInt32(&t.readers) > 0 {
		atomic.StoreInt32(&t.invalid, 1)
	}
	time.Sleep(d)
	atomic.AddInt32(&t.writers, -1)
}

func (t *overlapTracker) Invalid() bool {
	return atomic.LoadInt32(&t.invalid) != 0
}

func (t *overlapTracker) MaxReaders() int {
	return int(atomic.LoadInt32(&t.maxRead))
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Info(...any)  {}
func (l *recordingLogger) Debug(...any) {}
func (l *recordingLogger) Error(...any) {}

func (l *recordingLogger) Warn(args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprint(args...))
}

func (l *recordingLogger) Warns() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.warns...)
}

func waitClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	case <-time.After(waitTimeout):
		return false
	}
}
