package singleton

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
)

// LockState is the shared/exclusive lock guarding one container-managed singleton.
// Any number of shared holders may coexist; an exclusive holder excludes all others.
// Shared requests are granted whenever no exclusive holder is active, so a
// waiting exclusive request is bounded by its access timeout rather than by fairness.
type LockState struct {
	mu        sync.Mutex
	shared    int
	exclusive bool
	changed   chan struct{} // closed and replaced whenever a holder releases
}

// NewLockState returns an unheld lock
func NewLockState() *LockState {
	return &LockState{changed: make(chan struct{})}
}

// Holders reports the current shared count and whether an exclusive holder is active
func (l *LockState) Holders() (shared int, exclusive bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.shared, l.exclusive
}

func (l *LockState) tryAcquire(typ component.LockType) (granted bool, wait <-chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch {
	case l.exclusive:
	case typ == component.Shared:
		l.shared++
		return true, nil
	case l.shared == 0:
		l.exclusive = true
		return true, nil
	}
	return false, l.changed
}

// Acquire takes the lock in mode typ. A positive timeout bounds the wait,
// component.NoWait fails at once when the lock is held, and zero waits until
// ctx ends. The returned release func is idempotent.
func (l *LockState) Acquire(ctx context.Context, typ component.LockType, timeout time.Duration) (func(), error) {
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		granted, wait := l.tryAcquire(typ)
		if granted {
			var once sync.Once
			return func() { once.Do(func() { l.release(typ) }) }, nil
		}
		if timeout == component.NoWait {
			return nil, fmt.Errorf("%w: %s lock is held", errors.ErrConcurrentAccessTimeout, typ)
		}

		select {
		case <-wait:
		case <-expired:
			return nil, fmt.Errorf("%w: %s lock not acquired within %v", errors.ErrConcurrentAccessTimeout, typ, timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (l *LockState) release(typ component.LockType) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if typ == component.Shared {
		l.shared--
	} else {
		l.exclusive = false
	}
	close(l.changed)
	l.changed = make(chan struct{})
}
