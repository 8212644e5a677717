package singleton

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/beancontainer/component"
	"github.com/c360/beancontainer/errors"
)

func TestLockState_SharedHoldersCoexist(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, component.Shared, component.NoWait)
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, component.Shared, component.NoWait)
	require.NoError(t, err)

	shared, exclusive := l.Holders()
	assert.Equal(t, 2, shared)
	assert.False(t, exclusive)

	r1()
	r2()
	shared, _ = l.Holders()
	assert.Zero(t, shared)
}

func TestLockState_ExclusiveWaitsForShared(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	releaseShared, err := l.Acquire(ctx, component.Shared, 0)
	require.NoError(t, err)

	acquired := make(chan func())
	go func() {
		release, err := l.Acquire(ctx, component.Exclusive, 0)
		if err == nil {
			acquired <- release
		}
	}()

	select {
	case <-acquired:
		t.Fatal("exclusive lock granted while a shared holder is active")
	case <-time.After(50 * time.Millisecond):
	}

	releaseShared()

	select {
	case release := <-acquired:
		_, exclusive := l.Holders()
		assert.True(t, exclusive)
		release()
	case <-time.After(2 * time.Second):
		t.Fatal("exclusive lock not granted after shared release")
	}
}

func TestLockState_ExclusiveExcludesShared(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	release, err := l.Acquire(ctx, component.Exclusive, 0)
	require.NoError(t, err)

	_, err = l.Acquire(ctx, component.Shared, component.NoWait)
	assert.ErrorIs(t, err, errors.ErrConcurrentAccessTimeout)

	release()
	releaseShared, err := l.Acquire(ctx, component.Shared, component.NoWait)
	require.NoError(t, err)
	releaseShared()
}

func TestLockState_Timeout(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	release, err := l.Acquire(ctx, component.Exclusive, 0)
	require.NoError(t, err)
	defer release()

	start := time.Now()
	_, err = l.Acquire(ctx, component.Exclusive, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrConcurrentAccessTimeout)
	assert.True(t, errors.IsTransient(err))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	_, exclusive := l.Holders()
	assert.True(t, exclusive, "timed out request must not disturb the holder")
}

func TestLockState_ContextCancelled(t *testing.T) {
	l := NewLockState()
	release, err := l.Acquire(context.Background(), component.Exclusive, 0)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, component.Shared, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockState_ReleaseIsIdempotent(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	r1, err := l.Acquire(ctx, component.Shared, 0)
	require.NoError(t, err)
	r2, err := l.Acquire(ctx, component.Shared, 0)
	require.NoError(t, err)

	r1()
	r1()
	shared, _ := l.Holders()
	assert.Equal(t, 1, shared)
	r2()
}

func TestLockState_ExclusiveNeverOverlaps(t *testing.T) {
	l := NewLockState()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(ctx, component.Exclusive, 0)
			if err != nil {
				return
			}
			defer release()

			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
}
