package local

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func TestLocksQueueWaiters(t *testing.T) {
	l := NewLocks()
	ctx := context.Background()

	release, err := l.Acquire(ctx, "vault:v1", time.Minute)
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next, err := l.Acquire(ctx, "vault:v1", time.Minute)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			next()
		}()
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Empty(t, order, "waiters ran while the lock was held")
	mu.Unlock()

	release()
	release()
	wg.Wait()
	assert.Len(t, order, 2)
}

func TestLocksTimeoutIsLockHeld(t *testing.T) {
	l := NewLocks()
	release, err := l.Acquire(context.Background(), "k", time.Minute)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "k", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)

	other, err := l.Acquire(context.Background(), "other", time.Minute)
	require.NoError(t, err)
	other()
}

func TestLocksExpireAfterTTL(t *testing.T) {
	l := NewLocks()
	stale, err := l.Acquire(context.Background(), "k", 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	fresh, err := l.Acquire(ctx, "k", time.Minute)
	require.NoError(t, err)

	// The expired holder must not release the new one.
	stale()
	_, err = l.Acquire(timeoutCtx(t, 10*time.Millisecond), "k", time.Minute)
	require.ErrorIs(t, err, domain.ErrLockHeld)
	fresh()
}

func timeoutCtx(t *testing.T, d time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	t.Cleanup(cancel)
	return ctx
}
