package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient connects to BONDLEDGER_TEST_REDIS_ADDR under a random key
// prefix, skipping when the variable is unset.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("BONDLEDGER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BONDLEDGER_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr, KeyPrefix: "test-" + uuid.NewString() + ":"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestKeyPrefix(t *testing.T) {
	c := &Client{prefix: "bl:"}
	assert.Equal(t, "bl:lock:vault-1", c.key("lock", "vault-1"))
	assert.Equal(t, "bl:ledger:events", c.key(domain.ChannelLedgerEvents))
}

func TestHasPattern(t *testing.T) {
	assert.True(t, hasPattern("ledger:*"))
	assert.False(t, hasPattern(domain.ChannelLedgerEvents))
}

func TestLockManager(t *testing.T) {
	c := newTestClient(t)
	lm := NewLockManager(c)
	ctx := context.Background()

	release, err := lm.Acquire(ctx, "vault-1", time.Minute)
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	_, err = lm.Acquire(short, "vault-1", time.Minute)
	cancel()
	require.ErrorIs(t, err, domain.ErrLockHeld)

	acquired := make(chan func(), 1)
	go func() {
		next, err := lm.Acquire(ctx, "vault-1", time.Minute)
		assert.NoError(t, err)
		acquired <- next
	}()
	time.Sleep(20 * time.Millisecond)
	release()
	release()

	select {
	case next := <-acquired:
		next()
	case <-time.After(5 * time.Second):
		t.Fatal("waiter never acquired the released lock")
	}
}

func TestRetryAcquireWaitsForRelease(t *testing.T) {
	attempts := 0
	err := retryAcquire(context.Background(), time.Millisecond, 4*time.Millisecond, func(context.Context) (bool, error) {
		attempts++
		return attempts == 4, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)
}

func TestRetryAcquireGivesUpWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := retryAcquire(ctx, time.Millisecond, 2*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	require.ErrorIs(t, err, domain.ErrLockHeld)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAcquireSurfacesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	err := retryAcquire(context.Background(), time.Millisecond, time.Millisecond, func(context.Context) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrLockHeld)
}

func TestRateLimiter(t *testing.T) {
	c := newTestClient(t)
	rl := NewRateLimiter(c)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "key", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := rl.Allow(ctx, "key", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = rl.Allow(ctx, "other", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalBusStream(t *testing.T) {
	c := newTestClient(t)
	sb := NewSignalBus(c)
	ctx := context.Background()

	empty, err := sb.StreamRead(ctx, domain.StreamLedgerJournal, "0", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, sb.StreamAppend(ctx, domain.StreamLedgerJournal, map[string]any{"op": domain.OpBond}))
	require.NoError(t, sb.StreamAppend(ctx, domain.StreamLedgerJournal, map[string]any{"op": domain.OpWithdraw}))

	msgs, err := sb.StreamRead(ctx, domain.StreamLedgerJournal, "0", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.OpBond, msgs[0].Values["op"])
	assert.Equal(t, domain.OpWithdraw, msgs[1].Values["op"])

	tail, err := sb.StreamRead(ctx, domain.StreamLedgerJournal, msgs[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, tail, 1)
}

func TestSignalBusPubSub(t *testing.T) {
	c := newTestClient(t)
	sb := NewSignalBus(c)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := sb.Subscribe(ctx, domain.ChannelLedgerEvents)
	require.NoError(t, err)

	require.NoError(t, sb.Publish(ctx, domain.ChannelLedgerEvents, []byte(`{"op":"bond"}`)))

	select {
	case msg := <-ch:
		assert.JSONEq(t, `{"op":"bond"}`, string(msg))
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}
