package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes a lock key only if it still holds the caller's token, so
// an expired holder never releases a lock someone else has since taken.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Retry bounds for a contended lock.
const (
	lockRetryMin = 5 * time.Millisecond
	lockRetryMax = 250 * time.Millisecond
)

// LockManager implements domain.LockManager using SET NX with a TTL and a
// Lua-based conditional unlock. The ledger service takes one lock per vault
// so only one process mutates a vault at a time.
type LockManager struct {
	c        *Client
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager backed by the given Client.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		c:        c,
		unlockSc: redis.NewScript(unlockLua),
	}
}

// Acquire obtains the lock for key with the given TTL, retrying with backoff
// while another holder owns it. It returns domain.ErrLockHeld once ctx is
// done. The returned release function is safe to call more than once.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lm.c.key("lock", key)

	err := retryAcquire(ctx, lockRetryMin, lockRetryMax, func(ctx context.Context) (bool, error) {
		return lm.c.rdb.SetNX(ctx, lk, token, ttl).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// The caller's context may already be cancelled.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.c.rdb, []string{lk}, token).Err()
		})
	}
	return release, nil
}

// retryAcquire calls try until it reports success, doubling the pause between
// attempts from minWait up to maxWait.
func retryAcquire(ctx context.Context, minWait, maxWait time.Duration, try func(context.Context) (bool, error)) error {
	wait := minWait
	for {
		ok, err := try(ctx)
		if ok {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", domain.ErrLockHeld, ctxErr)
		}
		if err != nil {
			return err
		}

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", domain.ErrLockHeld, ctx.Err())
		case <-t.C:
		}
		wait = min(wait*2, maxWait)
	}
}

var _ domain.LockManager = (*LockManager)(nil)
