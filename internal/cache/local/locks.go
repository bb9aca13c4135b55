package local

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Locks is an in-process domain.LockManager. Waiters queue on a per-key
// semaphore until the holder releases, the hold expires after its TTL, or
// the waiter's context is done.
type Locks struct {
	mu   sync.Mutex
	keys map[string]chan struct{}
}

func NewLocks() *Locks {
	return &Locks{keys: make(map[string]chan struct{})}
}

func (l *Locks) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.keys[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.keys[key] = ch
	}
	return ch
}

// Acquire blocks until key is free or ctx is done, in which case it returns
// domain.ErrLockHeld.
func (l *Locks) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	ch := l.slot(key)
	select {
	case ch <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("local: acquire lock %s: %w: %w", key, domain.ErrLockHeld, ctx.Err())
	}

	var once sync.Once
	unlock := func() { once.Do(func() { <-ch }) }
	var expiry *time.Timer
	if ttl > 0 {
		expiry = time.AfterFunc(ttl, unlock)
	}
	return func() {
		if expiry != nil {
			expiry.Stop()
		}
		unlock()
	}, nil
}

var _ domain.LockManager = (*Locks)(nil)
