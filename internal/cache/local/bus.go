// Package local holds in-process stand-ins for the Redis-backed bus and locks,
// for single-node deployments that run without Redis.
package local

import (
	"context"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

const (
	subscriberBuffer = 128
	defaultStreamLen = 10000
)

type subscriber struct {
	pattern string
	ch      chan []byte
}

type stream struct {
	seq     uint64
	entries []domain.StreamMessage
}

// Bus fans published payloads out to subscribers in the same process and
// keeps a bounded tail of every stream. Slow subscribers drop messages
// rather than block publishers.
type Bus struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]subscriber
	streams map[string]*stream
	maxLen  int
}

// NewBus creates a Bus keeping up to maxLen entries per stream. Zero selects
// a default.
func NewBus(maxLen int) *Bus {
	if maxLen <= 0 {
		maxLen = defaultStreamLen
	}
	return &Bus{
		subs:    make(map[int]subscriber),
		streams: make(map[string]*stream),
		maxLen:  maxLen,
	}
}

// Publish delivers payload to every subscriber whose channel or pattern
// matches.
func (b *Bus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !matches(s.pattern, channel) {
			continue
		}
		msg := append([]byte(nil), payload...)
		select {
		case s.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribe returns payloads published on channel, which may be a glob
// pattern. The channel closes when ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte, subscriberBuffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscriber{pattern: channel, ch: ch}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
		close(ch)
	}()
	return ch, nil
}

// StreamAppend adds an entry to stream, trimming the oldest past maxLen.
func (b *Bus) StreamAppend(_ context.Context, name string, data map[string]any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[name]
	if !ok {
		s = &stream{}
		b.streams[name] = s
	}
	s.seq++
	values := make(map[string]any, len(data))
	for k, v := range data {
		values[k] = v
	}
	s.entries = append(s.entries, domain.StreamMessage{ID: strconv.FormatUint(s.seq, 10) + "-0", Values: values})
	if over := len(s.entries) - b.maxLen; over > 0 {
		s.entries = append(s.entries[:0:0], s.entries[over:]...)
	}
	return nil
}

// StreamRead returns up to count entries after lastID. "0" or "0-0" reads
// from the start.
func (b *Bus) StreamRead(_ context.Context, name, lastID string, count int) ([]domain.StreamMessage, error) {
	after := seqOf(lastID)
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.streams[name]
	if !ok {
		return nil, nil
	}
	var out []domain.StreamMessage
	for _, e := range s.entries {
		if seqOf(e.ID) <= after {
			continue
		}
		out = append(out, e)
		if count > 0 && len(out) == count {
			break
		}
	}
	return out, nil
}

func seqOf(id string) uint64 {
	head, _, _ := strings.Cut(id, "-")
	n, _ := strconv.ParseUint(head, 10, 64)
	return n
}

func matches(pattern, channel string) bool {
	if pattern == channel {
		return true
	}
	ok, err := path.Match(pattern, channel)
	return err == nil && ok
}

var _ domain.SignalBus = (*Bus)(nil)
