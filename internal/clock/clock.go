// Package clock supplies the ledger's notion of time: a wall-clock timestamp
// in seconds and a tick counter the reward pool emits on.
package clock

import (
	"sync"
	"time"
)

// DefaultSlotDuration is the tick length SlotsInYear is calibrated to.
const DefaultSlotDuration = 400 * time.Millisecond

// System reads the host clock. Ticks count slots elapsed since Genesis.
type System struct {
	Genesis time.Time
	Slot    time.Duration
	now     func() time.Time
}

// NewSystem returns a System clock. A zero slot selects DefaultSlotDuration
// and a zero genesis counts from the Unix epoch.
func NewSystem(genesis time.Time, slot time.Duration) *System {
	if slot <= 0 {
		slot = DefaultSlotDuration
	}
	if genesis.IsZero() {
		genesis = time.Unix(0, 0)
	}
	return &System{Genesis: genesis, Slot: slot, now: time.Now}
}

// Now returns the current Unix timestamp and tick.
func (c *System) Now() (timestamp, tick uint64) {
	t := c.now()
	if t.Unix() > 0 {
		timestamp = uint64(t.Unix())
	}
	if d := t.Sub(c.Genesis); d > 0 {
		tick = uint64(d / c.Slot)
	}
	return timestamp, tick
}

// Manual is a clock advanced by hand, for tests and local devnets.
type Manual struct {
	mu        sync.Mutex
	timestamp uint64
	tick      uint64
}

// NewManual returns a Manual clock at the given reading.
func NewManual(timestamp, tick uint64) *Manual {
	return &Manual{timestamp: timestamp, tick: tick}
}

// Now returns the current reading.
func (c *Manual) Now() (timestamp, tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timestamp, c.tick
}

// Set moves the clock to the given reading.
func (c *Manual) Set(timestamp, tick uint64) {
	c.mu.Lock()
	c.timestamp, c.tick = timestamp, tick
	c.mu.Unlock()
}

// Advance moves the clock forward. Readings never go backwards.
func (c *Manual) Advance(seconds, ticks uint64) (timestamp, tick uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamp += seconds
	c.tick += ticks
	return c.timestamp, c.tick
}
