package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemTicks(t *testing.T) {
	genesis := time.Unix(1_000, 0)
	c := NewSystem(genesis, 0)
	c.now = func() time.Time { return genesis.Add(10 * time.Second) }

	ts, tick := c.Now()
	assert.Equal(t, uint64(1_010), ts)
	assert.Equal(t, uint64(25), tick)
}

func TestSystemBeforeGenesis(t *testing.T) {
	genesis := time.Unix(1_000, 0)
	c := NewSystem(genesis, time.Second)
	c.now = func() time.Time { return genesis.Add(-time.Minute) }

	ts, tick := c.Now()
	assert.Equal(t, uint64(940), ts)
	assert.Zero(t, tick)
}

func TestManual(t *testing.T) {
	c := NewManual(5, 1)
	ts, tick := c.Advance(10, 25)
	assert.Equal(t, uint64(15), ts)
	assert.Equal(t, uint64(26), tick)

	c.Set(100, 200)
	ts, tick = c.Now()
	assert.Equal(t, uint64(100), ts)
	assert.Equal(t, uint64(200), tick)
}
