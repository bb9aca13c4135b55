package rewards

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

func activePool() domain.RewardPool {
	return domain.RewardPool{
		Vault:       "v1",
		State:       domain.StateActive,
		Reserve:     10_000,
		RatePerTick: 100,
	}
}

func TestTickBooksElapsedEmission(t *testing.T) {
	pool := activePool()

	res, err := Tick(&pool, 1000, 10)
	require.NoError(t, err)

	assert.Equal(t, uint64(1000), res.Booked)
	assert.Equal(t, fixedmath.DivisionSafetyConst, pool.PerShareIndex)
	assert.Equal(t, uint64(9000), pool.Reserve)
	assert.Equal(t, uint64(1000), pool.Accumulated)
	assert.Equal(t, uint64(10), pool.LastTick)
}

func TestTickIsIdempotentAtSameClock(t *testing.T) {
	pool := activePool()
	_, err := Tick(&pool, 1000, 10)
	require.NoError(t, err)
	before := pool

	res, err := Tick(&pool, 1000, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Booked)
	assert.Equal(t, before, pool)
}

func TestTickNoopWhenInactive(t *testing.T) {
	pool := activePool()
	pool.State = domain.StateInactive

	_, err := Tick(&pool, 1000, 10)
	require.NoError(t, err)
	assert.Zero(t, pool.LastTick)
	assert.Zero(t, pool.PerShareIndex)
}

func TestTickAdvancesWithoutStake(t *testing.T) {
	pool := activePool()

	res, err := Tick(&pool, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Booked)
	assert.Equal(t, uint64(10), pool.LastTick)
	assert.Equal(t, uint64(10_000), pool.Reserve)

	// the gap is not rewarded retroactively once stake exists
	res, err = Tick(&pool, 1000, 11)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), res.Booked)
}

func TestTickSkipsWhenReserveShort(t *testing.T) {
	pool := activePool()
	pool.Reserve = 999

	res, err := Tick(&pool, 1000, 10)
	require.NoError(t, err)
	assert.Zero(t, res.Booked)
	assert.Equal(t, uint64(10), pool.LastTick)
	assert.Equal(t, uint64(999), pool.Reserve)
	assert.Zero(t, pool.PerShareIndex)
}

func TestTickCapPolicies(t *testing.T) {
	tests := []struct {
		name   string
		policy domain.CapPolicy
		total  uint64
		want   uint64
	}{
		{"none", domain.CapNone, 78_840_000, 1000},
		// 100% a year of this total is exactly the 100 per tick rate
		{"bonded", domain.CapBonded, 7_884_000_000, 1000},
		{"bonded tight", domain.CapBonded, 7_884_000, 0},
		{"reserve", domain.CapReserve, 1000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool := activePool()
			pool.CapPolicy = tt.policy
			pool.MaxAprBps = 10_000

			res, err := Tick(&pool, tt.total, 10)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Booked)
			assert.Equal(t, uint64(10), pool.LastTick)
		})
	}
}

func TestTickBondedCapBoundsEmission(t *testing.T) {
	pool := activePool()
	pool.CapPolicy = domain.CapBonded
	pool.MaxAprBps = 5_000
	total := 2 * 78_840_000 * uint64(3)

	// 50% of total per year is 3 per tick, below the 100 rate
	res, err := Tick(&pool, total, 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(30), res.Booked)
}

func TestTickOverflowLeavesPoolUntouched(t *testing.T) {
	pool := activePool()
	pool.RatePerTick = math.MaxUint64
	before := pool

	_, err := Tick(&pool, 1000, 10)
	require.ErrorIs(t, err, domain.ErrArithmeticOverflow)
	assert.Equal(t, before, pool)
}

func TestPerShareIndexNonDecreasing(t *testing.T) {
	pool := activePool()
	pool.Reserve = 1_000_000
	last := pool.PerShareIndex
	for now, total := uint64(1), uint64(1); now < 200; now, total = now+7, total*3%9973+1 {
		_, err := Tick(&pool, total, now)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, pool.PerShareIndex, last)
		last = pool.PerShareIndex
	}
}

func TestCapPolicyFromLegacy(t *testing.T) {
	assert.Equal(t, domain.CapNone, domain.CapPolicyFromLegacy(0))
	assert.Equal(t, domain.CapBonded, domain.CapPolicyFromLegacy(1))
}
