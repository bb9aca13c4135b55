package liveliness

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

func TestDecay(t *testing.T) {
	tests := []struct {
		name            string
		last, now, lock uint64
		want            uint64
	}{
		{"no time", 100, 100, 1000, 0},
		{"clock behind", 100, 50, 1000, 0},
		{"half", 0, 500, 1000, fixedmath.DivisionSafetyConst / 2},
		{"past lock", 0, 3000, 1000, 3 * fixedmath.DivisionSafetyConst},
		{"zero lock", 0, 1, 0, fixedmath.DivisionSafetyConst},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decay(tt.last, tt.now, tt.lock)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecayedBottomsAtZero(t *testing.T) {
	v, err := Decayed(10_000, fixedmath.DivisionSafetyConst/2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), v)

	v, err = Decayed(10_000, 3*fixedmath.DivisionSafetyConst)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestRemainingWeight(t *testing.T) {
	w, err := RemainingWeight(500, 1000, 500, 1000)
	require.NoError(t, err)
	assert.Equal(t, uint64(250*10_000), w.Uint64())

	w, err = RemainingWeight(500, 1000, 1000, 1000)
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	w, err = RemainingWeight(500, 1000, 10, 0)
	require.NoError(t, err)
	assert.True(t, w.IsZero())
}

func weight(v uint64) *uint256.Int { return uint256.NewInt(v) }

func TestRebase(t *testing.T) {
	tests := []struct {
		name                                     string
		decayed, oldTotal, removed, added, total uint64
		want                                     uint64
	}{
		{"first bond", 0, 0, 0, 500 * 10_000, 500, 10_000},
		{"half stale plus fresh", 5_000, 500, 0, 500 * 10_000, 1000, 7_500},
		{"renew resets", 5_000, 500, 250 * 10_000, 500 * 10_000, 500, 10_000},
		{"all withdrawn", 8_000, 500, 0, 0, 0, 0},
		{"withdraw expired clamps", 10_000, 1000, 0, 0, 500, 10_000},
		{"removed exceeds weight", 1_000, 10, 500_000, 0, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Rebase(tt.decayed, tt.oldTotal, weight(tt.removed), weight(tt.added), tt.total)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWeightsBeyondUint64(t *testing.T) {
	// amount*MaxPercent overflows 64 bits above ~1.8e15
	const big = uint64(1) << 62

	full := FullWeight(big)
	assert.False(t, full.IsUint64())
	assert.Equal(t, uint64(10_000), Rebase(0, 0, weight(0), &full, big))

	// half stale stake plus the same amount fresh averages to 75%
	assert.Equal(t, uint64(7_500), Rebase(5_000, big, weight(0), &full, 2*big))

	rem, err := RemainingWeight(big, 1000, 500, 1000)
	require.NoError(t, err)
	half := FullWeight(big / 2)
	assert.Equal(t, half, rem)

	// renewing a half-expired position returns it to full weight
	assert.Equal(t, uint64(10_000), Rebase(5_000, big, &rem, &full, big))

	ledger := domain.StakerLedger{TotalBonded: big, LivelinessScore: 10_000}
	_, err = Apply(&ledger, 500, 1000, Change{Added: FullWeight(big), NewTotal: 2 * big})
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500), ledger.LivelinessScore)
}

func TestApply(t *testing.T) {
	ledger := domain.StakerLedger{TotalBonded: 500, LivelinessScore: 10_000, LastUpdate: 0}

	decayed, err := Apply(&ledger, 500, 1000, Change{Added: FullWeight(500), NewTotal: 1000})
	require.NoError(t, err)
	assert.Equal(t, uint64(5_000), decayed)
	assert.Equal(t, uint64(7_500), ledger.LivelinessScore)
	assert.Equal(t, uint64(500), ledger.LastUpdate)
	assert.Equal(t, uint64(500), ledger.TotalBonded)
}

func TestApplyUnchangedStoresDecayedScore(t *testing.T) {
	ledger := domain.StakerLedger{TotalBonded: 500, LivelinessScore: 10_000}

	_, err := Apply(&ledger, 250, 1000, Unchanged(ledger))
	require.NoError(t, err)
	assert.Equal(t, uint64(7_500), ledger.LivelinessScore)
	assert.Equal(t, uint64(250), ledger.LastUpdate)
}
