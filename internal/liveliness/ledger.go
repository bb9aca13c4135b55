// Package liveliness tracks how fresh a staker's locked stake is. The
// aggregate score decays linearly between touches and is re-based to a
// stake-weighted average whenever the staker's bonded total changes.
package liveliness

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

// Decay is the fraction of a lock period, scaled by DivisionSafetyConst,
// that has passed since lastUpdate. A zero lock period decays fully.
func Decay(lastUpdate, now, lockPeriod uint64) (uint64, error) {
	if now <= lastUpdate {
		return 0, nil
	}
	if lockPeriod == 0 {
		return fixedmath.DivisionSafetyConst, nil
	}
	d, err := fixedmath.MulDivFloor(now-lastUpdate, fixedmath.DivisionSafetyConst, lockPeriod)
	if err != nil {
		return 0, fmt.Errorf("liveliness: decay: %w", err)
	}
	return d, nil
}

// Decayed applies decay to score. Decay beyond 100% bottoms out at zero.
func Decayed(score, decay uint64) (uint64, error) {
	v, err := fixedmath.MulDivFloor(score,
		fixedmath.SatSub(fixedmath.DivisionSafetyConst, decay), fixedmath.DivisionSafetyConst)
	if err != nil {
		return 0, fmt.Errorf("liveliness: decayed score: %w", err)
	}
	return v, nil
}

// CurrentScore is the ledger's score decayed up to now.
func CurrentScore(ledger domain.StakerLedger, now, lockPeriod uint64) (uint64, error) {
	d, err := Decay(ledger.LastUpdate, now, lockPeriod)
	if err != nil {
		return 0, err
	}
	return Decayed(ledger.LivelinessScore, d)
}

// RemainingWeight is the weight an unexpired position still carries: its
// amount scaled by the unelapsed fraction of its lock, in basis points.
func RemainingWeight(amount, unbondTimestamp, now, lockPeriod uint64) (uint256.Int, error) {
	var w uint256.Int
	if now >= unbondTimestamp || lockPeriod == 0 {
		return w, nil
	}
	frac, err := fixedmath.MulDivFloor(amount, unbondTimestamp-now, lockPeriod)
	if err != nil {
		return w, fmt.Errorf("liveliness: remaining weight: %w", err)
	}
	w.Mul(uint256.NewInt(frac), uint256.NewInt(fixedmath.MaxPercent))
	return w, nil
}

// FullWeight is the weight of amount freshly locked.
func FullWeight(amount uint64) uint256.Int {
	var w uint256.Int
	w.Mul(uint256.NewInt(amount), uint256.NewInt(fixedmath.MaxPercent))
	return w
}

// Rebase computes the stake-weighted average score after weight is removed
// and added and the bonded total moves from oldTotal to newTotal. Weights are
// summed in 256 bits. The result is clamped to MaxPercent; a zero newTotal
// yields zero.
func Rebase(decayed, oldTotal uint64, removed, added *uint256.Int, newTotal uint64) uint64 {
	if newTotal == 0 {
		return 0
	}
	var w, avg uint256.Int
	w.Mul(uint256.NewInt(decayed), uint256.NewInt(oldTotal))
	if w.Lt(removed) {
		w.Clear()
	} else {
		w.Sub(&w, removed)
	}
	w.Add(&w, added)
	avg.Div(&w, uint256.NewInt(newTotal))
	if !avg.IsUint64() {
		return fixedmath.MaxPercent
	}
	return fixedmath.Min(avg.Uint64(), fixedmath.MaxPercent)
}

// Change is one stake-weight transition on a ledger.
type Change struct {
	Removed  uint256.Int
	Added    uint256.Int
	NewTotal uint64
}

// Unchanged keeps the ledger's bonded total and moves no weight.
func Unchanged(ledger domain.StakerLedger) Change {
	return Change{NewTotal: ledger.TotalBonded}
}

// Apply decays the ledger up to now against its pre-change total, re-bases it
// for c and stamps LastUpdate. It returns the decayed score the ledger held
// before re-basing. ledger.TotalBonded is not modified.
func Apply(ledger *domain.StakerLedger, now, lockPeriod uint64, c Change) (decayed uint64, err error) {
	decayed, err = CurrentScore(*ledger, now, lockPeriod)
	if err != nil {
		return 0, err
	}
	ledger.LivelinessScore = Rebase(decayed, ledger.TotalBonded, &c.Removed, &c.Added, c.NewTotal)
	ledger.LastUpdate = now
	return decayed, nil
}
