// Package rewards implements the per-vault reward accumulator and the
// per-staker share that settles against it.
package rewards

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

// TickResult reports what one Tick booked.
type TickResult struct {
	Elapsed uint64
	Booked  uint64
}

// Tick brings pool up to the tick counter now. It is a no-op for an inactive
// pool or when now has not moved past LastTick. Otherwise LastTick always
// advances, and the emission for the elapsed ticks is booked into the index
// only if stake exists and the reserve covers it in full.
//
// pool is left untouched when an error is returned.
func Tick(pool *domain.RewardPool, totalBonded, now uint64) (TickResult, error) {
	if pool.State != domain.StateActive || now <= pool.LastTick {
		return TickResult{}, nil
	}
	elapsed := now - pool.LastTick

	extra, err := fixedmath.Mul(pool.RatePerTick, elapsed)
	if err != nil {
		return TickResult{}, fmt.Errorf("rewards: elapsed emission: %w", err)
	}
	if bound, capped, err := aprBound(pool, totalBonded, elapsed); err != nil {
		return TickResult{}, err
	} else if capped {
		extra = fixedmath.Min(extra, bound)
	}

	if totalBonded == 0 || extra == 0 || extra > pool.Reserve {
		pool.LastTick = now
		return TickResult{Elapsed: elapsed}, nil
	}

	increment, err := fixedmath.MulDivFloor(extra, fixedmath.DivisionSafetyConst, totalBonded)
	if err != nil {
		return TickResult{}, fmt.Errorf("rewards: index increment: %w", err)
	}
	index, err := fixedmath.Add(pool.PerShareIndex, increment)
	if err != nil {
		return TickResult{}, fmt.Errorf("rewards: per-share index: %w", err)
	}
	accumulated, err := fixedmath.Add(pool.Accumulated, extra)
	if err != nil {
		return TickResult{}, fmt.Errorf("rewards: accumulated: %w", err)
	}

	pool.LastTick = now
	pool.PerShareIndex = index
	pool.Reserve -= extra
	pool.Accumulated = accumulated
	return TickResult{Elapsed: elapsed, Booked: extra}, nil
}

// aprBound is the most the pool may emit over elapsed ticks under its cap
// policy. capped is false when the policy imposes no bound.
func aprBound(pool *domain.RewardPool, totalBonded, elapsed uint64) (bound uint64, capped bool, err error) {
	var base uint64
	switch pool.CapPolicy {
	case domain.CapBonded:
		base = totalBonded
	case domain.CapReserve:
		base = pool.Reserve
	default:
		return 0, false, nil
	}
	perYear, err := fixedmath.MulDivFloor(base, pool.MaxAprBps, fixedmath.MaxPercent)
	if err != nil {
		return 0, false, fmt.Errorf("rewards: apr bound: %w", err)
	}
	bound, err = fixedmath.Mul(perYear/fixedmath.SlotsInYear, elapsed)
	if err != nil {
		return 0, false, fmt.Errorf("rewards: apr bound: %w", err)
	}
	return bound, true, nil
}
