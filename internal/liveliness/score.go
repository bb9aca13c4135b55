package liveliness

import "github.com/alanyoungcy/bondledger/internal/fixedmath"

// BondScore is a single position's freshness in basis points: zero once
// unlockable, otherwise floor(MaxPercent/lockPeriod) times the time left. The
// division is taken first, so lock periods above MaxPercent always score zero.
func BondScore(lockPeriod, now, unbondTimestamp uint64) uint64 {
	if now >= unbondTimestamp || lockPeriod == 0 {
		return 0
	}
	v, err := fixedmath.Mul(fixedmath.MaxPercent/lockPeriod, unbondTimestamp-now)
	if err != nil {
		return 0
	}
	return v
}
