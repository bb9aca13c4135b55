package rewards

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

// PendingShare is the staker's undiscounted entitlement since its last
// snapshot. vaultTotal is the vault's bonded total at settlement time.
func PendingShare(pool domain.RewardPool, ledger domain.StakerLedger, vaultTotal uint64) (uint64, error) {
	if pool.Accumulated == 0 || vaultTotal == 0 {
		return 0, nil
	}
	delta, err := fixedmath.Sub(pool.PerShareIndex, ledger.PerShareSnapshot)
	if err != nil {
		return 0, fmt.Errorf("rewards: index delta: %w", err)
	}
	share, err := fixedmath.MulDivFloor(ledger.TotalBonded, delta, fixedmath.DivisionSafetyConst)
	if err != nil {
		return 0, fmt.Errorf("rewards: pending share: %w", err)
	}
	return share, nil
}

// Discount splits share by a freshness score in basis points. A score at or
// above the liveliness gate, or bypass, credits the whole share.
func Discount(share, score uint64, bypass bool) (credited, forfeited uint64, err error) {
	if bypass || score >= fixedmath.LivelinessGateBps {
		return share, 0, nil
	}
	credited, err = fixedmath.MulDivFloor(share, score, fixedmath.MaxPercent)
	if err != nil {
		return 0, 0, fmt.Errorf("rewards: discount: %w", err)
	}
	return credited, share - credited, nil
}

// ApplyForfeit releases share from the pool's accumulated balance and routes
// the forfeited part of it according to policy.
func ApplyForfeit(pool *domain.RewardPool, share, forfeited uint64, policy domain.ForfeitPolicy) error {
	if forfeited > 0 {
		switch policy {
		case domain.ForfeitReturn:
			reserve, err := fixedmath.Add(pool.Reserve, forfeited)
			if err != nil {
				return fmt.Errorf("rewards: return forfeit: %w", err)
			}
			pool.Reserve = reserve
		default:
			burned, err := fixedmath.Add(pool.Burned, forfeited)
			if err != nil {
				return fmt.Errorf("rewards: burn forfeit: %w", err)
			}
			pool.Burned = burned
		}
	}
	pool.Accumulated = fixedmath.SatSub(pool.Accumulated, share)
	return nil
}

// Settlement is the outcome of settling one staker against the pool.
type Settlement struct {
	Share     uint64
	Credited  uint64
	Forfeited uint64
}

// Settle credits the staker's discounted pending share to Claimable and moves
// its snapshot to the current index. The snapshot moves even when nothing is
// credited.
func Settle(pool *domain.RewardPool, ledger *domain.StakerLedger, vaultTotal, score uint64, bypass bool, policy domain.ForfeitPolicy) (Settlement, error) {
	share, err := PendingShare(*pool, *ledger, vaultTotal)
	if err != nil {
		return Settlement{}, err
	}
	credited, forfeited, err := Discount(share, score, bypass)
	if err != nil {
		return Settlement{}, err
	}
	claimable, err := fixedmath.Add(ledger.Claimable, credited)
	if err != nil {
		return Settlement{}, fmt.Errorf("rewards: claimable: %w", err)
	}
	if err := ApplyForfeit(pool, share, forfeited, policy); err != nil {
		return Settlement{}, err
	}
	ledger.PerShareSnapshot = pool.PerShareIndex
	ledger.Claimable = claimable
	return Settlement{Share: share, Credited: credited, Forfeited: forfeited}, nil
}
