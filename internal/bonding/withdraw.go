package bonding

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
	"github.com/alanyoungcy/bondledger/internal/liveliness"
)

// Withdraw closes position id and pays its principal out. Withdrawing before
// the unbond timestamp forfeits WithdrawPenaltyBps of it to the vault's
// penalty tally. Rewards up to now are settled undiscounted into claimable.
// Withdrawing the bound vault position clears the binding; the claimable
// balance is kept and becomes payable once another vault position is bound.
func (t *Txn) Withdraw(ctx context.Context, id uint32) (Receipt, error) {
	r := t.receipt(domain.OpWithdraw, id)
	vaultBalance, err := t.tx.Balance(ctx, t.vaultAccount())
	if err != nil {
		return r, fmt.Errorf("bonding: vault balance: %w", err)
	}

	err = t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		pos, err := t.activePosition(s, id)
		if err != nil {
			return err
		}
		if err := requireBalance(t.vaultAccount(), vaultBalance, pos.BondAmount); err != nil {
			return err
		}
		if err := t.settle(s, true, &r); err != nil {
			return err
		}

		removed, err := liveliness.RemainingWeight(pos.BondAmount, pos.UnbondTimestamp, t.now, t.config.LockPeriod)
		if err != nil {
			return err
		}
		total, err := fixedmath.Sub(s.ledger.TotalBonded, pos.BondAmount)
		if err != nil {
			return fmt.Errorf("bonding: staker total: %w", err)
		}
		if err := t.rebase(s, liveliness.Change{Removed: removed, NewTotal: total}); err != nil {
			return err
		}

		var penalty uint64
		if t.now < pos.UnbondTimestamp {
			penalty, err = fixedmath.MulDivFloor(pos.BondAmount, t.config.WithdrawPenaltyBps, fixedmath.MaxPercent)
			if err != nil {
				return fmt.Errorf("bonding: penalty: %w", err)
			}
		}
		penalized, err := fixedmath.Add(s.totals.TotalPenalized, penalty)
		if err != nil {
			return fmt.Errorf("bonding: penalized total: %w", err)
		}
		if err := subBonded(s, pos.BondAmount); err != nil {
			return err
		}
		s.totals.TotalPenalized = penalized

		payout, err := fixedmath.Sub(pos.BondAmount, penalty)
		if err != nil {
			return fmt.Errorf("bonding: payout: %w", err)
		}
		r.Amount = pos.BondAmount
		r.Penalty = penalty
		r.Paid = payout

		if s.ledger.BoundPositionID == id {
			s.ledger.BoundPositionID = 0
			r.Unbound = true
		}

		pos.State = domain.PositionInactive
		pos.BondAmount = 0
		pos.UnbondTimestamp = t.now
		s.putPosition(pos)
		s.transfer(t.vaultAccount(), t.scope.Owner, t.vaultAccount(), payout)
		return nil
	})
	return r, err
}
