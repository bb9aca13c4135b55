package bonding

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Renew restarts position id's lock at now without changing its principal.
// The position's remaining weight is swapped for full weight.
func (t *Txn) Renew(id uint32) (Receipt, error) {
	r := t.receipt(domain.OpRenew, id)
	err := t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		pos, err := t.activePosition(s, id)
		if err != nil {
			return err
		}
		if err := t.settle(s, false, &r); err != nil {
			return err
		}
		change, err := t.restake(s, pos, pos.BondAmount)
		if err != nil {
			return err
		}
		if err := t.rebase(s, change); err != nil {
			return err
		}
		if err := t.relock(&pos); err != nil {
			return err
		}
		s.putPosition(pos)
		return nil
	})
	return r, err
}

// TopUp adds amount to vault position id and renews it.
func (t *Txn) TopUp(ctx context.Context, id uint32, amount uint64) (Receipt, error) {
	r := t.receipt(domain.OpTopUp, id)
	r.Amount = amount
	if amount == 0 {
		return r, fmt.Errorf("bonding: top up: %w", domain.ErrWrongAmount)
	}
	balance, err := t.tx.Balance(ctx, t.scope.Owner)
	if err != nil {
		return r, fmt.Errorf("bonding: owner balance: %w", err)
	}
	if err := requireBalance(t.scope.Owner, balance, amount); err != nil {
		return r, err
	}

	err = t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		pos, err := t.activePosition(s, id)
		if err != nil {
			return err
		}
		if !pos.IsVault {
			return fmt.Errorf("bonding: position %d: %w", id, domain.ErrBondNotVault)
		}
		if err := t.settle(s, false, &r); err != nil {
			return err
		}
		if err := t.grow(s, &pos, amount); err != nil {
			return err
		}
		s.putPosition(pos)
		s.transfer(t.scope.Owner, t.vaultAccount(), t.scope.Owner, amount)
		return nil
	})
	return r, err
}

// grow relocks pos with amount added to its principal and to the totals.
func (t *Txn) grow(s *state, pos *domain.BondPosition, amount uint64) error {
	newAmount := pos.BondAmount + amount
	if newAmount < pos.BondAmount {
		return fmt.Errorf("bonding: position %d amount: %w", pos.ID, domain.ErrArithmeticOverflow)
	}
	change, err := t.restake(s, *pos, newAmount)
	if err != nil {
		return err
	}
	if err := t.rebase(s, change); err != nil {
		return err
	}
	if err := addBonded(s, amount); err != nil {
		return err
	}
	pos.BondAmount = newAmount
	return t.relock(pos)
}
