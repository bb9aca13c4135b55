package bonding

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// StakeRewards folds the staker's payable rewards into bound vault position
// id instead of paying them out, and renews the position.
func (t *Txn) StakeRewards(id uint32) (Receipt, error) {
	r := t.receipt(domain.OpStakeRewards, id)
	err := t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		if err := requireBound(s, id); err != nil {
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
		amount, err := t.payable(s, pos, &r)
		if err != nil {
			return err
		}
		if err := t.grow(s, &pos, amount); err != nil {
			return err
		}
		s.ledger.Claimable = 0
		r.Amount = amount
		s.putPosition(pos)
		return nil
	})
	return r, err
}
