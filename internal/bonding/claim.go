package bonding

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/liveliness"
)

// ClaimRewards pays the staker's payable rewards out of the vault. id must be
// the staker's bound vault position.
func (t *Txn) ClaimRewards(ctx context.Context, id uint32) (Receipt, error) {
	r := t.receipt(domain.OpClaimRewards, id)
	if t.st.pool.State != domain.StateActive {
		return r, fmt.Errorf("bonding: claim: %w", domain.ErrRewardsPaused)
	}
	vaultBalance, err := t.tx.Balance(ctx, t.vaultAccount())
	if err != nil {
		return r, fmt.Errorf("bonding: vault balance: %w", err)
	}

	err = t.run(func(s *state) error {
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
		if err := t.settle(s, false, &r); err != nil {
			return err
		}
		if err := t.rebase(s, liveliness.Unchanged(s.ledger)); err != nil {
			return err
		}
		paid, err := t.payable(s, pos, &r)
		if err != nil {
			return err
		}
		if err := requireBalance(t.vaultAccount(), vaultBalance, paid); err != nil {
			return err
		}
		s.ledger.Claimable = 0
		r.Paid = paid
		s.transfer(t.vaultAccount(), t.scope.Owner, t.vaultAccount(), paid)
		return nil
	})
	return r, err
}
