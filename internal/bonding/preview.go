package bonding

import (
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/liveliness"
	"github.com/alanyoungcy/bondledger/internal/rewards"
)

// Preview is a staker as it would look if settled at the Txn's time.
type Preview struct {
	Staker domain.StakerLedger `json:"staker"`
	Pool   domain.RewardPool   `json:"pool"`
	// Pending is the reward credited by settling now.
	Pending uint64 `json:"pending"`
	// Payable is what claiming on the bound position would pay now. It is
	// zero when no active position is bound.
	Payable uint64 `json:"payable"`
}

// Preview settles a copy of the working state. The Txn itself is unchanged,
// so Preview is safe on a read-only store transaction.
func (t *Txn) Preview() (Preview, error) {
	s := t.st.clone()
	if err := t.requireLedger(&s); err != nil {
		return Preview{}, err
	}
	var r Receipt
	if err := t.settle(&s, false, &r); err != nil {
		return Preview{}, err
	}
	if err := t.rebase(&s, liveliness.Unchanged(s.ledger)); err != nil {
		return Preview{}, err
	}
	p := Preview{Pending: r.Credited}
	if pos, ok := s.positions[s.ledger.BoundPositionID]; ok && pos.State == domain.PositionActive {
		paid, err := t.payable(&s, pos, &r)
		if err != nil {
			return Preview{}, err
		}
		p.Payable = paid
	}
	p.Staker, p.Pool = s.ledger, s.pool
	return p, nil
}

// ProjectPool returns the reward pool ticked to the Txn's time without
// changing the Txn.
func (t *Txn) ProjectPool() (domain.RewardPool, error) {
	pool := t.st.pool
	if _, err := rewards.Tick(&pool, t.st.totals.TotalBonded, t.tick); err != nil {
		return domain.RewardPool{}, err
	}
	return pool, nil
}
