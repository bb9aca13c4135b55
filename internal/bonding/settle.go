package bonding

import (
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
	"github.com/alanyoungcy/bondledger/internal/liveliness"
	"github.com/alanyoungcy/bondledger/internal/rewards"
)

// Receipt summarises what a committed operation did.
type Receipt struct {
	Op         string `json:"op"`
	Vault      string `json:"vault"`
	Owner      string `json:"owner,omitempty"`
	PositionID uint32 `json:"position_id,omitempty"`
	// Amount is the principal moved into or out of stake.
	Amount uint64 `json:"amount,omitempty"`
	// Paid is what left the vault for the owner.
	Paid      uint64 `json:"paid,omitempty"`
	Penalty   uint64 `json:"penalty,omitempty"`
	Credited  uint64 `json:"credited,omitempty"`
	Forfeited uint64 `json:"forfeited,omitempty"`
	Booked    uint64 `json:"booked,omitempty"`
	// Unbound is set when the operation cleared the staker's vault binding.
	Unbound bool `json:"unbound,omitempty"`

	Transfers []domain.Transfer `json:"transfers,omitempty"`
}

func (t *Txn) receipt(op string, id uint32) Receipt {
	return Receipt{Op: op, Vault: t.scope.Vault, Owner: t.scope.Owner, PositionID: id}
}

// settle ticks the pool against the pre-change vault total and credits the
// staker's share since its last snapshot, discounted by its decayed score.
// Under ScoreBond the discount is deferred to claim and compound.
func (t *Txn) settle(s *state, bypass bool, r *Receipt) error {
	res, err := rewards.Tick(&s.pool, s.totals.TotalBonded, t.tick)
	if err != nil {
		return err
	}
	r.Booked = res.Booked

	score, err := liveliness.CurrentScore(s.ledger, t.now, t.config.LockPeriod)
	if err != nil {
		return err
	}
	if t.ledger.policy.Score == domain.ScoreBond {
		bypass = true
	}
	out, err := rewards.Settle(&s.pool, &s.ledger, s.totals.TotalBonded, score, bypass, t.ledger.policy.Forfeit)
	if err != nil {
		return err
	}
	r.Credited = out.Credited
	r.Forfeited = out.Forfeited
	return nil
}

// rebase re-weights the staker's liveliness for c. It must run before the
// staker's bonded total changes.
func (t *Txn) rebase(s *state, c liveliness.Change) error {
	_, err := liveliness.Apply(&s.ledger, t.now, t.config.LockPeriod, c)
	return err
}

// restake returns the liveliness change for relocking pos at newAmount, which
// must not be below its current amount.
func (t *Txn) restake(s *state, pos domain.BondPosition, newAmount uint64) (liveliness.Change, error) {
	removed, err := liveliness.RemainingWeight(pos.BondAmount, pos.UnbondTimestamp, t.now, t.config.LockPeriod)
	if err != nil {
		return liveliness.Change{}, err
	}
	added := liveliness.FullWeight(newAmount)
	total, err := fixedmath.Add(s.ledger.TotalBonded, newAmount-pos.BondAmount)
	if err != nil {
		return liveliness.Change{}, fmt.Errorf("bonding: staker total: %w", err)
	}
	return liveliness.Change{Removed: removed, Added: added, NewTotal: total}, nil
}

// payable discounts the staker's claimable balance for payout. Under
// ScoreBond the bound position's own score applies and the remainder is
// forfeited here; under ScoreLedger it was already discounted at settlement.
func (t *Txn) payable(s *state, pos domain.BondPosition, r *Receipt) (uint64, error) {
	claimable := s.ledger.Claimable
	if t.ledger.policy.Score != domain.ScoreBond {
		return claimable, nil
	}
	score := liveliness.BondScore(t.config.LockPeriod, t.now, pos.UnbondTimestamp)
	paid, forfeited, err := rewards.Discount(claimable, score, false)
	if err != nil {
		return 0, err
	}
	if err := rewards.ApplyForfeit(&s.pool, 0, forfeited, t.ledger.policy.Forfeit); err != nil {
		return 0, err
	}
	r.Forfeited += forfeited
	return paid, nil
}

// addBonded moves amount into the staker and vault totals.
func addBonded(s *state, amount uint64) error {
	staker, err := fixedmath.Add(s.ledger.TotalBonded, amount)
	if err != nil {
		return fmt.Errorf("bonding: staker total: %w", err)
	}
	vault, err := fixedmath.Add(s.totals.TotalBonded, amount)
	if err != nil {
		return fmt.Errorf("bonding: vault total: %w", err)
	}
	s.ledger.TotalBonded = staker
	s.totals.TotalBonded = vault
	return nil
}

// subBonded moves amount out of the staker and vault totals.
func subBonded(s *state, amount uint64) error {
	staker, err := fixedmath.Sub(s.ledger.TotalBonded, amount)
	if err != nil {
		return fmt.Errorf("bonding: staker total: %w", err)
	}
	vault, err := fixedmath.Sub(s.totals.TotalBonded, amount)
	if err != nil {
		return fmt.Errorf("bonding: vault total: %w", err)
	}
	s.ledger.TotalBonded = staker
	s.totals.TotalBonded = vault
	return nil
}

// relock restarts a position's lock at now.
func (t *Txn) relock(pos *domain.BondPosition) error {
	unbond, err := fixedmath.Add(t.now, t.config.LockPeriod)
	if err != nil {
		return fmt.Errorf("bonding: unbond timestamp: %w", err)
	}
	pos.BondTimestamp = t.now
	pos.UnbondTimestamp = unbond
	return nil
}

func requireBound(s *state, id uint32) error {
	if s.ledger.BoundPositionID != id || id == 0 {
		return fmt.Errorf("bonding: position %d: %w", id, domain.ErrVaultBondMismatch)
	}
	return nil
}

func requireBalance(account string, have, need uint64) error {
	if have < need {
		return fmt.Errorf("bonding: account %s holds %d, needs %d: %w", account, have, need, domain.ErrNotEnoughBalance)
	}
	return nil
}
