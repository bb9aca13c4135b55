package bonding

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
	"github.com/alanyoungcy/bondledger/internal/liveliness"
	"github.com/alanyoungcy/bondledger/internal/rewards"
)

// BondRequest opens position ID for Amount against Asset.
type BondRequest struct {
	ID      uint32          `json:"id"`
	Amount  uint64          `json:"amount"`
	IsVault bool            `json:"is_vault"`
	Asset   domain.AssetRef `json:"asset"`
}

// InitializeAddress creates the staker's ledger with its snapshot at the
// current index, so it is never credited rewards booked before it existed.
func (t *Txn) InitializeAddress() (Receipt, error) {
	r := t.receipt(domain.OpInitializeAddress, 0)
	err := t.run(func(s *state) error {
		if s.hasLedger {
			return fmt.Errorf("bonding: staker %s: %w", t.scope.Owner, domain.ErrAlreadyExists)
		}
		return t.initLedger(s, &r)
	})
	return r, err
}

func (t *Txn) initLedger(s *state, r *Receipt) error {
	res, err := rewards.Tick(&s.pool, s.totals.TotalBonded, t.tick)
	if err != nil {
		return err
	}
	r.Booked += res.Booked
	s.ledger = domain.StakerLedger{
		Vault:            t.scope.Vault,
		Owner:            t.scope.Owner,
		LastUpdate:       t.now,
		PerShareSnapshot: s.pool.PerShareIndex,
	}
	s.hasLedger = true
	return nil
}

// Bond opens a new Active position. The staker's ledger is created on first
// bond, and the settlement that precedes it is never discounted.
func (t *Txn) Bond(ctx context.Context, req BondRequest) (Receipt, error) {
	r := t.receipt(domain.OpBond, req.ID)
	r.Amount = req.Amount

	if t.config.State != domain.StateActive {
		return r, fmt.Errorf("bonding: bond: %w", domain.ErrProgramPaused)
	}
	if req.Amount != t.config.RequiredBondAmount {
		return r, fmt.Errorf("bonding: bond amount %d, required %d: %w",
			req.Amount, t.config.RequiredBondAmount, domain.ErrWrongAmount)
	}
	var counter uint32
	if t.st.hasLedger {
		counter = t.st.ledger.PositionCounter
	}
	if uint64(counter)+1 != uint64(req.ID) {
		return r, fmt.Errorf("bonding: bond id %d after %d: %w", req.ID, counter, domain.ErrWrongBondID)
	}
	if _, exists := t.st.positions[req.ID]; exists {
		return r, fmt.Errorf("bonding: position %d: %w", req.ID, domain.ErrAlreadyExists)
	}

	assetID, err := t.ledger.verifier.Verify(ctx, req.Asset, t.config.CollectionIdentity, t.scope.Owner)
	if err != nil {
		return r, fmt.Errorf("bonding: verify ownership: %w", err)
	}
	balance, err := t.tx.Balance(ctx, t.scope.Owner)
	if err != nil {
		return r, fmt.Errorf("bonding: owner balance: %w", err)
	}
	if err := requireBalance(t.scope.Owner, balance, req.Amount); err != nil {
		return r, err
	}

	err = t.run(func(s *state) error {
		if !s.hasLedger {
			if err := t.initLedger(s, &r); err != nil {
				return err
			}
		}
		if err := t.settle(s, true, &r); err != nil {
			return err
		}
		added := liveliness.FullWeight(req.Amount)
		total, err := fixedmath.Add(s.ledger.TotalBonded, req.Amount)
		if err != nil {
			return fmt.Errorf("bonding: staker total: %w", err)
		}
		if err := t.rebase(s, liveliness.Change{Added: added, NewTotal: total}); err != nil {
			return err
		}

		pos := domain.BondPosition{
			Vault:      t.scope.Vault,
			Owner:      t.scope.Owner,
			ID:         req.ID,
			State:      domain.PositionActive,
			IsVault:    req.IsVault,
			BondAmount: req.Amount,
			AssetID:    assetID,
		}
		if err := t.relock(&pos); err != nil {
			return err
		}
		if err := addBonded(s, req.Amount); err != nil {
			return err
		}
		s.ledger.PositionCounter = req.ID
		s.putPosition(pos)
		s.transfer(t.scope.Owner, t.vaultAccount(), t.scope.Owner, req.Amount)
		return nil
	})
	return r, err
}
