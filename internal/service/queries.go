package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/domain"
)

// VaultView is a vault's configuration and reward state.
type VaultView struct {
	Config domain.BondConfig  `json:"config"`
	Pool   domain.RewardPool  `json:"pool"`
	Totals domain.VaultTotals `json:"totals"`
	// Balance is what the vault token account holds.
	Balance uint64 `json:"balance"`
}

// Vault reads a vault's stored records.
func (s *LedgerService) Vault(ctx context.Context, vault string) (VaultView, error) {
	var v VaultView
	err := s.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		if v.Config, err = tx.BondConfig(ctx, vault); err != nil {
			return fmt.Errorf("service: bond config %s: %w", vault, err)
		}
		if v.Pool, err = tx.Pool(ctx, vault); err != nil {
			return fmt.Errorf("service: reward pool %s: %w", vault, err)
		}
		if v.Totals, err = tx.VaultTotals(ctx, vault); err != nil {
			return fmt.Errorf("service: vault totals %s: %w", vault, err)
		}
		if v.Balance, err = tx.Balance(ctx, domain.VaultAccount(vault)); err != nil {
			return fmt.Errorf("service: vault balance %s: %w", vault, err)
		}
		return nil
	})
	return v, err
}

// Staker previews owner's ledger in vault as if settled now. The stored
// records are not changed.
func (s *LedgerService) Staker(ctx context.Context, vault, owner string) (bonding.Preview, error) {
	var p bonding.Preview
	err := s.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		staker, err := tx.Staker(ctx, vault, owner)
		if err != nil {
			return fmt.Errorf("service: staker %s: %w", owner, err)
		}
		var scope []uint32
		if staker.BoundPositionID != 0 {
			scope = append(scope, staker.BoundPositionID)
		}
		txn, err := s.ledger.Begin(ctx, tx, ownerScope(vault, owner, scope...))
		if err != nil {
			return err
		}
		p, err = txn.Preview()
		return err
	})
	return p, err
}

// Positions lists owner's positions in vault, ordered by id.
func (s *LedgerService) Positions(ctx context.Context, vault, owner string) ([]domain.BondPosition, error) {
	var out []domain.BondPosition
	err := s.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Positions(ctx, vault, owner)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("service: positions %s/%s: %w", vault, owner, err)
	}
	return out, nil
}

// Balance returns account's token balance. Unknown accounts hold zero.
func (s *LedgerService) Balance(ctx context.Context, account string) (uint64, error) {
	var out uint64
	err := s.store.View(ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		out, err = tx.Balance(ctx, account)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("service: balance %s: %w", account, err)
	}
	return out, nil
}

// Journal lists committed operations, newest first.
func (s *LedgerService) Journal(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	if s.journal == nil {
		return nil, nil
	}
	entries, err := s.journal.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("service: journal: %w", err)
	}
	return entries, nil
}
