package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/proof"
)

func ownerScope(vault, owner string, ids ...uint32) bonding.Scope {
	return bonding.Scope{Vault: vault, Owner: owner, Positions: ids}
}

// InitializeAddress creates owner's staker ledger in vault.
func (s *LedgerService) InitializeAddress(ctx context.Context, vault, owner string) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpInitializeAddress, ownerScope(vault, owner), func(_ context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.InitializeAddress()
	})
}

// Bond opens position req.ID for owner.
func (s *LedgerService) Bond(ctx context.Context, vault, owner string, req bonding.BondRequest) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpBond, ownerScope(vault, owner, req.ID), func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.Bond(ctx, req)
	})
}

// Renew restarts the lock on position id.
func (s *LedgerService) Renew(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpRenew, ownerScope(vault, owner, id), func(_ context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.Renew(id)
	})
}

// TopUp adds amount to position id and restarts its lock.
func (s *LedgerService) TopUp(ctx context.Context, vault, owner string, id uint32, amount uint64) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpTopUp, ownerScope(vault, owner, id), func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.TopUp(ctx, id, amount)
	})
}

// Withdraw closes position id and pays out its principal less any penalty.
func (s *LedgerService) Withdraw(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpWithdraw, ownerScope(vault, owner, id), func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.Withdraw(ctx, id)
	})
}

// StakeRewards compounds owner's rewards into bound position id.
func (s *LedgerService) StakeRewards(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpStakeRewards, ownerScope(vault, owner, id), func(_ context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.StakeRewards(id)
	})
}

// ClaimRewards pays owner's rewards through bound position id.
func (s *LedgerService) ClaimRewards(ctx context.Context, vault, owner string, id uint32) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpClaimRewards, ownerScope(vault, owner, id), func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.ClaimRewards(ctx, id)
	})
}

// BondRange creates a child position under req.ParentID.
func (s *LedgerService) BondRange(ctx context.Context, vault, owner string, req bonding.BondRangeRequest) (bonding.Receipt, error) {
	scope := ownerScope(vault, owner, req.ID, req.ParentID)
	return s.execute(ctx, domain.OpBondRange, scope, func(_ context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.BondRange(req)
	})
}

// BindVaultBond binds owner's claims to vault position id.
func (s *LedgerService) BindVaultBond(ctx context.Context, vault, owner string, id uint32, nonce uint64) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpBindVaultBond, ownerScope(vault, owner, id), func(_ context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.BindVaultBond(id, nonce)
	})
}

// AddRewards moves amount from account from into vault's reserve.
func (s *LedgerService) AddRewards(ctx context.Context, vault, from string, amount uint64) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpAddRewards, bonding.Scope{Vault: vault}, func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.AddRewards(ctx, from, amount)
	})
}

// RemoveRewards pays amount out of vault's reserve to account to.
func (s *LedgerService) RemoveRewards(ctx context.Context, vault, to string, amount uint64) (bonding.Receipt, error) {
	return s.execute(ctx, domain.OpRemoveRewards, bonding.Scope{Vault: vault}, func(ctx context.Context, txn *bonding.Txn) (bonding.Receipt, error) {
		return txn.RemoveRewards(ctx, to, amount)
	})
}

// ConfigureBond creates or replaces a vault's bond config.
func (s *LedgerService) ConfigureBond(ctx context.Context, cfg domain.BondConfig) (domain.BondConfig, error) {
	var out domain.BondConfig
	_, err := s.mutate(ctx, domain.OpSetBondConfig, cfg.Vault, "", func(ctx context.Context, tx domain.LedgerTx) (bonding.Receipt, error) {
		var err error
		out, err = s.ledger.ConfigureBond(ctx, tx, cfg)
		return bonding.Receipt{}, err
	})
	return out, err
}

// ConfigurePool creates or updates a vault's reward pool.
func (s *LedgerService) ConfigurePool(ctx context.Context, vault string, set bonding.PoolSettings) (domain.RewardPool, error) {
	var out domain.RewardPool
	_, err := s.mutate(ctx, domain.OpSetRewardPool, vault, "", func(ctx context.Context, tx domain.LedgerTx) (bonding.Receipt, error) {
		var err error
		out, err = s.ledger.ConfigurePool(ctx, tx, vault, set)
		return bonding.Receipt{}, err
	})
	return out, err
}

// Credit mints amount into account. It exists to fund accounts on devnets
// and in tests; production deployments fund accounts out of band.
func (s *LedgerService) Credit(ctx context.Context, account string, amount uint64) (bonding.Receipt, error) {
	if account == "" || amount == 0 {
		return bonding.Receipt{}, fmt.Errorf("service: credit %q %d: %w", account, amount, domain.ErrWrongAmount)
	}
	return s.mutate(ctx, domain.OpCredit, domain.CreditVault, account, func(ctx context.Context, tx domain.LedgerTx) (bonding.Receipt, error) {
		if err := tx.Credit(ctx, account, amount); err != nil {
			return bonding.Receipt{}, err
		}
		return bonding.Receipt{Op: domain.OpCredit, Vault: domain.CreditVault, Owner: account, Amount: amount}, nil
	})
}

// RegisterAsset records NFT metadata ownership proofs are checked against.
func (s *LedgerService) RegisterAsset(ctx context.Context, meta domain.AssetMetadata) error {
	if meta.Mint == "" || meta.Collection == "" {
		return fmt.Errorf("service: register asset: %w", domain.ErrWrongValue)
	}
	if err := s.registry.PutAsset(ctx, meta); err != nil {
		return fmt.Errorf("service: register asset %s: %w", meta.Mint, err)
	}
	s.logger.InfoContext(ctx, "asset registered",
		slog.String("mint", meta.Mint),
		slog.String("collection", meta.Collection),
	)
	return nil
}

// SetTreeRoot records the current root of a compressed asset tree.
func (s *LedgerService) SetTreeRoot(ctx context.Context, tree, root string) error {
	if tree == "" {
		return fmt.Errorf("service: set tree root: %w", domain.ErrWrongValue)
	}
	if err := proof.ValidateHash(root); err != nil {
		return fmt.Errorf("service: set tree root %s: %w", tree, err)
	}
	if err := s.registry.PutTreeRoot(ctx, tree, root); err != nil {
		return fmt.Errorf("service: set tree root %s: %w", tree, err)
	}
	s.logger.InfoContext(ctx, "tree root updated", slog.String("tree", tree), slog.String("root", root))
	return nil
}
