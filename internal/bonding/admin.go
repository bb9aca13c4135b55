package bonding

import (
	"context"
	"errors"
	"fmt"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
	"github.com/alanyoungcy/bondledger/internal/rewards"
)

// AddRewards funds the vault's reserve from account from. The pool is ticked
// first so emission up to now is booked against the old reserve.
func (t *Txn) AddRewards(ctx context.Context, from string, amount uint64) (Receipt, error) {
	r := t.receipt(domain.OpAddRewards, 0)
	r.Amount = amount
	if amount == 0 {
		return r, fmt.Errorf("bonding: add rewards: %w", domain.ErrWrongAmount)
	}
	balance, err := t.tx.Balance(ctx, from)
	if err != nil {
		return r, fmt.Errorf("bonding: funder balance: %w", err)
	}
	if err := requireBalance(from, balance, amount); err != nil {
		return r, err
	}

	err = t.run(func(s *state) error {
		res, err := rewards.Tick(&s.pool, s.totals.TotalBonded, t.tick)
		if err != nil {
			return err
		}
		r.Booked = res.Booked
		reserve, err := fixedmath.Add(s.pool.Reserve, amount)
		if err != nil {
			return fmt.Errorf("bonding: reserve: %w", err)
		}
		s.pool.Reserve = reserve
		s.transfer(from, t.vaultAccount(), from, amount)
		return nil
	})
	return r, err
}

// RemoveRewards takes amount back out of the reserve and pays it to to.
func (t *Txn) RemoveRewards(ctx context.Context, to string, amount uint64) (Receipt, error) {
	r := t.receipt(domain.OpRemoveRewards, 0)
	r.Amount = amount
	if amount == 0 {
		return r, fmt.Errorf("bonding: remove rewards: %w", domain.ErrWrongAmount)
	}
	vaultBalance, err := t.tx.Balance(ctx, t.vaultAccount())
	if err != nil {
		return r, fmt.Errorf("bonding: vault balance: %w", err)
	}

	err = t.run(func(s *state) error {
		res, err := rewards.Tick(&s.pool, s.totals.TotalBonded, t.tick)
		if err != nil {
			return err
		}
		r.Booked = res.Booked
		if err := requireBalance("reserve", s.pool.Reserve, amount); err != nil {
			return err
		}
		if err := requireBalance(t.vaultAccount(), vaultBalance, amount); err != nil {
			return err
		}
		s.pool.Reserve -= amount
		r.Paid = amount
		s.transfer(t.vaultAccount(), to, t.vaultAccount(), amount)
		return nil
	})
	return r, err
}

// PoolSettings is the admin-controlled part of a reward pool.
type PoolSettings struct {
	State       domain.State     `json:"state"`
	RatePerTick uint64           `json:"rate_per_tick"`
	MaxAprBps   uint64           `json:"max_apr_bps"`
	CapPolicy   domain.CapPolicy `json:"cap_policy"`
}

// ConfigurePool creates or updates vault's reward pool. An existing pool is
// ticked at its old settings first. Activating a pool restarts its tick
// counter at now so the inactive interval is never emitted.
func (l *Ledger) ConfigurePool(ctx context.Context, tx domain.LedgerTx, vault string, set PoolSettings) (domain.RewardPool, error) {
	_, tick := l.clock.Now()
	totals, err := ensureTotals(ctx, tx, vault)
	if err != nil {
		return domain.RewardPool{}, err
	}

	pool, err := tx.Pool(ctx, vault)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		pool = domain.RewardPool{Vault: vault, LastTick: tick}
	case err != nil:
		return domain.RewardPool{}, fmt.Errorf("bonding: load reward pool %s: %w", vault, err)
	default:
		if _, err := rewards.Tick(&pool, totals.TotalBonded, tick); err != nil {
			return domain.RewardPool{}, err
		}
	}

	if pool.State != domain.StateActive && set.State == domain.StateActive {
		pool.LastTick = tick
	}
	pool.State = set.State
	pool.RatePerTick = set.RatePerTick
	pool.MaxAprBps = set.MaxAprBps
	pool.CapPolicy = set.CapPolicy

	if err := tx.PutPool(ctx, pool); err != nil {
		return domain.RewardPool{}, fmt.Errorf("bonding: store reward pool: %w", err)
	}
	return pool, nil
}

// ConfigureBond creates or replaces vault's bond config.
func (l *Ledger) ConfigureBond(ctx context.Context, tx domain.LedgerTx, cfg domain.BondConfig) (domain.BondConfig, error) {
	if cfg.RequiredBondAmount == 0 {
		return domain.BondConfig{}, fmt.Errorf("bonding: required bond amount: %w", domain.ErrWrongAmount)
	}
	if cfg.WithdrawPenaltyBps > fixedmath.MaxPercent {
		return domain.BondConfig{}, fmt.Errorf("bonding: withdraw penalty %d bps: %w", cfg.WithdrawPenaltyBps, domain.ErrWrongValue)
	}
	if _, err := ensureTotals(ctx, tx, cfg.Vault); err != nil {
		return domain.BondConfig{}, err
	}
	if err := tx.PutBondConfig(ctx, cfg); err != nil {
		return domain.BondConfig{}, fmt.Errorf("bonding: store bond config: %w", err)
	}
	return cfg, nil
}

func ensureTotals(ctx context.Context, tx domain.LedgerTx, vault string) (domain.VaultTotals, error) {
	totals, err := tx.VaultTotals(ctx, vault)
	if err == nil {
		return totals, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.VaultTotals{}, fmt.Errorf("bonding: load vault totals %s: %w", vault, err)
	}
	totals = domain.VaultTotals{Vault: vault}
	if err := tx.PutVaultTotals(ctx, totals); err != nil {
		return domain.VaultTotals{}, fmt.Errorf("bonding: init vault totals: %w", err)
	}
	return totals, nil
}
