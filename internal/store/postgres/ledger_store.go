package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// LedgerStore implements domain.LedgerStore. InTx runs fn inside one
// database transaction and reads every row with FOR UPDATE, so operations on
// the same vault or staker serialize on row locks until commit.
type LedgerStore struct {
	pool *pgxpool.Pool
}

var _ domain.LedgerStore = (*LedgerStore)(nil)

// NewLedgerStore creates a new LedgerStore backed by the given connection pool.
func NewLedgerStore(pool *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{pool: pool}
}

// InTx runs fn in a read-write transaction. It commits only if fn returns nil.
func (s *LedgerStore) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx, lock: true})
	})
}

// View runs fn in a read-only transaction without row locks.
func (s *LedgerStore) View(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		return fn(ctx, &ledgerTx{tx: tx})
	})
}

type ledgerTx struct {
	tx   pgx.Tx
	lock bool
}

func (t *ledgerTx) forUpdate(query string) string {
	if t.lock {
		return query + " FOR UPDATE"
	}
	return query
}

func (t *ledgerTx) Pool(ctx context.Context, vault string) (domain.RewardPool, error) {
	query := t.forUpdate(`
		SELECT state, reserve::text, accumulated::text, burned::text, rate_per_tick::text,
		       per_share_index::text, last_tick::text, max_apr_bps::text, cap_policy
		FROM reward_pools WHERE vault = $1`)
	p := domain.RewardPool{Vault: vault}
	var state, capPolicy int16
	err := t.tx.QueryRow(ctx, query, vault).Scan(
		&state, num(&p.Reserve), num(&p.Accumulated), num(&p.Burned), num(&p.RatePerTick),
		num(&p.PerShareIndex), num(&p.LastTick), num(&p.MaxAprBps), &capPolicy,
	)
	if err != nil {
		return domain.RewardPool{}, notFound(err, "reward pool "+vault)
	}
	p.State = domain.State(state)
	p.CapPolicy = domain.CapPolicy(capPolicy)
	return p, nil
}

func (t *ledgerTx) PutPool(ctx context.Context, p domain.RewardPool) error {
	const query = `
		INSERT INTO reward_pools (vault, state, reserve, accumulated, burned, rate_per_tick,
		                          per_share_index, last_tick, max_apr_bps, cap_policy, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6::numeric,
		        $7::numeric, $8::numeric, $9::numeric, $10, NOW())
		ON CONFLICT (vault) DO UPDATE SET
			state = EXCLUDED.state, reserve = EXCLUDED.reserve,
			accumulated = EXCLUDED.accumulated, burned = EXCLUDED.burned,
			rate_per_tick = EXCLUDED.rate_per_tick, per_share_index = EXCLUDED.per_share_index,
			last_tick = EXCLUDED.last_tick, max_apr_bps = EXCLUDED.max_apr_bps,
			cap_policy = EXCLUDED.cap_policy, updated_at = NOW()`
	_, err := t.tx.Exec(ctx, query,
		p.Vault, int16(p.State), text(p.Reserve), text(p.Accumulated), text(p.Burned), text(p.RatePerTick),
		text(p.PerShareIndex), text(p.LastTick), text(p.MaxAprBps), int16(p.CapPolicy),
	)
	if err != nil {
		return fmt.Errorf("postgres: put reward pool %s: %w", p.Vault, err)
	}
	return nil
}

func (t *ledgerTx) VaultTotals(ctx context.Context, vault string) (domain.VaultTotals, error) {
	query := t.forUpdate(`SELECT total_bonded::text, total_penalized::text FROM vault_totals WHERE vault = $1`)
	v := domain.VaultTotals{Vault: vault}
	if err := t.tx.QueryRow(ctx, query, vault).Scan(num(&v.TotalBonded), num(&v.TotalPenalized)); err != nil {
		return domain.VaultTotals{}, notFound(err, "vault totals "+vault)
	}
	return v, nil
}

func (t *ledgerTx) PutVaultTotals(ctx context.Context, v domain.VaultTotals) error {
	const query = `
		INSERT INTO vault_totals (vault, total_bonded, total_penalized)
		VALUES ($1, $2::numeric, $3::numeric)
		ON CONFLICT (vault) DO UPDATE SET
			total_bonded = EXCLUDED.total_bonded, total_penalized = EXCLUDED.total_penalized`
	if _, err := t.tx.Exec(ctx, query, v.Vault, text(v.TotalBonded), text(v.TotalPenalized)); err != nil {
		return fmt.Errorf("postgres: put vault totals %s: %w", v.Vault, err)
	}
	return nil
}

func (t *ledgerTx) BondConfig(ctx context.Context, vault string) (domain.BondConfig, error) {
	query := t.forUpdate(`
		SELECT state, lock_period::text, required_bond_amount::text, withdraw_penalty_bps::text, collection_identity
		FROM bond_configs WHERE vault = $1`)
	c := domain.BondConfig{Vault: vault}
	var state int16
	err := t.tx.QueryRow(ctx, query, vault).Scan(
		&state, num(&c.LockPeriod), num(&c.RequiredBondAmount), num(&c.WithdrawPenaltyBps), &c.CollectionIdentity,
	)
	if err != nil {
		return domain.BondConfig{}, notFound(err, "bond config "+vault)
	}
	c.State = domain.State(state)
	return c, nil
}

func (t *ledgerTx) PutBondConfig(ctx context.Context, c domain.BondConfig) error {
	const query = `
		INSERT INTO bond_configs (vault, state, lock_period, required_bond_amount, withdraw_penalty_bps,
		                          collection_identity, updated_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, NOW())
		ON CONFLICT (vault) DO UPDATE SET
			state = EXCLUDED.state, lock_period = EXCLUDED.lock_period,
			required_bond_amount = EXCLUDED.required_bond_amount,
			withdraw_penalty_bps = EXCLUDED.withdraw_penalty_bps,
			collection_identity = EXCLUDED.collection_identity, updated_at = NOW()`
	_, err := t.tx.Exec(ctx, query,
		c.Vault, int16(c.State), text(c.LockPeriod), text(c.RequiredBondAmount), text(c.WithdrawPenaltyBps),
		c.CollectionIdentity,
	)
	if err != nil {
		return fmt.Errorf("postgres: put bond config %s: %w", c.Vault, err)
	}
	return nil
}
