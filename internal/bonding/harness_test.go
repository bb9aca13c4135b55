package bonding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/proof"
	"github.com/alanyoungcy/bondledger/internal/store/memory"
)

const (
	testVault = "v1"
	testTree  = "tree1"
)

type fakeClock struct{ now, tick uint64 }

func (c *fakeClock) Now() (uint64, uint64) { return c.now, c.tick }

func (c *fakeClock) set(now, tick uint64) { c.now, c.tick = now, tick }

type fakeVerifier struct{ err error }

func (v *fakeVerifier) Verify(_ context.Context, ref domain.AssetRef, identity, _ string) (string, error) {
	if v.err != nil {
		return "", v.err
	}
	if ref.Kind == domain.AssetCompressed {
		return proof.AssetID(identity, ref.Nonce)
	}
	return ref.Mint, nil
}

type harness struct {
	t        *testing.T
	ctx      context.Context
	store    *memory.Store
	clock    *fakeClock
	verifier *fakeVerifier
	ledger   *Ledger
}

// newHarness builds a vault with lock 1000, bond size 500, a 10% early
// withdraw penalty and an active pool emitting 100 per tick from a 10000
// reserve. alice and bob each hold 10000 tokens.
func newHarness(t *testing.T, policy Policy) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		ctx:      context.Background(),
		store:    memory.New(),
		clock:    &fakeClock{},
		verifier: &fakeVerifier{},
	}
	h.ledger = New(h.verifier, h.clock, policy)

	err := h.store.InTx(h.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		if _, err := h.ledger.ConfigureBond(ctx, tx, domain.BondConfig{
			Vault:              testVault,
			State:              domain.StateActive,
			LockPeriod:         1000,
			RequiredBondAmount: 500,
			WithdrawPenaltyBps: 1000,
			CollectionIdentity: testTree,
		}); err != nil {
			return err
		}
		if _, err := h.ledger.ConfigurePool(ctx, tx, testVault, PoolSettings{
			State:       domain.StateActive,
			RatePerTick: 100,
		}); err != nil {
			return err
		}
		for _, acct := range []string{"alice", "bob", "treasury"} {
			if err := tx.Credit(ctx, acct, 10_000); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	h.do(Scope{Vault: testVault}, func(txn *Txn) error {
		_, err := txn.AddRewards(h.ctx, "treasury", 10_000)
		return err
	})
	return h
}

// try runs fn in one committed transaction and returns its error.
func (h *harness) try(scope Scope, fn func(txn *Txn) error) error {
	return h.store.InTx(h.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		txn, err := h.ledger.Begin(ctx, tx, scope)
		if err != nil {
			return err
		}
		if err := fn(txn); err != nil {
			return err
		}
		return txn.Commit(ctx)
	})
}

func (h *harness) inTx(fn func(ctx context.Context, tx domain.LedgerTx) error) {
	h.t.Helper()
	require.NoError(h.t, h.store.InTx(h.ctx, fn))
}

func (h *harness) do(scope Scope, fn func(txn *Txn) error) {
	h.t.Helper()
	require.NoError(h.t, h.try(scope, fn))
}

func (h *harness) bond(owner string, id uint32, nonce uint64) Receipt {
	h.t.Helper()
	var r Receipt
	h.do(Scope{Vault: testVault, Owner: owner, Positions: []uint32{id}}, func(txn *Txn) error {
		var err error
		r, err = txn.Bond(h.ctx, BondRequest{
			ID:      id,
			Amount:  500,
			IsVault: true,
			Asset:   domain.AssetRef{Kind: domain.AssetCompressed, Tree: testTree, Nonce: nonce},
		})
		return err
	})
	return r
}

func (h *harness) bind(owner string, id uint32, nonce uint64) {
	h.t.Helper()
	h.do(Scope{Vault: testVault, Owner: owner, Positions: []uint32{id}}, func(txn *Txn) error {
		_, err := txn.BindVaultBond(id, nonce)
		return err
	})
}

func (h *harness) claim(owner string, id uint32) (Receipt, error) {
	var r Receipt
	err := h.try(Scope{Vault: testVault, Owner: owner, Positions: []uint32{id}}, func(txn *Txn) error {
		var err error
		r, err = txn.ClaimRewards(h.ctx, id)
		return err
	})
	return r, err
}

type snapshot struct {
	pool      domain.RewardPool
	totals    domain.VaultTotals
	staker    domain.StakerLedger
	positions []domain.BondPosition
	balances  map[string]uint64
}

func (h *harness) snapshot(owner string) snapshot {
	h.t.Helper()
	var s snapshot
	err := h.store.View(h.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		var err error
		if s.pool, err = tx.Pool(ctx, testVault); err != nil {
			return err
		}
		if s.totals, err = tx.VaultTotals(ctx, testVault); err != nil {
			return err
		}
		s.staker, _ = tx.Staker(ctx, testVault, owner)
		if s.positions, err = tx.Positions(ctx, testVault, owner); err != nil {
			return err
		}
		s.balances = map[string]uint64{}
		for _, acct := range []string{owner, domain.VaultAccount(testVault), "treasury"} {
			if s.balances[acct], err = tx.Balance(ctx, acct); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(h.t, err)
	return s
}

func (s snapshot) position(id uint32) domain.BondPosition {
	for _, p := range s.positions {
		if p.ID == id {
			return p
		}
	}
	return domain.BondPosition{}
}
