package bonding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func (h *harness) preview(owner string, positions ...uint32) (Preview, error) {
	var p Preview
	err := h.store.View(h.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		txn, err := h.ledger.Begin(ctx, tx, Scope{Vault: testVault, Owner: owner, Positions: positions})
		if err != nil {
			return err
		}
		p, err = txn.Preview()
		return err
	})
	return p, err
}

func TestPreviewMatchesClaim(t *testing.T) {
	h := twoStakers(t, Policy{}, 500)
	before := h.snapshot("alice")

	p, err := h.preview("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(250), p.Pending)
	assert.Equal(t, uint64(250), p.Payable)
	assert.Equal(t, uint64(5_000), p.Staker.LivelinessScore)
	assert.Equal(t, uint64(9_000), p.Pool.Reserve)

	// nothing was written
	assert.Equal(t, before, h.snapshot("alice"))

	r, err := h.claim("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, p.Payable, r.Paid)
}

func TestPreviewUnbound(t *testing.T) {
	h := twoStakers(t, Policy{}, 10)

	p, err := h.preview("bob", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), p.Pending)
	assert.Zero(t, p.Payable)

	_, err = h.preview("carol")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestProjectPool(t *testing.T) {
	h := twoStakers(t, Policy{}, 10)

	err := h.store.View(h.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		txn, err := h.ledger.Begin(ctx, tx, Scope{Vault: testVault})
		if err != nil {
			return err
		}
		pool, err := txn.ProjectPool()
		if err != nil {
			return err
		}
		assert.Equal(t, uint64(9_000), pool.Reserve)
		assert.Equal(t, uint64(10), pool.LastTick)
		assert.Zero(t, txn.Pool().LastTick)
		return nil
	})
	require.NoError(t, err)
}
