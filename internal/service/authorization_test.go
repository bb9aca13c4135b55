package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/bonding"
	"github.com/alanyoungcy/bondledger/internal/crypto"
	"github.com/alanyoungcy/bondledger/internal/domain"
)

const testChainID = 1

func testSigner(t *testing.T, keyByte string) *crypto.OwnerSigner {
	t.Helper()
	s, err := crypto.NewOwnerSigner(strings.Repeat(keyByte, 32), testChainID)
	require.NoError(t, err)
	return s
}

// newSignedFixture is newFixture with owner signatures enforced. Alice and
// mallory are funded addresses holding leaves 0 and 1 of tree1.
func newSignedFixture(t *testing.T) (*fixture, *crypto.OwnerSigner, *crypto.OwnerSigner) {
	t.Helper()
	f := newFixture(t, nil)
	f.svc.owners = crypto.NewOwnerVerifier(testChainID)
	alice, mallory := testSigner(t, "11"), testSigner(t, "22")
	for _, s := range []*crypto.OwnerSigner{alice, mallory} {
		_, err := f.svc.Credit(f.ctx, s.Address(), 10_000)
		require.NoError(t, err)
	}
	f.assets = f.plantTree(alice.Address(), mallory.Address())
	return f, alice, mallory
}

func (f *fixture) signedBy(s *crypto.OwnerSigner, op string, bondID uint32, nonce uint64) context.Context {
	f.t.Helper()
	sig, err := s.Sign(crypto.Action{Op: op, Vault: vault, BondID: bondID, Nonce: nonce})
	require.NoError(f.t, err)
	return WithAuthorization(f.ctx, Authorization{Nonce: nonce, Signature: sig})
}

func (f *fixture) authNonce(owner string) uint64 {
	f.t.Helper()
	var nonce uint64
	require.NoError(f.t, f.store.View(f.ctx, func(ctx context.Context, tx domain.LedgerTx) error {
		l, err := tx.Staker(ctx, vault, owner)
		nonce = l.AuthNonce
		return err
	}))
	return nonce
}

func TestOwnerOperationsRequireSignature(t *testing.T) {
	f, alice, mallory := newSignedFixture(t)
	owner := alice.Address()
	req := bonding.BondRequest{ID: 1, Amount: 500, IsVault: true, Asset: f.assets[owner]}

	_, err := f.svc.Bond(f.ctx, vault, owner, req)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))

	_, err = f.svc.Bond(f.signedBy(mallory, domain.OpBond, 1, 1), vault, owner, req)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	bal, err := f.svc.Balance(f.ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), bal)

	_, err = f.svc.Bond(f.signedBy(alice, domain.OpBond, 1, 1), vault, owner, req)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.authNonce(owner))
}

func TestWrongSignerCannotWithdraw(t *testing.T) {
	f, alice, mallory := newSignedFixture(t)
	owner := alice.Address()
	_, err := f.svc.Bond(f.signedBy(alice, domain.OpBond, 1, 1), vault, owner,
		bonding.BondRequest{ID: 1, Amount: 500, IsVault: true, Asset: f.assets[owner]})
	require.NoError(t, err)
	before := f.latestJournal()

	_, err = f.svc.Withdraw(f.signedBy(mallory, domain.OpWithdraw, 1, 2), vault, owner, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	// Alice's signature binds the operation and the position.
	_, err = f.svc.Withdraw(f.signedBy(alice, domain.OpRenew, 1, 2), vault, owner, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.Withdraw(f.signedBy(alice, domain.OpWithdraw, 2, 2), vault, owner, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	assert.Equal(t, before.ID, f.latestJournal().ID)
	positions, err := f.svc.Positions(f.ctx, vault, owner)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, domain.PositionActive, positions[0].State)

	r, err := f.svc.Withdraw(f.signedBy(alice, domain.OpWithdraw, 1, 2), vault, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(450), r.Paid)
}

func TestSignedNonceIsSingleUse(t *testing.T) {
	f, alice, _ := newSignedFixture(t)
	owner := alice.Address()
	req := bonding.BondRequest{ID: 1, Amount: 500, IsVault: true, Asset: f.assets[owner]}

	// A failed operation leaves its nonce unspent.
	bad := req
	bad.Amount = 499
	_, err := f.svc.Bond(f.signedBy(alice, domain.OpBond, 1, 7), vault, owner, bad)
	require.ErrorIs(t, err, domain.ErrWrongAmount)

	ctx := f.signedBy(alice, domain.OpBond, 1, 7)
	_, err = f.svc.Bond(ctx, vault, owner, req)
	require.NoError(t, err)

	_, err = f.svc.Renew(f.signedBy(alice, domain.OpRenew, 1, 7), vault, owner, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	_, err = f.svc.Renew(f.signedBy(alice, domain.OpRenew, 1, 3), vault, owner, 1)
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Renew(f.signedBy(alice, domain.OpRenew, 1, 8), vault, owner, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(8), f.authNonce(owner))
}

func TestVaultOperationsNeedNoOwnerSignature(t *testing.T) {
	f, _, _ := newSignedFixture(t)
	_, err := f.svc.AddRewards(f.ctx, vault, "treasury", 100)
	require.NoError(t, err)
}
