package bonding

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

func withdraw(h *harness, owner string, id uint32) (Receipt, error) {
	var r Receipt
	err := h.try(Scope{Vault: testVault, Owner: owner, Positions: []uint32{id}}, func(txn *Txn) error {
		var err error
		r, err = txn.Withdraw(h.ctx, id)
		return err
	})
	return r, err
}

func TestWithdrawEarlyPaysPenalty(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)

	h.clock.set(500, 0)
	r, err := withdraw(h, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50), r.Penalty)
	assert.Equal(t, uint64(450), r.Paid)

	s := h.snapshot("alice")
	pos := s.position(1)
	assert.Equal(t, domain.PositionInactive, pos.State)
	assert.Zero(t, pos.BondAmount)
	assert.Equal(t, uint64(500), pos.UnbondTimestamp)
	assert.Zero(t, s.staker.TotalBonded)
	assert.Zero(t, s.staker.LivelinessScore)
	assert.Zero(t, s.totals.TotalBonded)
	assert.Equal(t, uint64(50), s.totals.TotalPenalized)
	assert.Equal(t, uint64(9_950), s.balances["alice"])

	_, err = withdraw(h, "alice", 1)
	assert.ErrorIs(t, err, domain.ErrBondInactive)
}

func TestWithdrawAtUnbondHasNoPenalty(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)

	h.clock.set(1000, 0)
	r, err := withdraw(h, "alice", 1)
	require.NoError(t, err)
	assert.Zero(t, r.Penalty)
	assert.Equal(t, uint64(500), r.Paid)
}

func TestWithdrawBoundPositionKeepsRewards(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)
	h.bind("alice", 1, 0)

	// half way through the lock alice's score is 5000, but the withdraw
	// settlement credits the full 1000 booked over 10 ticks
	h.clock.set(500, 10)
	r, err := withdraw(h, "alice", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), r.Credited)
	assert.Zero(t, r.Forfeited)
	assert.True(t, r.Unbound)

	s := h.snapshot("alice")
	assert.Zero(t, s.staker.BoundPositionID)
	assert.Equal(t, uint64(1000), s.staker.Claimable)

	_, err = h.claim("alice", 1)
	assert.ErrorIs(t, err, domain.ErrVaultBondMismatch)

	h.bond("alice", 2, 1)
	h.bind("alice", 2, 1)
	r, err = h.claim("alice", 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), r.Paid)
	assert.Zero(t, h.snapshot("alice").staker.Claimable)
}

func TestWithdrawUnboundPositionKeepsBinding(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)
	h.bond("alice", 2, 1)
	h.bind("alice", 1, 0)

	r, err := withdraw(h, "alice", 2)
	require.NoError(t, err)
	assert.False(t, r.Unbound)
	assert.Equal(t, uint32(1), h.snapshot("alice").staker.BoundPositionID)
}

func TestRenewResetsLockAndScore(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)

	h.clock.set(500, 0)
	h.do(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{1}}, func(txn *Txn) error {
		_, err := txn.Renew(1)
		return err
	})

	s := h.snapshot("alice")
	assert.Equal(t, uint64(500), s.position(1).BondTimestamp)
	assert.Equal(t, uint64(1500), s.position(1).UnbondTimestamp)
	assert.Equal(t, uint64(500), s.position(1).BondAmount)
	assert.Equal(t, uint64(10_000), s.staker.LivelinessScore)
	assert.Equal(t, uint64(500), s.staker.LastUpdate)
}

func TestTopUp(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)
	h.do(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{2}}, func(txn *Txn) error {
		_, err := txn.Bond(h.ctx, BondRequest{ID: 2, Amount: 500, Asset: domain.AssetRef{Kind: domain.AssetNFT, Mint: "m"}})
		return err
	})

	h.clock.set(100, 0)
	topUp := func(id uint32, amount uint64) error {
		return h.try(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{id}}, func(txn *Txn) error {
			_, err := txn.TopUp(h.ctx, id, amount)
			return err
		})
	}
	assert.ErrorIs(t, topUp(2, 100), domain.ErrBondNotVault)
	assert.ErrorIs(t, topUp(1, 0), domain.ErrWrongAmount)
	require.NoError(t, topUp(1, 250))

	s := h.snapshot("alice")
	assert.Equal(t, uint64(750), s.position(1).BondAmount)
	assert.Equal(t, uint64(1100), s.position(1).UnbondTimestamp)
	assert.Equal(t, uint64(1250), s.staker.TotalBonded)
	assert.Equal(t, uint64(1250), s.totals.TotalBonded)
	assert.Equal(t, uint64(10_000-1250), s.balances["alice"])
}

// twoStakers bonds 500 each for alice and bob at time zero and binds
// alice's position, then advances ten ticks so 1000 is booked.
func twoStakers(t *testing.T, policy Policy, now uint64) *harness {
	t.Helper()
	h := newHarness(t, policy)
	h.bond("alice", 1, 0)
	h.bond("bob", 1, 1)
	h.bind("alice", 1, 0)
	h.clock.set(now, 10)
	return h
}

func TestClaimFreshStakerGetsFullShare(t *testing.T) {
	h := twoStakers(t, Policy{}, 10)

	r, err := h.claim("alice", 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), r.Booked)
	assert.Equal(t, uint64(500), r.Credited)
	assert.Equal(t, uint64(500), r.Paid)

	s := h.snapshot("alice")
	assert.Equal(t, fixedmath.DivisionSafetyConst, s.pool.PerShareIndex)
	assert.Equal(t, uint64(9_000), s.pool.Reserve)
	assert.Equal(t, uint64(500), s.pool.Accumulated)
	assert.Zero(t, s.staker.Claimable)
	assert.Equal(t, uint64(10_000), s.balances["alice"])

	// no time passed: nothing more to pay
	r, err = h.claim("alice", 1)
	require.NoError(t, err)
	assert.Zero(t, r.Paid)
	assert.Equal(t, uint64(10_000), h.snapshot("alice").balances["alice"])
}

func TestClaimStaleStakerIsDiscounted(t *testing.T) {
	tests := []struct {
		name        string
		policy      domain.ForfeitPolicy
		wantReserve uint64
		wantBurned  uint64
	}{
		{"burn", domain.ForfeitBurn, 9_000, 250},
		{"return", domain.ForfeitReturn, 9_250, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := twoStakers(t, Policy{Forfeit: tt.policy}, 500)

			r, err := h.claim("alice", 1)
			require.NoError(t, err)
			assert.Equal(t, uint64(250), r.Paid)
			assert.Equal(t, uint64(250), r.Forfeited)

			s := h.snapshot("alice")
			assert.Equal(t, tt.wantReserve, s.pool.Reserve)
			assert.Equal(t, tt.wantBurned, s.pool.Burned)
			assert.Equal(t, uint64(500), s.pool.Accumulated)
			assert.Equal(t, uint64(5_000), s.staker.LivelinessScore)
		})
	}
}

func TestClaimWithBondScore(t *testing.T) {
	h := twoStakers(t, Policy{Score: domain.ScoreBond}, 500)

	r, err := h.claim("alice", 1)
	require.NoError(t, err)
	// settlement is undiscounted; the bound position scores 5000 at t=500
	assert.Equal(t, uint64(500), r.Credited)
	assert.Equal(t, uint64(250), r.Paid)
	assert.Equal(t, uint64(250), r.Forfeited)

	s := h.snapshot("alice")
	assert.Zero(t, s.staker.Claimable)
	assert.Equal(t, uint64(250), s.pool.Burned)
}

func TestClaimPreconditions(t *testing.T) {
	h := twoStakers(t, Policy{}, 10)

	_, err := h.claim("bob", 1)
	assert.ErrorIs(t, err, domain.ErrVaultBondMismatch)

	_, err = h.claim("alice", 2)
	assert.ErrorIs(t, err, domain.ErrVaultBondMismatch)

	h.inTx(func(ctx context.Context, tx domain.LedgerTx) error {
		_, err := h.ledger.ConfigurePool(ctx, tx, testVault, PoolSettings{State: domain.StateInactive, RatePerTick: 100})
		return err
	})
	_, err = h.claim("alice", 1)
	assert.ErrorIs(t, err, domain.ErrRewardsPaused)
}

func TestBindRejectsWrongAsset(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 4)

	err := h.try(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{1}}, func(txn *Txn) error {
		_, err := txn.BindVaultBond(1, 5)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrAssetIDMismatch)

	h.bind("alice", 1, 4)
	assert.Equal(t, uint32(1), h.snapshot("alice").staker.BoundPositionID)
}

func TestStakeRewardsCompounds(t *testing.T) {
	h := twoStakers(t, Policy{}, 10)

	var r Receipt
	h.do(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{1}}, func(txn *Txn) error {
		var err error
		r, err = txn.StakeRewards(1)
		return err
	})
	assert.Equal(t, uint64(500), r.Amount)

	s := h.snapshot("alice")
	pos := s.position(1)
	assert.Equal(t, uint64(1000), pos.BondAmount)
	assert.Equal(t, uint64(10), pos.BondTimestamp)
	assert.Equal(t, uint64(1010), pos.UnbondTimestamp)
	assert.Equal(t, uint64(1000), s.staker.TotalBonded)
	assert.Zero(t, s.staker.Claimable)
	assert.Equal(t, uint64(10_000), s.staker.LivelinessScore)
	assert.Equal(t, uint64(1500), s.totals.TotalBonded)
	// nothing left the vault
	assert.Equal(t, uint64(10_000+1000), s.balances[domain.VaultAccount(testVault)])
}

func TestBondRange(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)
	h.do(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{2}}, func(txn *Txn) error {
		_, err := txn.Bond(h.ctx, BondRequest{ID: 2, Amount: 500, Asset: domain.AssetRef{Kind: domain.AssetNFT, Mint: "m"}})
		return err
	})

	bondRange := func(req BondRangeRequest) error {
		return h.try(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{req.ID, req.ParentID}}, func(txn *Txn) error {
			_, err := txn.BondRange(req)
			return err
		})
	}
	assert.ErrorIs(t, bondRange(BondRangeRequest{ID: 4, ParentID: 1, StartNonce: 0, EndNonce: 5}), domain.ErrWrongBondID)
	assert.ErrorIs(t, bondRange(BondRangeRequest{ID: 3, ParentID: 1, StartNonce: 5, EndNonce: 5}), domain.ErrInvalidRange)
	assert.ErrorIs(t, bondRange(BondRangeRequest{ID: 3, ParentID: 2, StartNonce: 0, EndNonce: 5}), domain.ErrParentNotVault)
	assert.ErrorIs(t, bondRange(BondRangeRequest{ID: 3, ParentID: 9, StartNonce: 0, EndNonce: 5}), domain.ErrNotFound)

	before := h.snapshot("alice")
	require.NoError(t, bondRange(BondRangeRequest{ID: 3, ParentID: 1, StartNonce: 0, EndNonce: 5}))
	after := h.snapshot("alice")

	child := after.position(3)
	assert.Equal(t, domain.PositionChild, child.State)
	assert.Equal(t, uint32(1), child.ParentID)
	assert.Equal(t, uint64(5), child.EndNonce)
	assert.Zero(t, child.BondAmount)
	assert.Equal(t, uint32(3), after.staker.PositionCounter)
	assert.Equal(t, before.staker.TotalBonded, after.staker.TotalBonded)
	assert.Equal(t, before.totals, after.totals)
	assert.Equal(t, before.balances, after.balances)

	_, err := withdraw(h, "alice", 1)
	require.NoError(t, err)
	assert.ErrorIs(t, bondRange(BondRangeRequest{ID: 4, ParentID: 1, StartNonce: 0, EndNonce: 5}), domain.ErrParentInactive)
}

func TestRewardsFunding(t *testing.T) {
	h := newHarness(t, Policy{})

	remove := func(amount uint64) error {
		return h.try(Scope{Vault: testVault}, func(txn *Txn) error {
			_, err := txn.RemoveRewards(h.ctx, "treasury", amount)
			return err
		})
	}
	assert.ErrorIs(t, remove(10_001), domain.ErrNotEnoughBalance)
	require.NoError(t, remove(4_000))

	s := h.snapshot("alice")
	assert.Equal(t, uint64(6_000), s.pool.Reserve)
	assert.Equal(t, uint64(4_000), s.balances["treasury"])

	err := h.try(Scope{Vault: testVault}, func(txn *Txn) error {
		_, err := txn.AddRewards(h.ctx, "treasury", 5_000)
		return err
	})
	assert.ErrorIs(t, err, domain.ErrNotEnoughBalance)
}

func TestConfigurePoolActivationRestartsTicks(t *testing.T) {
	h := newHarness(t, Policy{})
	h.bond("alice", 1, 0)

	configure := func(state domain.State) domain.RewardPool {
		var pool domain.RewardPool
		h.inTx(func(ctx context.Context, tx domain.LedgerTx) error {
			var err error
			pool, err = h.ledger.ConfigurePool(ctx, tx, testVault, PoolSettings{State: state, RatePerTick: 100})
			return err
		})
		return pool
	}

	h.clock.set(0, 5)
	pool := configure(domain.StateInactive)
	assert.Equal(t, uint64(500), pool.Accumulated)

	h.clock.set(0, 50)
	pool = configure(domain.StateActive)
	assert.Equal(t, uint64(50), pool.LastTick)
	assert.Equal(t, uint64(500), pool.Accumulated)
}

func TestTotalBondedMatchesActivePositions(t *testing.T) {
	h := newHarness(t, Policy{})
	h.inTx(func(ctx context.Context, tx domain.LedgerTx) error {
		return tx.Credit(ctx, "alice", 1_000_000)
	})
	rng := rand.New(rand.NewPCG(7, 11))

	var next uint32 = 1
	var active []uint32
	now, tick := uint64(0), uint64(0)
	for step := 0; step < 200; step++ {
		now += rng.Uint64N(300)
		tick += rng.Uint64N(5)
		h.clock.set(now, tick)

		switch op := rng.IntN(3); {
		case op == 0 || len(active) == 0:
			h.bond("alice", next, uint64(next))
			active = append(active, next)
			next++
		case op == 1:
			id := active[rng.IntN(len(active))]
			h.do(Scope{Vault: testVault, Owner: "alice", Positions: []uint32{id}}, func(txn *Txn) error {
				_, err := txn.TopUp(h.ctx, id, 1+rng.Uint64N(100))
				return err
			})
		default:
			i := rng.IntN(len(active))
			_, err := withdraw(h, "alice", active[i])
			require.NoError(t, err)
			active = append(active[:i], active[i+1:]...)
		}

		s := h.snapshot("alice")
		var sum uint64
		for _, p := range s.positions {
			if p.State == domain.PositionActive {
				sum += p.BondAmount
			} else {
				assert.Zero(t, p.BondAmount)
			}
		}
		require.Equal(t, sum, s.staker.TotalBonded, "step %d", step)
		require.Equal(t, sum, s.totals.TotalBonded, "step %d", step)
		require.LessOrEqual(t, s.staker.LivelinessScore, fixedmath.MaxPercent)
	}
}
