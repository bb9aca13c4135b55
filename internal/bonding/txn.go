// Package bonding is the bond position state machine. Every operation runs
// inside a Txn over an explicitly declared record set: it mutates a private
// copy of those records, and nothing reaches the store until Commit.
package bonding

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Policy holds the vault-wide choices the ledger leaves open.
type Policy struct {
	Forfeit domain.ForfeitPolicy
	Score   domain.ScoreSource
}

// Ledger starts transactions against a store.
type Ledger struct {
	verifier domain.OwnershipVerifier
	clock    domain.Clock
	policy   Policy
}

// New returns a Ledger that proves ownership through verifier and reads time
// from clock.
func New(verifier domain.OwnershipVerifier, clock domain.Clock, policy Policy) *Ledger {
	return &Ledger{verifier: verifier, clock: clock, policy: policy}
}

// Policy returns the ledger's policy.
func (l *Ledger) Policy() Policy { return l.policy }

// Scope declares the records one operation may touch. Owner may be empty for
// vault-only operations.
type Scope struct {
	Vault     string
	Owner     string
	Positions []uint32
}

// state is the working copy a Txn mutates.
type state struct {
	pool      domain.RewardPool
	totals    domain.VaultTotals
	ledger    domain.StakerLedger
	hasLedger bool
	positions map[uint32]domain.BondPosition
	dirty     map[uint32]bool
	transfers []domain.Transfer
}

func (s state) clone() state {
	c := s
	c.positions = maps.Clone(s.positions)
	c.dirty = maps.Clone(s.dirty)
	c.transfers = slices.Clone(s.transfers)
	return c
}

// Txn is one atomic ledger operation.
type Txn struct {
	ledger *Ledger
	tx     domain.LedgerTx
	scope  Scope
	config domain.BondConfig

	now  uint64
	tick uint64

	st        state
	committed bool
}

// Begin loads the records in scope and fixes the operation's clock reading.
func (l *Ledger) Begin(ctx context.Context, tx domain.LedgerTx, scope Scope) (*Txn, error) {
	now, tick := l.clock.Now()
	t := &Txn{ledger: l, tx: tx, scope: scope, now: now, tick: tick}

	var err error
	if t.config, err = tx.BondConfig(ctx, scope.Vault); err != nil {
		return nil, fmt.Errorf("bonding: load bond config %s: %w", scope.Vault, err)
	}
	if t.st.pool, err = tx.Pool(ctx, scope.Vault); err != nil {
		return nil, fmt.Errorf("bonding: load reward pool %s: %w", scope.Vault, err)
	}
	if t.st.totals, err = tx.VaultTotals(ctx, scope.Vault); err != nil {
		return nil, fmt.Errorf("bonding: load vault totals %s: %w", scope.Vault, err)
	}

	t.st.positions = make(map[uint32]domain.BondPosition, len(scope.Positions))
	t.st.dirty = make(map[uint32]bool)
	if scope.Owner == "" {
		return t, nil
	}

	t.st.ledger, err = tx.Staker(ctx, scope.Vault, scope.Owner)
	switch {
	case err == nil:
		t.st.hasLedger = true
	case errors.Is(err, domain.ErrNotFound):
	default:
		return nil, fmt.Errorf("bonding: load staker %s: %w", scope.Owner, err)
	}

	for _, id := range scope.Positions {
		pos, err := tx.Position(ctx, scope.Vault, scope.Owner, id)
		switch {
		case err == nil:
			t.st.positions[id] = pos
		case errors.Is(err, domain.ErrNotFound):
		default:
			return nil, fmt.Errorf("bonding: load position %d: %w", id, err)
		}
	}
	return t, nil
}

// run applies fn to a copy of the working state and keeps the copy only if
// fn succeeds, so a failed operation leaves the Txn as it was.
func (t *Txn) run(fn func(s *state) error) error {
	if t.committed {
		return errors.New("bonding: transaction already committed")
	}
	s := t.st.clone()
	if err := fn(&s); err != nil {
		return err
	}
	t.st = s
	return nil
}

// Commit writes every record in scope and executes the queued transfers.
// The caller's store transaction makes the writes atomic.
func (t *Txn) Commit(ctx context.Context) error {
	if t.committed {
		return errors.New("bonding: transaction already committed")
	}
	if err := t.tx.PutPool(ctx, t.st.pool); err != nil {
		return fmt.Errorf("bonding: commit pool: %w", err)
	}
	if err := t.tx.PutVaultTotals(ctx, t.st.totals); err != nil {
		return fmt.Errorf("bonding: commit vault totals: %w", err)
	}
	if t.st.hasLedger {
		if err := t.tx.PutStaker(ctx, t.st.ledger); err != nil {
			return fmt.Errorf("bonding: commit staker: %w", err)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(t.st.dirty)) {
		if err := t.tx.PutPosition(ctx, t.st.positions[id]); err != nil {
			return fmt.Errorf("bonding: commit position %d: %w", id, err)
		}
	}
	for _, tr := range t.st.transfers {
		if tr.Amount == 0 {
			continue
		}
		if err := t.tx.Transfer(ctx, tr); err != nil {
			return fmt.Errorf("bonding: transfer %s -> %s: %w", tr.From, tr.To, err)
		}
	}
	t.committed = true
	return nil
}

// Now is the timestamp this transaction runs at.
func (t *Txn) Now() uint64 { return t.now }

// Pool is the working copy of the reward pool.
func (t *Txn) Pool() domain.RewardPool { return t.st.pool }

// Totals is the working copy of the vault totals.
func (t *Txn) Totals() domain.VaultTotals { return t.st.totals }

// Staker is the working copy of the staker ledger, if one exists.
func (t *Txn) Staker() (domain.StakerLedger, bool) { return t.st.ledger, t.st.hasLedger }

// Position is the working copy of a declared position.
func (t *Txn) Position(id uint32) (domain.BondPosition, bool) {
	pos, ok := t.st.positions[id]
	return pos, ok
}

// Transfers are the token movements Commit executes. Zero amounts are
// dropped.
func (t *Txn) Transfers() []domain.Transfer {
	var out []domain.Transfer
	for _, tr := range t.st.transfers {
		if tr.Amount != 0 {
			out = append(out, tr)
		}
	}
	return out
}

func (t *Txn) vaultAccount() string { return domain.VaultAccount(t.scope.Vault) }

func (s *state) putPosition(pos domain.BondPosition) {
	s.positions[pos.ID] = pos
	s.dirty[pos.ID] = true
}

func (s *state) transfer(from, to, authority string, amount uint64) {
	s.transfers = append(s.transfers, domain.Transfer{From: from, To: to, Authority: authority, Amount: amount})
}

// activePosition returns the declared position id, which must be Active.
func (t *Txn) activePosition(s *state, id uint32) (domain.BondPosition, error) {
	pos, ok := s.positions[id]
	if !ok {
		return domain.BondPosition{}, fmt.Errorf("bonding: position %d: %w", id, domain.ErrNotFound)
	}
	if pos.State != domain.PositionActive {
		return domain.BondPosition{}, fmt.Errorf("bonding: position %d: %w", id, domain.ErrBondInactive)
	}
	return pos, nil
}

func (t *Txn) requireLedger(s *state) error {
	if !s.hasLedger {
		return fmt.Errorf("bonding: staker %s: %w", t.scope.Owner, domain.ErrNotFound)
	}
	return nil
}

// ConsumeNonce records a signed-request nonce against the staker. Nonces must
// strictly increase, so a captured signature cannot be replayed.
func (t *Txn) ConsumeNonce(nonce uint64) error {
	return t.run(func(s *state) error {
		if err := t.requireLedger(s); err != nil {
			return err
		}
		if nonce <= s.ledger.AuthNonce {
			return fmt.Errorf("bonding: nonce %d not above %d: %w", nonce, s.ledger.AuthNonce, domain.ErrUnauthorized)
		}
		s.ledger.AuthNonce = nonce
		return nil
	})
}
