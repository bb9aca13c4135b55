// Package memory is an in-process ledger store. Each InTx works on a private
// copy of every table and swaps it in only when the callback succeeds.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
	"github.com/alanyoungcy/bondledger/internal/fixedmath"
)

type stakerKey struct{ vault, owner string }

type positionKey struct {
	vault, owner string
	id           uint32
}

type tables struct {
	pools     map[string]domain.RewardPool
	totals    map[string]domain.VaultTotals
	configs   map[string]domain.BondConfig
	stakers   map[stakerKey]domain.StakerLedger
	positions map[positionKey]domain.BondPosition
	balances  map[string]uint64
	journal   []domain.JournalEntry
	journalID int64
}

func newTables() *tables {
	return &tables{
		pools:     make(map[string]domain.RewardPool),
		totals:    make(map[string]domain.VaultTotals),
		configs:   make(map[string]domain.BondConfig),
		stakers:   make(map[stakerKey]domain.StakerLedger),
		positions: make(map[positionKey]domain.BondPosition),
		balances:  make(map[string]uint64),
	}
}

func (t *tables) clone() *tables {
	return &tables{
		pools:     maps.Clone(t.pools),
		totals:    maps.Clone(t.totals),
		configs:   maps.Clone(t.configs),
		stakers:   maps.Clone(t.stakers),
		positions: maps.Clone(t.positions),
		balances:  maps.Clone(t.balances),
		journal:   slices.Clone(t.journal),
		journalID: t.journalID,
	}
}

// Store implements domain.LedgerStore, domain.JournalStore and
// domain.AssetRegistry in memory.
type Store struct {
	mu   sync.RWMutex
	data *tables

	regMu  sync.RWMutex
	assets map[string]domain.AssetMetadata
	roots  map[string]string
}

var (
	_ domain.LedgerStore   = (*Store)(nil)
	_ domain.JournalStore  = (*Store)(nil)
	_ domain.AssetRegistry = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		data:   newTables(),
		assets: make(map[string]domain.AssetMetadata),
		roots:  make(map[string]string),
	}
}

// InTx runs fn with exclusive access to the store.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := s.data.clone()
	if err := fn(ctx, &memTx{t: work}); err != nil {
		return err
	}
	s.data = work
	return nil
}

// View runs fn against the committed state. Writes fail.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, tx domain.LedgerTx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(ctx, &memTx{t: s.data, readOnly: true})
}

var errReadOnly = errors.New("memory: write in read-only view")

type memTx struct {
	t        *tables
	readOnly bool
}

func (tx *memTx) writable() error {
	if tx.readOnly {
		return errReadOnly
	}
	return nil
}

func (tx *memTx) Pool(_ context.Context, vault string) (domain.RewardPool, error) {
	p, ok := tx.t.pools[vault]
	if !ok {
		return domain.RewardPool{}, fmt.Errorf("memory: reward pool %s: %w", vault, domain.ErrNotFound)
	}
	return p, nil
}

func (tx *memTx) PutPool(_ context.Context, pool domain.RewardPool) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.pools[pool.Vault] = pool
	return nil
}

func (tx *memTx) VaultTotals(_ context.Context, vault string) (domain.VaultTotals, error) {
	v, ok := tx.t.totals[vault]
	if !ok {
		return domain.VaultTotals{}, fmt.Errorf("memory: vault totals %s: %w", vault, domain.ErrNotFound)
	}
	return v, nil
}

func (tx *memTx) PutVaultTotals(_ context.Context, totals domain.VaultTotals) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.totals[totals.Vault] = totals
	return nil
}

func (tx *memTx) BondConfig(_ context.Context, vault string) (domain.BondConfig, error) {
	c, ok := tx.t.configs[vault]
	if !ok {
		return domain.BondConfig{}, fmt.Errorf("memory: bond config %s: %w", vault, domain.ErrNotFound)
	}
	return c, nil
}

func (tx *memTx) PutBondConfig(_ context.Context, cfg domain.BondConfig) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.configs[cfg.Vault] = cfg
	return nil
}

func (tx *memTx) Staker(_ context.Context, vault, owner string) (domain.StakerLedger, error) {
	l, ok := tx.t.stakers[stakerKey{vault, owner}]
	if !ok {
		return domain.StakerLedger{}, fmt.Errorf("memory: staker %s/%s: %w", vault, owner, domain.ErrNotFound)
	}
	return l, nil
}

func (tx *memTx) PutStaker(_ context.Context, ledger domain.StakerLedger) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.stakers[stakerKey{ledger.Vault, ledger.Owner}] = ledger
	return nil
}

func (tx *memTx) Position(_ context.Context, vault, owner string, id uint32) (domain.BondPosition, error) {
	p, ok := tx.t.positions[positionKey{vault, owner, id}]
	if !ok {
		return domain.BondPosition{}, fmt.Errorf("memory: position %s/%s/%d: %w", vault, owner, id, domain.ErrNotFound)
	}
	return p, nil
}

func (tx *memTx) PutPosition(_ context.Context, pos domain.BondPosition) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.positions[positionKey{pos.Vault, pos.Owner, pos.ID}] = pos
	return nil
}

func (tx *memTx) Positions(_ context.Context, vault, owner string) ([]domain.BondPosition, error) {
	var out []domain.BondPosition
	for k, p := range tx.t.positions {
		if k.vault == vault && k.owner == owner {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b domain.BondPosition) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (tx *memTx) Balance(_ context.Context, account string) (uint64, error) {
	return tx.t.balances[account], nil
}

func (tx *memTx) Credit(_ context.Context, account string, amount uint64) error {
	if err := tx.writable(); err != nil {
		return err
	}
	v, err := fixedmath.Add(tx.t.balances[account], amount)
	if err != nil {
		return fmt.Errorf("memory: credit %s: %w", account, err)
	}
	tx.t.balances[account] = v
	return nil
}

func (tx *memTx) Transfer(_ context.Context, t domain.Transfer) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if t.Authority != t.From {
		return fmt.Errorf("memory: %s cannot move funds of %s: %w", t.Authority, t.From, domain.ErrUnauthorized)
	}
	from := tx.t.balances[t.From]
	if from < t.Amount {
		return fmt.Errorf("memory: account %s: %w", t.From, domain.ErrNotEnoughBalance)
	}
	to, err := fixedmath.Add(tx.t.balances[t.To], t.Amount)
	if err != nil {
		return fmt.Errorf("memory: account %s: %w", t.To, err)
	}
	tx.t.balances[t.From] = from - t.Amount
	tx.t.balances[t.To] = to
	return nil
}

func (tx *memTx) AppendJournal(_ context.Context, entry domain.JournalEntry) error {
	if err := tx.writable(); err != nil {
		return err
	}
	tx.t.journalID++
	entry.ID = tx.t.journalID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	tx.t.journal = append(tx.t.journal, entry)
	return nil
}
