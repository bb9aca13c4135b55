package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// Transfer moves Amount tokens between two token accounts. Authority must
// own From.
type Transfer struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Authority string `json:"authority"`
	Amount    uint64 `json:"amount"`
}

// JournalEntry is one committed ledger operation.
type JournalEntry struct {
	ID        int64          `json:"id"`
	OpID      string         `json:"op_id"`
	Op        string         `json:"op"`
	Vault     string         `json:"vault"`
	Owner     string         `json:"owner"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// LedgerTx is the record set visible to one atomic ledger operation. Reads
// return ErrNotFound for missing records. Nothing written through a LedgerTx
// is visible outside it until the surrounding InTx returns nil.
type LedgerTx interface {
	Pool(ctx context.Context, vault string) (RewardPool, error)
	PutPool(ctx context.Context, pool RewardPool) error

	VaultTotals(ctx context.Context, vault string) (VaultTotals, error)
	PutVaultTotals(ctx context.Context, totals VaultTotals) error

	BondConfig(ctx context.Context, vault string) (BondConfig, error)
	PutBondConfig(ctx context.Context, cfg BondConfig) error

	Staker(ctx context.Context, vault, owner string) (StakerLedger, error)
	PutStaker(ctx context.Context, ledger StakerLedger) error

	Position(ctx context.Context, vault, owner string, id uint32) (BondPosition, error)
	PutPosition(ctx context.Context, pos BondPosition) error
	Positions(ctx context.Context, vault, owner string) ([]BondPosition, error)

	Balance(ctx context.Context, account string) (uint64, error)
	Credit(ctx context.Context, account string, amount uint64) error
	Transfer(ctx context.Context, t Transfer) error

	AppendJournal(ctx context.Context, entry JournalEntry) error
}

// LedgerStore runs ledger operations atomically. InTx locks every record it
// reads until fn returns; View is a read-only snapshot and takes no locks.
type LedgerStore interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
	View(ctx context.Context, fn func(ctx context.Context, tx LedgerTx) error) error
}

// JournalStore reads back committed operations.
type JournalStore interface {
	List(ctx context.Context, opts ListOpts) ([]JournalEntry, error)
	ListBefore(ctx context.Context, before time.Time, limit int) ([]JournalEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// AssetRegistry holds the NFT metadata and cNFT tree roots that ownership
// proofs are checked against.
type AssetRegistry interface {
	Asset(ctx context.Context, mint string) (AssetMetadata, error)
	PutAsset(ctx context.Context, meta AssetMetadata) error
	TreeRoot(ctx context.Context, tree string) (string, error)
	PutTreeRoot(ctx context.Context, tree, root string) error
}
