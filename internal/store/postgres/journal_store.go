package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func (t *ledgerTx) AppendJournal(ctx context.Context, e domain.JournalEntry) error {
	detailJSON, err := json.Marshal(e.Detail)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal detail: %w", err)
	}
	const query = `INSERT INTO ledger_journal (op_id, op, vault, owner, detail) VALUES ($1, $2, $3, $4, $5)`
	if _, err := t.tx.Exec(ctx, query, e.OpID, e.Op, e.Vault, e.Owner, detailJSON); err != nil {
		return fmt.Errorf("postgres: append journal %s: %w", e.Op, err)
	}
	return nil
}

// JournalStore implements domain.JournalStore using PostgreSQL.
type JournalStore struct {
	pool *pgxpool.Pool
}

var _ domain.JournalStore = (*JournalStore)(nil)

// NewJournalStore creates a new JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

const journalColumns = `id, op_id, op, vault, owner, detail, created_at`

// List returns journal entries newest first with pagination and optional
// time filtering.
func (s *JournalStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM ledger_journal WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at < $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY id DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal: %w", err)
	}
	return scanJournal(rows)
}

// ListBefore returns up to limit entries created before the cutoff, oldest
// first.
func (s *JournalStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM ledger_journal WHERE created_at < $1 ORDER BY id LIMIT $2`
	rows, err := s.pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal before %s: %w", before.Format(time.RFC3339), err)
	}
	return scanJournal(rows)
}

// DeleteBefore removes entries created before the cutoff.
func (s *JournalStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ledger_journal WHERE created_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete journal before %s: %w", before.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

func scanJournal(rows pgx.Rows) ([]domain.JournalEntry, error) {
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		var e domain.JournalEntry
		var detailJSON []byte

		if err := rows.Scan(&e.ID, &e.OpID, &e.Op, &e.Vault, &e.Owner, &detailJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}
		if detailJSON != nil {
			if err := json.Unmarshal(detailJSON, &e.Detail); err != nil {
				return nil, fmt.Errorf("postgres: unmarshal journal detail: %w", err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: journal rows: %w", err)
	}
	return entries, nil
}
