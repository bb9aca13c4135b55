package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

func (t *ledgerTx) Balance(ctx context.Context, account string) (uint64, error) {
	query := t.forUpdate(`SELECT balance::text FROM token_accounts WHERE account = $1`)
	var balance uint64
	err := t.tx.QueryRow(ctx, query, account).Scan(num(&balance))
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("postgres: balance %s: %w", account, err)
	}
	return balance, nil
}

func (t *ledgerTx) Credit(ctx context.Context, account string, amount uint64) error {
	const query = `
		INSERT INTO token_accounts (account, balance) VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET balance = token_accounts.balance + EXCLUDED.balance`
	if _, err := t.tx.Exec(ctx, query, account, text(amount)); err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

// Transfer debits From only if it covers Amount, then credits To. The u64
// domain on balance rejects a credit that would leave the uint64 range.
func (t *ledgerTx) Transfer(ctx context.Context, tr domain.Transfer) error {
	if tr.Authority != tr.From {
		return fmt.Errorf("postgres: %s cannot move funds of %s: %w", tr.Authority, tr.From, domain.ErrUnauthorized)
	}
	const debit = `
		UPDATE token_accounts SET balance = balance - $2::numeric
		WHERE account = $1 AND balance >= $2::numeric`
	tag, err := t.tx.Exec(ctx, debit, tr.From, text(tr.Amount))
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", tr.From, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: account %s: %w", tr.From, domain.ErrNotEnoughBalance)
	}
	return t.Credit(ctx, tr.To, tr.Amount)
}
