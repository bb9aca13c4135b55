package postgres

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// u64 scans a NUMERIC column selected as ::text into a uint64.
type u64 struct{ dst *uint64 }

func num(dst *uint64) *u64 { return &u64{dst: dst} }

func (n *u64) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*n.dst = 0
		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("postgres: cannot scan %T into uint64", src)
	}
}

func (n *u64) parse(s string) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("postgres: numeric %q: %w", s, err)
	}
	*n.dst = v
	return nil
}

// text renders v for a $n::numeric parameter.
func text(v uint64) string {
	return strconv.FormatUint(v, 10)
}

// notFound maps pgx.ErrNoRows to domain.ErrNotFound.
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("postgres: get %s: %w", what, err)
}
