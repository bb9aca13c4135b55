package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// AssetStore implements domain.AssetRegistry using PostgreSQL.
type AssetStore struct {
	pool *pgxpool.Pool
}

var _ domain.AssetRegistry = (*AssetStore)(nil)

// NewAssetStore creates a new AssetStore backed by the given connection pool.
func NewAssetStore(pool *pgxpool.Pool) *AssetStore {
	return &AssetStore{pool: pool}
}

// Asset returns the metadata registered for mint.
func (s *AssetStore) Asset(ctx context.Context, mint string) (domain.AssetMetadata, error) {
	const query = `SELECT mint, collection, creators FROM asset_metadata WHERE mint = $1`
	var m domain.AssetMetadata
	if err := s.pool.QueryRow(ctx, query, mint).Scan(&m.Mint, &m.Collection, &m.Creators); err != nil {
		return domain.AssetMetadata{}, notFound(err, "asset "+mint)
	}
	return m, nil
}

// PutAsset inserts or replaces metadata for meta.Mint.
func (s *AssetStore) PutAsset(ctx context.Context, meta domain.AssetMetadata) error {
	const query = `
		INSERT INTO asset_metadata (mint, collection, creators) VALUES ($1, $2, $3)
		ON CONFLICT (mint) DO UPDATE SET collection = EXCLUDED.collection, creators = EXCLUDED.creators`
	creators := meta.Creators
	if creators == nil {
		creators = []string{}
	}
	if _, err := s.pool.Exec(ctx, query, meta.Mint, meta.Collection, creators); err != nil {
		return fmt.Errorf("postgres: put asset %s: %w", meta.Mint, err)
	}
	return nil
}

// TreeRoot returns the current root of tree.
func (s *AssetStore) TreeRoot(ctx context.Context, tree string) (string, error) {
	var root string
	err := s.pool.QueryRow(ctx, `SELECT root FROM tree_roots WHERE tree = $1`, tree).Scan(&root)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("postgres: tree %s: %w", tree, domain.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("postgres: get tree root %s: %w", tree, err)
	}
	return root, nil
}

// PutTreeRoot records root as tree's current root.
func (s *AssetStore) PutTreeRoot(ctx context.Context, tree, root string) error {
	const query = `
		INSERT INTO tree_roots (tree, root, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (tree) DO UPDATE SET root = EXCLUDED.root, updated_at = NOW()`
	if _, err := s.pool.Exec(ctx, query, tree, root); err != nil {
		return fmt.Errorf("postgres: put tree root %s: %w", tree, err)
	}
	return nil
}
