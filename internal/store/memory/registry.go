package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// Asset returns the metadata registered for mint.
func (s *Store) Asset(_ context.Context, mint string) (domain.AssetMetadata, error) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	m, ok := s.assets[mint]
	if !ok {
		return domain.AssetMetadata{}, fmt.Errorf("memory: asset %s: %w", mint, domain.ErrNotFound)
	}
	m.Creators = slices.Clone(m.Creators)
	return m, nil
}

// PutAsset registers or replaces metadata for meta.Mint.
func (s *Store) PutAsset(_ context.Context, meta domain.AssetMetadata) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	meta.Creators = slices.Clone(meta.Creators)
	s.assets[meta.Mint] = meta
	return nil
}

// TreeRoot returns the current root of tree.
func (s *Store) TreeRoot(_ context.Context, tree string) (string, error) {
	s.regMu.RLock()
	defer s.regMu.RUnlock()
	r, ok := s.roots[tree]
	if !ok {
		return "", fmt.Errorf("memory: tree %s: %w", tree, domain.ErrNotFound)
	}
	return r, nil
}

// PutTreeRoot records root as tree's current root.
func (s *Store) PutTreeRoot(_ context.Context, tree, root string) error {
	s.regMu.Lock()
	defer s.regMu.Unlock()
	s.roots[tree] = root
	return nil
}
