package memory

import (
	"context"
	"slices"
	"time"

	"github.com/alanyoungcy/bondledger/internal/domain"
)

// List returns journal entries newest first.
func (s *Store) List(_ context.Context, opts domain.ListOpts) ([]domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JournalEntry
	for _, e := range slices.Backward(s.data.journal) {
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && !e.CreatedAt.Before(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	return page(out, opts.Offset, opts.Limit), nil
}

// ListBefore returns up to limit entries created before before, oldest first.
func (s *Store) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.JournalEntry
	for _, e := range s.data.journal {
		if e.CreatedAt.Before(before) {
			out = append(out, e)
		}
	}
	return page(out, 0, limit), nil
}

// DeleteBefore drops entries created before before.
func (s *Store) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.data.journal[:0:0]
	for _, e := range s.data.journal {
		if !e.CreatedAt.Before(before) {
			kept = append(kept, e)
		}
	}
	n := int64(len(s.data.journal) - len(kept))
	s.data.journal = kept
	return n, nil
}

func page(entries []domain.JournalEntry, offset, limit int) []domain.JournalEntry {
	if offset >= len(entries) {
		return nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return entries
}
