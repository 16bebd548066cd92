package memory

import (
	"context"

	"sardis/native/ledger"
)

// AppendEntries implements ledger.Store. All entries land atomically under
// the store mutex.
func (s *Store) AppendEntries(_ context.Context, entries []*ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		clone := *entry
		s.ledgerEntries = append(s.ledgerEntries, &clone)
	}
	return nil
}

// EntriesByTx implements ledger.Store.
func (s *Store) EntriesByTx(_ context.Context, txID string) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledger.Entry
	for _, entry := range s.ledgerEntries {
		if entry.TxID == txID {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out, nil
}

// RecentEntries implements ledger.Store, newest first.
func (s *Store) RecentEntries(_ context.Context, limit int) ([]*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*ledger.Entry
	for i := len(s.ledgerEntries) - 1; i >= 0 && len(out) < limit; i-- {
		clone := *s.ledgerEntries[i]
		out = append(out, &clone)
	}
	return out, nil
}
