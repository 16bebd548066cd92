package memory

import (
	"context"
	"time"

	"sardis/native/policy"
)

// SpentTotal implements policy.StatePort.
func (s *Store) SpentTotal(_ context.Context, policyID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, rec := range s.spends[policyID] {
		total += rec.amount
	}
	return total, nil
}

// WindowSpent implements policy.StatePort.
func (s *Store) WindowSpent(_ context.Context, policyID string, window policy.WindowType, start time.Time) (int64, error) {
	end := start.Add(window.Duration())
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, rec := range s.spends[policyID] {
		if !rec.at.Before(start) && rec.at.Before(end) {
			total += rec.amount
		}
	}
	return total, nil
}

// RecordSpend implements policy.StatePort.
func (s *Store) RecordSpend(_ context.Context, policyID string, amount int64, at time.Time) error {
	if amount <= 0 {
		return nil
	}
	s.mu.Lock()
	s.spends[policyID] = append(s.spends[policyID], spendRecord{amount: amount, at: at})
	s.mu.Unlock()
	return nil
}
