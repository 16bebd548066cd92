package memory

import (
	"context"

	"sardis/errs"
	"sardis/native/holds"
)

// PutHold implements holds.Store.
func (s *Store) PutHold(_ context.Context, h *holds.Hold) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.holds[h.HoldID] = h.Clone()
	return nil
}

// GetHold implements holds.Store.
func (s *Store) GetHold(_ context.Context, holdID string) (*holds.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[holdID]
	if !ok {
		return nil, errs.NotFound("hold", holdID)
	}
	return h.Clone(), nil
}

// ListHolds implements holds.Store.
func (s *Store) ListHolds(_ context.Context, walletID string) ([]*holds.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*holds.Hold
	for _, h := range s.holds {
		if h.WalletID == walletID {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}

// ListByStatus implements holds.Store.
func (s *Store) ListByStatus(_ context.Context, status holds.Status) ([]*holds.Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*holds.Hold
	for _, h := range s.holds {
		if h.Status == status {
			out = append(out, h.Clone())
		}
	}
	return out, nil
}
