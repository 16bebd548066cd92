package memory

import (
	"context"

	"sardis/errs"
	"sardis/native/escrow"
)

// EscrowPut implements the escrow engine state port.
func (s *Store) EscrowPut(_ context.Context, e *escrow.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escrows[e.EscrowID] = e.Clone()
	return nil
}

// EscrowGet implements the escrow engine state port.
func (s *Store) EscrowGet(_ context.Context, escrowID string) (*escrow.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.escrows[escrowID]
	if !ok {
		return nil, errs.NotFound("escrow", escrowID)
	}
	return e.Clone(), nil
}

// EscrowsByState implements the escrow engine state port.
func (s *Store) EscrowsByState(_ context.Context, state escrow.State) ([]*escrow.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*escrow.Escrow
	for _, e := range s.escrows {
		if e.State == state {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}

// SettlementPut implements the escrow settlement log.
func (s *Store) SettlementPut(_ context.Context, rec *escrow.Settlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements[rec.EscrowID] = append(s.settlements[rec.EscrowID], rec.Clone())
	return nil
}

// SettlementsForEscrow returns the settlement rows for one escrow.
func (s *Store) SettlementsForEscrow(_ context.Context, escrowID string) ([]*escrow.Settlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows := s.settlements[escrowID]
	out := make([]*escrow.Settlement, 0, len(rows))
	for _, rec := range rows {
		out = append(out, rec.Clone())
	}
	return out, nil
}

// EscrowsForAgent implements the escrow engine state port.
func (s *Store) EscrowsForAgent(_ context.Context, agentID string) ([]*escrow.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*escrow.Escrow
	for _, e := range s.escrows {
		if e.PayerAgentID == agentID || e.PayeeAgentID == agentID {
			out = append(out, e.Clone())
		}
	}
	return out, nil
}
