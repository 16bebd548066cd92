package memory

import (
	"context"

	"sardis/errs"
	"sardis/native/approval"
)

// PutRequest implements approval.Store.
func (s *Store) PutRequest(_ context.Context, r *approval.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.approvals[r.WorkflowID] = r.Clone()
	return nil
}

// GetRequest implements approval.Store.
func (s *Store) GetRequest(_ context.Context, workflowID string) (*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.approvals[workflowID]
	if !ok {
		return nil, errs.NotFound("approval workflow", workflowID)
	}
	return r.Clone(), nil
}

// RequestsByStatus implements approval.Store.
func (s *Store) RequestsByStatus(_ context.Context, status approval.WorkflowStatus) ([]*approval.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*approval.Request
	for _, r := range s.approvals {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}
