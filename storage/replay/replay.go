// Package replay implements the single-use mandate gate. A mandate_id may be
// claimed at most once within its TTL window; the claim must be atomic under
// concurrent callers because it is the only lock against duplicate payment
// submission.
package replay

import (
	"context"
	"strings"
	"sync"
	"time"

	"sardis/errs"
)

// Store is the claim-once contract consumed by the payment service.
type Store interface {
	// Claim marks the mandate id as used for the TTL window. It returns true
	// exactly once per id per window across all concurrent callers.
	Claim(ctx context.Context, mandateID string, ttl time.Duration) (bool, error)
	// IsClaimed reports whether the id currently holds an unexpired claim.
	IsClaimed(ctx context.Context, mandateID string) (bool, error)
}

// MemoryStore is the in-process Store used in tests and single-node deploys.
type MemoryStore struct {
	mu     sync.Mutex
	nowFn  func() time.Time
	claims map[string]time.Time
}

// NewMemoryStore constructs an empty in-memory replay store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nowFn: time.Now, claims: make(map[string]time.Time)}
}

// SetNowFunc overrides the time source, for tests.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	s.mu.Lock()
	s.nowFn = now
	s.mu.Unlock()
}

// Claim implements Store.
func (s *MemoryStore) Claim(_ context.Context, mandateID string, ttl time.Duration) (bool, error) {
	id := strings.TrimSpace(mandateID)
	if id == "" {
		return false, errs.Validation("mandate id required")
	}
	if ttl <= 0 {
		return false, errs.Validation("replay ttl must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	if expiry, ok := s.claims[id]; ok && now.Before(expiry) {
		return false, nil
	}
	s.claims[id] = now.Add(ttl)
	return true, nil
}

// IsClaimed implements Store.
func (s *MemoryStore) IsClaimed(_ context.Context, mandateID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.claims[strings.TrimSpace(mandateID)]
	return ok && s.nowFn().Before(expiry), nil
}

// GC drops expired claims and returns how many were removed.
func (s *MemoryStore) GC() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn()
	removed := 0
	for id, expiry := range s.claims {
		if !now.Before(expiry) {
			delete(s.claims, id)
			removed++
		}
	}
	return removed
}
