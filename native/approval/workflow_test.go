package approval

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sardis/errs"
	"sardis/native/payments"
)

type memStore struct {
	mu       sync.Mutex
	requests map[string]*Request
}

func newMemStore() *memStore { return &memStore{requests: make(map[string]*Request)} }

func (s *memStore) PutRequest(_ context.Context, r *Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.WorkflowID] = r.Clone()
	return nil
}

func (s *memStore) GetRequest(_ context.Context, workflowID string) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[workflowID]
	if !ok {
		return nil, errs.NotFound("approval workflow", workflowID)
	}
	return r.Clone(), nil
}

func (s *memStore) RequestsByStatus(_ context.Context, status WorkflowStatus) ([]*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Request
	for _, r := range s.requests {
		if r.Status == status {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func TestManagerQuorum(t *testing.T) {
	mgr := NewManager(newMemStore())
	ctx := context.Background()

	req, err := mgr.Open(ctx, "pay_1", TierMultiSig, 0.8, nil)
	require.NoError(t, err)
	require.Equal(t, 2, req.Quorum)
	require.Equal(t, WorkflowPending, req.Status)

	first, err := mgr.Approve(ctx, req.WorkflowID, "alice")
	require.NoError(t, err)
	require.Equal(t, WorkflowPending, first.Status)
	require.False(t, first.QuorumReached())

	second, err := mgr.Approve(ctx, req.WorkflowID, "bob")
	require.NoError(t, err)
	require.Equal(t, WorkflowApproved, second.Status)
	require.True(t, second.QuorumReached())

	// A closed workflow takes no more votes.
	_, err = mgr.Approve(ctx, req.WorkflowID, "carol")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestManagerDuplicateVoteAndRejection(t *testing.T) {
	mgr := NewManager(newMemStore())
	ctx := context.Background()

	req, err := mgr.Open(ctx, "pay_1", TierMultiSig, 0.8, nil)
	require.NoError(t, err)

	_, err = mgr.Approve(ctx, req.WorkflowID, "alice")
	require.NoError(t, err)
	_, err = mgr.Approve(ctx, req.WorkflowID, "alice")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	rejected, err := mgr.Reject(ctx, req.WorkflowID, "bob")
	require.NoError(t, err)
	require.Equal(t, WorkflowRejected, rejected.Status)

	_, err = mgr.Approve(ctx, req.WorkflowID, "carol")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))
}

func TestManagerRequiredApprovers(t *testing.T) {
	mgr := NewManager(newMemStore())
	ctx := context.Background()

	req, err := mgr.Open(ctx, "pay_1", TierManagerApproval, 0.9, []string{"alice"})
	require.NoError(t, err)

	_, err = mgr.Approve(ctx, req.WorkflowID, "mallory")
	require.Equal(t, errs.CodeUnauthorized, errs.CodeOf(err))

	approved, err := mgr.Approve(ctx, req.WorkflowID, "alice")
	require.NoError(t, err)
	require.Equal(t, WorkflowApproved, approved.Status)
}

func TestManagerExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr := NewManager(newMemStore(),
		WithWorkflowTTL(time.Hour),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	req, err := mgr.Open(ctx, "pay_1", TierManagerApproval, 0.9, nil)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = mgr.Approve(ctx, req.WorkflowID, "alice")
	require.Equal(t, errs.CodeConflict, errs.CodeOf(err))

	got, err := mgr.Get(ctx, req.WorkflowID)
	require.NoError(t, err)
	require.Equal(t, WorkflowExpired, got.Status)
}

func TestManagerSweepExpired(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	mgr := NewManager(newMemStore(),
		WithWorkflowTTL(time.Hour),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	stale, err := mgr.Open(ctx, "pay_1", TierManagerApproval, 0.9, nil)
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	fresh, err := mgr.Open(ctx, "pay_2", TierManagerApproval, 0.9, nil)
	require.NoError(t, err)

	now = now.Add(45 * time.Minute)
	expired, err := mgr.SweepExpired(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	got, err := mgr.Get(ctx, stale.WorkflowID)
	require.NoError(t, err)
	require.Equal(t, WorkflowExpired, got.Status)
	got, err = mgr.Get(ctx, fresh.WorkflowID)
	require.NoError(t, err)
	require.Equal(t, WorkflowPending, got.Status)
}

type staticHistory struct{ in Inputs }

func (s staticHistory) InputsFor(context.Context, *payments.Payment) (Inputs, error) {
	return s.in, nil
}

func TestGateOpensRoutedWorkflow(t *testing.T) {
	store := newMemStore()
	mgr := NewManager(store)
	gate := NewGate(mgr, staticHistory{in: Inputs{
		KYA:             KYABasic,
		AmountMinor:     400_000_000,
		LimitTotalMinor: 1_000_000_000,
		MerchantTxCount: 2,
		HourOfDay:       14,
	}})

	workflowID, err := gate.RequestApproval(context.Background(), &payments.Payment{PaymentID: "pay_1"})
	require.NoError(t, err)

	req, err := mgr.Get(context.Background(), workflowID)
	require.NoError(t, err)
	require.Equal(t, "pay_1", req.PaymentID)
	require.Equal(t, Route(req.Confidence), req.Tier)
	require.Equal(t, req.Tier.Quorum(), req.Quorum)
}
