package approval

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sardis/core/events"
	"sardis/errs"
	"sardis/observability"
)

// WorkflowStatus is the approval request state.
type WorkflowStatus string

const (
	WorkflowPending  WorkflowStatus = "pending"
	WorkflowApproved WorkflowStatus = "approved"
	WorkflowRejected WorkflowStatus = "rejected"
	WorkflowExpired  WorkflowStatus = "expired"
)

// Request is one held payment awaiting human sign-off.
type Request struct {
	WorkflowID        string         `json:"workflow_id"`
	PaymentID         string         `json:"payment_id"`
	Tier              Tier           `json:"tier"`
	Confidence        float64        `json:"confidence"`
	Quorum            int            `json:"quorum"`
	RequiredApprovers []string       `json:"required_approvers,omitempty"`
	Approvals         []string       `json:"approvals"`
	Rejections        []string       `json:"rejections"`
	Status            WorkflowStatus `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
	ExpiresAt         time.Time      `json:"expires_at"`
}

// Clone returns a deep copy safe for callers to mutate.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	clone := *r
	clone.RequiredApprovers = append([]string(nil), r.RequiredApprovers...)
	clone.Approvals = append([]string(nil), r.Approvals...)
	clone.Rejections = append([]string(nil), r.Rejections...)
	return &clone
}

// QuorumReached reports whether enough approvals have landed.
func (r *Request) QuorumReached() bool {
	return len(r.Approvals) >= r.Quorum
}

func (r *Request) voted(signer string) bool {
	for _, s := range r.Approvals {
		if s == signer {
			return true
		}
	}
	for _, s := range r.Rejections {
		if s == signer {
			return true
		}
	}
	return false
}

// Store is the persistence contract.
type Store interface {
	PutRequest(ctx context.Context, r *Request) error
	GetRequest(ctx context.Context, workflowID string) (*Request, error)
	RequestsByStatus(ctx context.Context, status WorkflowStatus) ([]*Request, error)
}

type publisher interface {
	Publish(events.Emitter)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Emitter) {}

const defaultWorkflowTTL = 24 * time.Hour

// Manager runs approval workflows.
type Manager struct {
	store   Store
	emitter publisher
	ttl     time.Duration
	nowFn   func() time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithEmitter wires the event bus.
func WithEmitter(p publisher) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.emitter = p
		}
	}
}

// WithWorkflowTTL overrides how long a request stays open.
func WithWorkflowTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// NewManager constructs a workflow manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, emitter: noopPublisher{}, ttl: defaultWorkflowTTL, nowFn: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates a pending request for the payment at the given tier.
func (m *Manager) Open(ctx context.Context, paymentID string, tier Tier, confidence float64, approvers []string) (*Request, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, errs.Validation("payment id required")
	}
	now := m.nowFn()
	req := &Request{
		WorkflowID:        "wf_" + uuid.NewString(),
		PaymentID:         paymentID,
		Tier:              tier,
		Confidence:        confidence,
		Quorum:            tier.Quorum(),
		RequiredApprovers: approvers,
		Status:            WorkflowPending,
		CreatedAt:         now,
		ExpiresAt:         now.Add(m.ttl),
	}
	if err := m.store.PutRequest(ctx, req); err != nil {
		return nil, err
	}
	m.emitter.Publish(events.ApprovalRequested{
		WorkflowID: req.WorkflowID,
		PaymentID:  paymentID,
		Tier:       string(tier),
		Confidence: confidence,
	})
	observability.Payments().RecordApproval(string(tier), string(WorkflowPending))
	return req.Clone(), nil
}

// Get fetches a request by id.
func (m *Manager) Get(ctx context.Context, workflowID string) (*Request, error) {
	return m.store.GetRequest(ctx, workflowID)
}

// Approve records a signer's approval. Quorum flips the request to approved.
func (m *Manager) Approve(ctx context.Context, workflowID, signer string) (*Request, error) {
	return m.vote(ctx, workflowID, signer, true)
}

// Reject records a signer's rejection, which closes the request immediately.
func (m *Manager) Reject(ctx context.Context, workflowID, signer string) (*Request, error) {
	return m.vote(ctx, workflowID, signer, false)
}

func (m *Manager) vote(ctx context.Context, workflowID, signer string, approve bool) (*Request, error) {
	signer = strings.TrimSpace(signer)
	if signer == "" {
		return nil, errs.Validation("signer required")
	}
	req, err := m.store.GetRequest(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if req.Status != WorkflowPending {
		return nil, errs.Conflict("workflow " + workflowID + " is " + string(req.Status))
	}
	now := m.nowFn()
	if !now.Before(req.ExpiresAt) {
		req.Status = WorkflowExpired
		if err := m.store.PutRequest(ctx, req); err != nil {
			return nil, err
		}
		return nil, errs.Conflict("workflow " + workflowID + " has expired")
	}
	if len(req.RequiredApprovers) > 0 {
		allowed := false
		for _, a := range req.RequiredApprovers {
			if a == signer {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, errs.New(errs.CodeUnauthorized, "signer "+signer+" is not a required approver")
		}
	}
	if req.voted(signer) {
		return nil, errs.Conflict("signer " + signer + " already voted on " + workflowID)
	}
	if approve {
		req.Approvals = append(req.Approvals, signer)
		if req.QuorumReached() {
			req.Status = WorkflowApproved
		}
	} else {
		req.Rejections = append(req.Rejections, signer)
		req.Status = WorkflowRejected
	}
	if err := m.store.PutRequest(ctx, req); err != nil {
		return nil, err
	}
	if req.Status == WorkflowApproved || req.Status == WorkflowRejected {
		m.emitter.Publish(events.ApprovalResolved{
			WorkflowID: req.WorkflowID,
			PaymentID:  req.PaymentID,
			Outcome:    string(req.Status),
		})
		observability.Payments().RecordApproval(string(req.Tier), string(req.Status))
	}
	return req.Clone(), nil
}

// SweepExpired moves stale pending requests to expired and returns how many
// moved.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	pending, err := m.store.RequestsByStatus(ctx, WorkflowPending)
	if err != nil {
		return 0, err
	}
	now := m.nowFn()
	expired := 0
	for _, req := range pending {
		if now.Before(req.ExpiresAt) {
			continue
		}
		req.Status = WorkflowExpired
		if err := m.store.PutRequest(ctx, req); err != nil {
			return expired, err
		}
		m.emitter.Publish(events.ApprovalResolved{
			WorkflowID: req.WorkflowID,
			PaymentID:  req.PaymentID,
			Outcome:    string(WorkflowExpired),
		})
		expired++
	}
	return expired, nil
}
