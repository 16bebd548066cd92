// Package holds implements the pre-authorization lifecycle. A hold reserves
// spend intent against a wallet and is later captured into a settlement or
// voided; transitions are one-way and expiry is enforced by a periodic sweep.
package holds

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"sardis/errs"
	"sardis/observability"
)

// Status enumerates the hold lifecycle. active is the only source state;
// captured, voided and expired are sinks.
type Status string

const (
	StatusActive   Status = "active"
	StatusCaptured Status = "captured"
	StatusVoided   Status = "voided"
	StatusExpired  Status = "expired"
)

// Hold is a reserved-intent record.
type Hold struct {
	HoldID     string    `json:"hold_id"`
	WalletID   string    `json:"wallet_id"`
	MerchantID string    `json:"merchant_id,omitempty"`
	Amount     int64     `json:"amount"`
	Token      string    `json:"token"`
	Status     Status    `json:"status"`
	Purpose    string    `json:"purpose,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`

	CapturedAmount int64     `json:"captured_amount,omitempty"`
	CapturedAt     time.Time `json:"captured_at,omitempty"`
	CaptureTxID    string    `json:"capture_tx_id,omitempty"`
	VoidedAt       time.Time `json:"voided_at,omitempty"`
}

// Clone returns a copy safe for callers to mutate.
func (h *Hold) Clone() *Hold {
	if h == nil {
		return nil
	}
	clone := *h
	return &clone
}

// Store is the persistence contract the manager drives. Implementations must
// make Update atomic per hold id.
type Store interface {
	PutHold(ctx context.Context, h *Hold) error
	GetHold(ctx context.Context, holdID string) (*Hold, error)
	ListHolds(ctx context.Context, walletID string) ([]*Hold, error)
	// ListByStatus returns every hold currently in the given status.
	ListByStatus(ctx context.Context, status Status) ([]*Hold, error)
}

const defaultHoldDuration = 72 * time.Hour

// Manager owns the hold lifecycle.
type Manager struct {
	mu     sync.Mutex
	store  Store
	minAge time.Duration
	nowFn  func() time.Time
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithMinHoldDuration sets the floor on how far in the future a hold
// expires. Shorter requested durations are raised to the floor.
func WithMinHoldDuration(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.minAge = d
		}
	}
}

// WithClock overrides the manager time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		if now != nil {
			m.nowFn = now
		}
	}
}

// NewManager constructs a hold manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{store: store, minAge: defaultHoldDuration, nowFn: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInput bundles the create parameters.
type CreateInput struct {
	WalletID   string
	MerchantID string
	Amount     int64
	Token      string
	Purpose    string
	Duration   time.Duration
}

// Create opens an active hold. The expiry is now + max(floor, requested).
func (m *Manager) Create(ctx context.Context, in CreateInput) (*Hold, error) {
	if strings.TrimSpace(in.WalletID) == "" {
		return nil, errs.Validation("wallet id required")
	}
	if in.Amount <= 0 {
		return nil, errs.Validation("hold amount must be positive")
	}
	if strings.TrimSpace(in.Token) == "" {
		return nil, errs.Validation("hold token required")
	}
	duration := in.Duration
	if duration < m.minAge {
		duration = m.minAge
	}
	now := m.nowFn()
	hold := &Hold{
		HoldID:     "hold_" + uuid.NewString(),
		WalletID:   in.WalletID,
		MerchantID: in.MerchantID,
		Amount:     in.Amount,
		Token:      strings.ToUpper(strings.TrimSpace(in.Token)),
		Status:     StatusActive,
		Purpose:    in.Purpose,
		CreatedAt:  now,
		ExpiresAt:  now.Add(duration),
	}
	if err := m.store.PutHold(ctx, hold); err != nil {
		return nil, err
	}
	return hold.Clone(), nil
}

// Get fetches a hold by id.
func (m *Manager) Get(ctx context.Context, holdID string) (*Hold, error) {
	return m.store.GetHold(ctx, holdID)
}

// ListForWallet lists holds for a wallet.
func (m *Manager) ListForWallet(ctx context.Context, walletID string) ([]*Hold, error) {
	return m.store.ListHolds(ctx, walletID)
}

// Capture converts an active, unexpired hold into a settlement for up to the
// held amount. Capture is idempotent per capture_tx_id: replaying the same
// transaction id returns the already-captured hold.
func (m *Manager) Capture(ctx context.Context, holdID string, amount int64, captureTxID string) (*Hold, error) {
	if amount <= 0 {
		return nil, errs.Validation("capture amount must be positive")
	}
	if strings.TrimSpace(captureTxID) == "" {
		return nil, errs.Validation("capture tx id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	hold, err := m.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Status == StatusCaptured && hold.CaptureTxID == captureTxID {
		return hold.Clone(), nil
	}
	now := m.nowFn()
	if hold.Status != StatusActive {
		return nil, errs.Conflict("hold " + holdID + " is " + string(hold.Status))
	}
	if !now.Before(hold.ExpiresAt) {
		return nil, errs.Conflict("hold " + holdID + " has expired")
	}
	if amount > hold.Amount {
		return nil, errs.Validation("capture amount exceeds held amount")
	}
	hold.Status = StatusCaptured
	hold.CapturedAmount = amount
	hold.CapturedAt = now
	hold.CaptureTxID = captureTxID
	if err := m.store.PutHold(ctx, hold); err != nil {
		return nil, err
	}
	return hold.Clone(), nil
}

// Void releases an active hold without capture.
func (m *Manager) Void(ctx context.Context, holdID string) (*Hold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	hold, err := m.store.GetHold(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if hold.Status != StatusActive {
		return nil, errs.Conflict("hold " + holdID + " is " + string(hold.Status))
	}
	hold.Status = StatusVoided
	hold.VoidedAt = m.nowFn()
	if err := m.store.PutHold(ctx, hold); err != nil {
		return nil, err
	}
	return hold.Clone(), nil
}

// ExpireOldHolds sweeps active holds past their expiry and returns how many
// were expired.
func (m *Manager) ExpireOldHolds(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	active, err := m.store.ListByStatus(ctx, StatusActive)
	if err != nil {
		return 0, err
	}
	now := m.nowFn()
	expired := 0
	for _, hold := range active {
		if now.Before(hold.ExpiresAt) {
			continue
		}
		hold.Status = StatusExpired
		if err := m.store.PutHold(ctx, hold); err != nil {
			return expired, err
		}
		expired++
	}
	observability.Settlement().SetActiveHolds(len(active) - expired)
	return expired, nil
}
