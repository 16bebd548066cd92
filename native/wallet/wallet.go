// Package wallet holds agent wallet records and the freeze switch that gates
// all spending.
package wallet

import (
	"context"
	"strings"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"sardis/core/events"
	"sardis/errs"
)

// AccountType names the custody arrangement backing a wallet.
type AccountType string

const (
	AccountMPC    AccountType = "mpc_v1"
	AccountERC437 AccountType = "erc4337_v2"
)

// Valid reports whether the account type is supported.
func (a AccountType) Valid() bool {
	return a == AccountMPC || a == AccountERC437
}

// Wallet is one agent-controlled spending account. Addresses maps chain name
// to the wallet's address on that chain.
type Wallet struct {
	WalletID     string            `json:"wallet_id"`
	AgentID      string            `json:"agent_id"`
	AccountType  AccountType       `json:"account_type"`
	Addresses    map[string]string `json:"addresses"`
	Frozen       bool              `json:"frozen"`
	FreezeReason string            `json:"freeze_reason,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// Clone returns a deep copy safe for callers to mutate.
func (w *Wallet) Clone() *Wallet {
	if w == nil {
		return nil
	}
	clone := *w
	if w.Addresses != nil {
		clone.Addresses = make(map[string]string, len(w.Addresses))
		for k, v := range w.Addresses {
			clone.Addresses[k] = v
		}
	}
	return &clone
}

// Store is the persistence contract.
type Store interface {
	PutWallet(ctx context.Context, w *Wallet) error
	GetWallet(ctx context.Context, walletID string) (*Wallet, error)
	WalletsForAgent(ctx context.Context, agentID string) ([]*Wallet, error)
}

type publisher interface {
	Publish(events.Emitter)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Emitter) {}

// Service manages wallet records.
type Service struct {
	store   Store
	emitter publisher
	nowFn   func() time.Time
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithEmitter wires the event bus.
func WithEmitter(p publisher) ServiceOption {
	return func(s *Service) {
		if p != nil {
			s.emitter = p
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// NewService constructs a wallet service over the given store.
func NewService(store Store, opts ...ServiceOption) *Service {
	s := &Service{store: store, emitter: noopPublisher{}, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput bundles the create parameters.
type CreateInput struct {
	AgentID     string
	AccountType AccountType
	Addresses   map[string]string
}

// Create registers a wallet for an agent.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Wallet, error) {
	agentID := strings.TrimSpace(in.AgentID)
	if agentID == "" {
		return nil, errs.Validation("agent id required")
	}
	if !in.AccountType.Valid() {
		return nil, errs.Validation("unsupported account type " + string(in.AccountType))
	}
	addresses := make(map[string]string, len(in.Addresses))
	for chain, addr := range in.Addresses {
		chain = strings.ToLower(strings.TrimSpace(chain))
		if !ethcommon.IsHexAddress(addr) {
			return nil, errs.Validation("invalid address for chain " + chain)
		}
		addresses[chain] = addr
	}
	now := s.nowFn()
	w := &Wallet{
		WalletID:    "wallet_" + uuid.NewString(),
		AgentID:     agentID,
		AccountType: in.AccountType,
		Addresses:   addresses,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.PutWallet(ctx, w); err != nil {
		return nil, err
	}
	return w.Clone(), nil
}

// Get fetches a wallet by id.
func (s *Service) Get(ctx context.Context, walletID string) (*Wallet, error) {
	return s.store.GetWallet(ctx, walletID)
}

// ListForAgent lists an agent's wallets.
func (s *Service) ListForAgent(ctx context.Context, agentID string) ([]*Wallet, error) {
	return s.store.WalletsForAgent(ctx, agentID)
}

// AddressOn returns the wallet's address on a chain.
func (s *Service) AddressOn(ctx context.Context, walletID, chain string) (string, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return "", err
	}
	addr, ok := w.Addresses[strings.ToLower(strings.TrimSpace(chain))]
	if !ok {
		return "", errs.NotFound("wallet address", walletID+"/"+chain)
	}
	return addr, nil
}

// WalletAddress resolves an agent's address on a chain from its first wallet
// carrying one. It satisfies the escrow settlement resolver.
func (s *Service) WalletAddress(ctx context.Context, agentID, chain string) (string, error) {
	wallets, err := s.store.WalletsForAgent(ctx, agentID)
	if err != nil {
		return "", err
	}
	chain = strings.ToLower(strings.TrimSpace(chain))
	for _, w := range wallets {
		if w.Frozen {
			continue
		}
		if addr, ok := w.Addresses[chain]; ok {
			return addr, nil
		}
	}
	return "", errs.NotFound("wallet address", agentID+"/"+chain)
}

// SetFrozen flips the freeze switch. Freezing an already-frozen wallet is a
// conflict so operators notice double submissions.
func (s *Service) SetFrozen(ctx context.Context, walletID string, frozen bool, reason string) (*Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Frozen == frozen {
		return nil, errs.Conflict("wallet " + walletID + " freeze state unchanged")
	}
	if frozen && strings.TrimSpace(reason) == "" {
		return nil, errs.Validation("freeze reason required")
	}
	w.Frozen = frozen
	if frozen {
		w.FreezeReason = reason
	} else {
		w.FreezeReason = ""
	}
	w.UpdatedAt = s.nowFn()
	if err := s.store.PutWallet(ctx, w); err != nil {
		return nil, err
	}
	s.emitter.Publish(events.WalletFrozen{WalletID: walletID, Frozen: frozen, Reason: reason})
	return w.Clone(), nil
}

// EnsureSpendable rejects spending from a frozen or unknown wallet.
func (s *Service) EnsureSpendable(ctx context.Context, walletID string) (*Wallet, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w.Frozen {
		return nil, errs.New(errs.CodePolicyDenied, "wallet "+walletID+" is frozen").WithDetail("reason", w.FreezeReason)
	}
	return w, nil
}
