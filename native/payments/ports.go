// Package payments orchestrates a verified payment mandate through policy,
// compliance screening, chain dispatch and ledger booking. The service front
// door additionally verifies the mandate chain, its signature and the replay
// cache before handing off to the orchestrator.
package payments

import (
	"context"
	"time"

	"sardis/native/ledger"
	"sardis/native/mandate"
	"sardis/native/policy"
	"sardis/native/wallet"
)

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending          Status = "pending"
	StatusRequiresApproval Status = "requires_approval"
	StatusSettled          Status = "settled"
	StatusFailed           Status = "failed"
)

// Payment is the persisted record of one orchestrated transfer.
type Payment struct {
	PaymentID   string          `json:"payment_id"`
	WalletID    string          `json:"wallet_id"`
	AgentID     string          `json:"agent_id"`
	Chain       string          `json:"chain"`
	Token       string          `json:"token"`
	Amount      int64           `json:"amount"`
	FeeAmount   int64           `json:"fee_amount"`
	Destination string          `json:"destination"`
	MerchantID  string          `json:"merchant_id,omitempty"`
	Status      Status          `json:"status"`
	TxHash      string          `json:"tx_hash,omitempty"`
	LedgerTx    string          `json:"ledger_tx,omitempty"`
	DecisionID  string          `json:"decision_id,omitempty"`
	Receipt     *policy.Receipt `json:"receipt,omitempty"`
	FailReason  string          `json:"fail_reason,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Clone returns a shallow copy with an independent receipt pointer.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Receipt != nil {
		receipt := *p.Receipt
		clone.Receipt = &receipt
	}
	return &clone
}

// Store is the payment record persistence contract.
type Store interface {
	PutPayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
	PaymentsForWallet(ctx context.Context, walletID string, limit int) ([]*Payment, error)
}

// ScreeningResult is the compliance provider verdict.
type ScreeningResult struct {
	Passed   bool
	Provider string
	RuleID   string
	Reason   string
}

// CompliancePort screens a transfer against sanctions and risk rules.
type CompliancePort interface {
	Screen(ctx context.Context, p *mandate.PaymentMandate) (ScreeningResult, error)
}

// ExecutionReceipt is what the chain executor reports back.
type ExecutionReceipt struct {
	TxHash      string
	GasUsed     uint64
	SubmittedAt time.Time
}

// ChainExecutorPort submits transfers to a chain.
type ChainExecutorPort interface {
	ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (*ExecutionReceipt, error)
	EstimateGas(ctx context.Context, chain string) (uint64, error)
	SupportedChains() []string
}

// PolicyStore resolves the active spending policy for a wallet.
type PolicyStore interface {
	PolicyForWallet(ctx context.Context, walletID string) (*policy.SpendingPolicy, error)
}

// WalletPort gates spending on the wallet freeze switch.
type WalletPort interface {
	EnsureSpendable(ctx context.Context, walletID string) (*wallet.Wallet, error)
}

// LedgerPort books the settlement pair.
type LedgerPort interface {
	AppendTransfer(ctx context.Context, in ledger.TransferInput) (string, error)
}

// ApprovalPort opens a human approval workflow when confidence routing
// escalates.
type ApprovalPort interface {
	RequestApproval(ctx context.Context, p *Payment) (workflowID string, err error)
}

// ReplayPort claims a mandate id exactly once.
type ReplayPort interface {
	Claim(ctx context.Context, mandateID string, ttl time.Duration) (bool, error)
}

// SignatureVerifier checks the payment proof against the issuing agent's
// registered keys.
type SignatureVerifier interface {
	VerifyAgent(ctx context.Context, agentID, domain string, message, signature []byte) error
}
