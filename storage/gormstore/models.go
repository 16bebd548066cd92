package gormstore

import (
	"time"

	"gorm.io/gorm"
)

// WalletRow persists one agent wallet. Addresses is a JSON object keyed by
// chain name.
type WalletRow struct {
	WalletID     string `gorm:"primaryKey;size:64"`
	AgentID      string `gorm:"index;size:64"`
	AccountType  string `gorm:"size:32"`
	Addresses    string `gorm:"type:text"`
	Frozen       bool   `gorm:"index"`
	FreezeReason string `gorm:"size:256"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// BalanceRow tracks the spendable balance per wallet, chain and token.
type BalanceRow struct {
	WalletID string `gorm:"primaryKey;size:64"`
	Chain    string `gorm:"primaryKey;size:32"`
	Token    string `gorm:"primaryKey;size:16"`
	Amount   int64  `gorm:"not null"`
}

// PolicyRow stores the full spending policy document as JSON. One active
// policy per wallet.
type PolicyRow struct {
	PolicyID  string `gorm:"primaryKey;size:64"`
	WalletID  string `gorm:"uniqueIndex;size:64"`
	AgentID   string `gorm:"index;size:64"`
	Document  string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SpendRow is one recorded spend against a policy, used to rebuild rolling
// window totals.
type SpendRow struct {
	Seq      uint64 `gorm:"primaryKey;autoIncrement"`
	PolicyID string `gorm:"index;size:64"`
	Amount   int64  `gorm:"not null"`
	SpentAt  time.Time `gorm:"index"`
}

// PaymentRow persists one orchestrated transfer. Receipt is the attestation
// receipt serialized as JSON.
type PaymentRow struct {
	PaymentID   string `gorm:"primaryKey;size:64"`
	WalletID    string `gorm:"index;size:64"`
	AgentID     string `gorm:"index;size:64"`
	Chain       string `gorm:"size:32"`
	Token       string `gorm:"size:16"`
	Amount      int64  `gorm:"not null"`
	FeeAmount   int64
	Destination string `gorm:"size:128"`
	MerchantID  string `gorm:"index;size:128"`
	Status      string `gorm:"index;size:32"`
	TxHash      string `gorm:"size:128"`
	LedgerTx    string `gorm:"size:64"`
	DecisionID  string `gorm:"size:64"`
	Receipt     string `gorm:"type:text"`
	FailReason  string `gorm:"size:512"`
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time
}

// EscrowRow persists one escrow across its lifecycle.
type EscrowRow struct {
	EscrowID      string `gorm:"primaryKey;size:64"`
	PayerAgentID  string `gorm:"index;size:64"`
	PayeeAgentID  string `gorm:"index;size:64"`
	Amount        int64  `gorm:"not null"`
	Token         string `gorm:"size:16"`
	Chain         string `gorm:"size:32"`
	State         string `gorm:"index;size:32"`
	Description   string `gorm:"size:512"`
	FundedAt      time.Time
	FundingTxHash string `gorm:"size:128"`
	DeliveryProof string `gorm:"size:256"`
	DeliveredAt   time.Time
	ReleasedAt    time.Time
	ReleaseTxHash string `gorm:"size:128"`
	RefundedAt    time.Time
	RefundTxHash  string `gorm:"size:128"`
	RefundReason  string `gorm:"size:512"`
	DisputedAt    time.Time
	DisputeReason string `gorm:"size:512"`
	Metadata      string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time `gorm:"index"`
}

// SettlementRow records one escrow fund movement.
type SettlementRow struct {
	SettlementID   string `gorm:"primaryKey;size:64"`
	EscrowID       string `gorm:"index;size:64"`
	SettlementType string `gorm:"size:16"`
	TxHash         string `gorm:"size:128"`
	LedgerTx       string `gorm:"size:64"`
	Amount         int64  `gorm:"not null"`
	Token          string `gorm:"size:16"`
	Chain          string `gorm:"size:32"`
	Refund         bool
	CreatedAt      time.Time
}

// HoldRow persists one pre-authorization hold.
type HoldRow struct {
	HoldID         string `gorm:"primaryKey;size:64"`
	WalletID       string `gorm:"index;size:64"`
	MerchantID     string `gorm:"index;size:128"`
	Amount         int64  `gorm:"not null"`
	Token          string `gorm:"size:16"`
	Status         string `gorm:"index;size:16"`
	Purpose        string `gorm:"size:256"`
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"index"`
	CapturedAmount int64
	CapturedAt     time.Time
	CaptureTxID    string `gorm:"size:64"`
	VoidedAt       time.Time
}

// LedgerEntryRow is one side of a booked transfer. Seq preserves append
// order for recency queries.
type LedgerEntryRow struct {
	Seq         uint64 `gorm:"primaryKey;autoIncrement"`
	EntryID     string `gorm:"uniqueIndex;size:64"`
	TxID        string `gorm:"index;size:64"`
	AccountID   string `gorm:"index;size:128"`
	EntryType   string `gorm:"size:8"`
	Amount      int64  `gorm:"not null"`
	Currency    string `gorm:"size:16"`
	Chain       string `gorm:"size:32"`
	ChainTxHash string `gorm:"size:128"`
	Metadata    string `gorm:"type:text"`
	Status      string `gorm:"size:16"`
	CreatedAt   time.Time
}

// ApprovalRow persists one approval workflow. Signer lists are JSON arrays.
type ApprovalRow struct {
	WorkflowID        string  `gorm:"primaryKey;size:64"`
	PaymentID         string  `gorm:"index;size:64"`
	Tier              string  `gorm:"size:32"`
	Confidence        float64 `gorm:"not null"`
	Quorum            int
	RequiredApprovers string `gorm:"type:text"`
	Approvals         string `gorm:"type:text"`
	Rejections        string `gorm:"type:text"`
	Status            string `gorm:"index;size:16"`
	CreatedAt         time.Time
	ExpiresAt         time.Time `gorm:"index"`
}

// WebhookSubscriptionRow persists one registered endpoint with its delivery
// counters.
type WebhookSubscriptionRow struct {
	SubscriptionID string `gorm:"primaryKey;size:64"`
	URL            string `gorm:"size:512"`
	Secret         string `gorm:"size:128"`
	Events         string `gorm:"type:text"`
	Active         bool   `gorm:"index"`
	RateLimit      int
	TotalCount     int64
	SuccessCount   int64
	FailCount      int64
	LastDeliveryAt time.Time
	CreatedAt      time.Time
}

// DeliveryAttemptRow is the audit row for one webhook delivery try.
type DeliveryAttemptRow struct {
	Seq            uint64 `gorm:"primaryKey;autoIncrement"`
	AttemptID      string `gorm:"uniqueIndex;size:64"`
	SubscriptionID string `gorm:"index;size:64"`
	EventID        string `gorm:"size:64"`
	EventType      string `gorm:"size:64"`
	AttemptNumber  int
	StatusCode     int
	ResponseBody   string `gorm:"size:512"`
	Error          string `gorm:"size:512"`
	DurationMS     int64
	Succeeded      bool
	AttemptedAt    time.Time
}

// AutoMigrate performs all schema migrations for the platform store.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&WalletRow{},
		&BalanceRow{},
		&PolicyRow{},
		&SpendRow{},
		&PaymentRow{},
		&EscrowRow{},
		&SettlementRow{},
		&HoldRow{},
		&LedgerEntryRow{},
		&ApprovalRow{},
		&WebhookSubscriptionRow{},
		&DeliveryAttemptRow{},
	)
}
