// Package ledger is the append-only double-entry book. Every settlement
// writes exactly one debit and one credit sharing a tx id, appended in a
// single store transaction. Entries are never updated; corrections are new
// compensating entries.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sardis/errs"
	"sardis/observability"
)

// EntryType distinguishes the two sides of a transfer.
type EntryType string

const (
	Debit  EntryType = "debit"
	Credit EntryType = "credit"
)

// EntryStatus reflects chain finality as reported by the executor.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusConfirmed EntryStatus = "confirmed"
)

// Entry is one side of a ledger transaction. Amounts are minor units of
// Currency.
type Entry struct {
	EntryID     string            `json:"entry_id"`
	TxID        string            `json:"tx_id"`
	AccountID   string            `json:"account_id"`
	EntryType   EntryType         `json:"entry_type"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Chain       string            `json:"chain,omitempty"`
	ChainTxHash string            `json:"chain_tx_hash,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Status      EntryStatus       `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Store is the persistence contract. AppendEntries must write all entries in
// one transaction or none.
type Store interface {
	AppendEntries(ctx context.Context, entries []*Entry) error
	EntriesByTx(ctx context.Context, txID string) ([]*Entry, error)
	RecentEntries(ctx context.Context, limit int) ([]*Entry, error)
}

// Ledger drives double-entry appends over a store.
type Ledger struct {
	store Store
	nowFn func() time.Time
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.nowFn = now
		}
	}
}

// New constructs a ledger over the given store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{store: store, nowFn: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TransferInput describes one settlement to book.
type TransferInput struct {
	// TxID groups the pair; generated when empty.
	TxID          string
	DebitAccount  string
	CreditAccount string
	Amount        int64
	Currency      string
	Chain         string
	ChainTxHash   string
	Status        EntryStatus
	Metadata      map[string]string
}

// AppendTransfer books a matched debit/credit pair and returns the tx id.
func (l *Ledger) AppendTransfer(ctx context.Context, in TransferInput) (string, error) {
	debit := strings.TrimSpace(in.DebitAccount)
	credit := strings.TrimSpace(in.CreditAccount)
	if debit == "" || credit == "" {
		return "", errs.Validation("ledger accounts required")
	}
	if debit == credit {
		return "", errs.Validation("ledger debit and credit accounts must differ")
	}
	if in.Amount <= 0 {
		return "", errs.Validation("ledger amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		return "", errs.Validation("ledger currency required")
	}
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	txID := strings.TrimSpace(in.TxID)
	if txID == "" {
		txID = "ltx_" + uuid.NewString()
	}
	now := l.nowFn()
	pair := []*Entry{
		{
			EntryID:     "lent_" + uuid.NewString(),
			TxID:        txID,
			AccountID:   debit,
			EntryType:   Debit,
			Amount:      in.Amount,
			Currency:    currency,
			Chain:       in.Chain,
			ChainTxHash: in.ChainTxHash,
			Metadata:    in.Metadata,
			Status:      status,
			CreatedAt:   now,
		},
		{
			EntryID:     "lent_" + uuid.NewString(),
			TxID:        txID,
			AccountID:   credit,
			EntryType:   Credit,
			Amount:      in.Amount,
			Currency:    currency,
			Chain:       in.Chain,
			ChainTxHash: in.ChainTxHash,
			Metadata:    in.Metadata,
			Status:      status,
			CreatedAt:   now,
		},
	}
	if err := l.store.AppendEntries(ctx, pair); err != nil {
		return "", err
	}
	observability.Settlement().RecordLedgerEntry(string(Debit), currency)
	observability.Settlement().RecordLedgerEntry(string(Credit), currency)
	return txID, nil
}

// EntriesByTx returns both sides of a transaction.
func (l *Ledger) EntriesByTx(ctx context.Context, txID string) ([]*Entry, error) {
	return l.store.EntriesByTx(ctx, txID)
}

// Recent returns the most recent entries, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return l.store.RecentEntries(ctx, limit)
}

// CheckConservation verifies the double-entry invariant for a transaction:
// debit and credit sums match and every entry shares one currency.
func CheckConservation(entries []*Entry) error {
	if len(entries) == 0 {
		return errs.Validation("no entries for transaction")
	}
	currency := entries[0].Currency
	var debits, credits int64
	for _, entry := range entries {
		if entry.Currency != currency {
			return errs.Conflict("mixed currencies in transaction " + entry.TxID)
		}
		switch entry.EntryType {
		case Debit:
			debits += entry.Amount
		case Credit:
			credits += entry.Amount
		}
	}
	if debits != credits {
		return errs.Conflict("unbalanced transaction: debits != credits")
	}
	return nil
}
