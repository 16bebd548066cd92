package escrow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"sardis/errs"
	"sardis/native/ledger"
	"sardis/native/mandate"
)

// ChainExecutor submits a transfer described by a payment mandate and returns
// the chain transaction hash.
type ChainExecutor interface {
	ExecuteTransfer(ctx context.Context, p *mandate.PaymentMandate) (string, error)
}

// AddressResolver maps an agent to its wallet address on a chain.
type AddressResolver interface {
	WalletAddress(ctx context.Context, agentID, chain string) (string, error)
}

type ledgerBook interface {
	AppendTransfer(ctx context.Context, in ledger.TransferInput) (string, error)
}

// SettlementType distinguishes how the funds moved.
type SettlementType string

const (
	SettlementOnChain  SettlementType = "on_chain"
	SettlementOffChain SettlementType = "off_chain"
)

// Settlement is the persisted record of one fund movement for an escrow.
type Settlement struct {
	SettlementID string         `json:"settlement_id"`
	EscrowID     string         `json:"escrow_id"`
	Type         SettlementType `json:"settlement_type"`
	TxHash       string         `json:"tx_hash,omitempty"`
	LedgerTx     string         `json:"ledger_tx"`
	Amount       int64          `json:"amount"`
	Token        string         `json:"token"`
	Chain        string         `json:"chain"`
	Refund       bool           `json:"refund"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Clone returns a copy safe for callers to mutate.
func (s *Settlement) Clone() *Settlement {
	if s == nil {
		return nil
	}
	clone := *s
	return &clone
}

// SettlementLog persists settlement rows.
type SettlementLog interface {
	SettlementPut(ctx context.Context, s *Settlement) error
}

// settlementNonce is deterministic per escrow so a retried settlement reuses
// the same mandate nonce and the replay cache rejects the duplicate.
func settlementNonce(escrowID string) string {
	sum := sha256.Sum256([]byte("a2a:settle:" + escrowID))
	return hex.EncodeToString(sum[:])
}

// OnChainSettler settles by synthesizing a payment mandate, executing it on
// chain and booking the matched ledger pair.
type OnChainSettler struct {
	executor  ChainExecutor
	resolver  AddressResolver
	book      ledgerBook
	log       SettlementLog
	domain    string
	mandateTL time.Duration
	nowFn     func() time.Time
}

// OnChainOption customises an OnChainSettler.
type OnChainOption func(*OnChainSettler)

// WithMandateTTL sets how long the synthesized settlement mandate stays valid.
func WithMandateTTL(ttl time.Duration) OnChainOption {
	return func(s *OnChainSettler) {
		if ttl > 0 {
			s.mandateTL = ttl
		}
	}
}

// WithSettlerClock overrides the time source, for tests.
func WithSettlerClock(now func() time.Time) OnChainOption {
	return func(s *OnChainSettler) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// WithSettlementLog wires settlement row persistence.
func WithSettlementLog(log SettlementLog) OnChainOption {
	return func(s *OnChainSettler) { s.log = log }
}

// NewOnChainSettler wires executor, address resolution and the ledger.
func NewOnChainSettler(executor ChainExecutor, resolver AddressResolver, book ledgerBook, domain string, opts ...OnChainOption) *OnChainSettler {
	s := &OnChainSettler{
		executor:  executor,
		resolver:  resolver,
		book:      book,
		domain:    domain,
		mandateTL: 15 * time.Minute,
		nowFn:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle executes the transfer and books debit escrow:<id> / credit
// agent:<recipient>. On refund the recipient is the payer.
func (s *OnChainSettler) Settle(ctx context.Context, e *Escrow, refund bool) (string, string, error) {
	if e == nil {
		return "", "", errs.Validation("nil escrow")
	}
	recipient := e.PayeeAgentID
	purpose := "a2a:release"
	if refund {
		recipient = e.PayerAgentID
		purpose = "a2a:refund"
	}
	dest, err := s.resolver.WalletAddress(ctx, recipient, e.Chain)
	if err != nil {
		return "", "", err
	}
	now := s.nowFn()
	pm := &mandate.PaymentMandate{
		Header: mandate.Header{
			MandateID: "mnd_" + uuid.NewString(),
			Issuer:    e.PayerAgentID,
			Subject:   recipient,
			ExpiresAt: now.Add(s.mandateTL),
			Nonce:     settlementNonce(e.EscrowID),
			Domain:    s.domain,
			Purpose:   purpose,
		},
		Chain:               e.Chain,
		Token:               e.Token,
		AmountMinor:         e.Amount,
		Destination:         dest,
		AuditHash:           "escrow::" + e.EscrowID,
		AIAgentPresence:     true,
		TransactionModality: mandate.HumanNotPresent,
	}
	txHash, err := s.executor.ExecuteTransfer(ctx, pm)
	if err != nil {
		return "", "", errs.Wrap(errs.CodeTransactionFailed, "escrow settlement", err)
	}
	ledgerTx, err := s.book.AppendTransfer(ctx, ledger.TransferInput{
		DebitAccount:  "escrow:" + e.EscrowID,
		CreditAccount: "agent:" + recipient,
		Amount:        e.Amount,
		Currency:      e.Token,
		Chain:         e.Chain,
		ChainTxHash:   txHash,
		Status:        ledger.StatusConfirmed,
		Metadata:      map[string]string{"escrow_id": e.EscrowID, "purpose": purpose},
	})
	if err != nil {
		return txHash, "", err
	}
	if s.log != nil {
		err = s.log.SettlementPut(ctx, &Settlement{
			SettlementID: "settlement_" + uuid.NewString(),
			EscrowID:     e.EscrowID,
			Type:         SettlementOnChain,
			TxHash:       txHash,
			LedgerTx:     ledgerTx,
			Amount:       e.Amount,
			Token:        e.Token,
			Chain:        e.Chain,
			Refund:       refund,
			CreatedAt:    now,
		})
		if err != nil {
			return txHash, ledgerTx, err
		}
	}
	return txHash, ledgerTx, nil
}

// OffChainSettler books the ledger pair without touching a chain. Intended
// for internal accounts and test environments.
type OffChainSettler struct {
	book  ledgerBook
	log   SettlementLog
	nowFn func() time.Time
}

// OffChainOption customises an OffChainSettler.
type OffChainOption func(*OffChainSettler)

// WithOffChainLog wires settlement row persistence.
func WithOffChainLog(log SettlementLog) OffChainOption {
	return func(s *OffChainSettler) { s.log = log }
}

// NewOffChainSettler wires the ledger only.
func NewOffChainSettler(book ledgerBook, opts ...OffChainOption) *OffChainSettler {
	s := &OffChainSettler{book: book, nowFn: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Settle books debit escrow:<id> / credit agent:<recipient> with no chain tx.
func (s *OffChainSettler) Settle(ctx context.Context, e *Escrow, refund bool) (string, string, error) {
	if e == nil {
		return "", "", errs.Validation("nil escrow")
	}
	recipient := e.PayeeAgentID
	purpose := "a2a:release"
	if refund {
		recipient = e.PayerAgentID
		purpose = "a2a:refund"
	}
	ledgerTx, err := s.book.AppendTransfer(ctx, ledger.TransferInput{
		DebitAccount:  "escrow:" + e.EscrowID,
		CreditAccount: "agent:" + recipient,
		Amount:        e.Amount,
		Currency:      e.Token,
		Chain:         e.Chain,
		Status:        ledger.StatusConfirmed,
		Metadata:      map[string]string{"escrow_id": e.EscrowID, "purpose": purpose},
	})
	if err != nil {
		return "", "", err
	}
	if s.log != nil {
		err = s.log.SettlementPut(ctx, &Settlement{
			SettlementID: "settlement_" + uuid.NewString(),
			EscrowID:     e.EscrowID,
			Type:         SettlementOffChain,
			LedgerTx:     ledgerTx,
			Amount:       e.Amount,
			Token:        e.Token,
			Chain:        e.Chain,
			Refund:       refund,
			CreatedAt:    s.nowFn(),
		})
		if err != nil {
			return "", ledgerTx, err
		}
	}
	return "", ledgerTx, nil
}
