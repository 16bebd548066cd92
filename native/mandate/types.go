// Package mandate defines the typed authorization artifacts of the platform:
// Intent, Cart and Payment mandates plus the chained constructor that enforces
// their linkage invariants. Structure and time are validated here; signatures
// are verified separately against the agent identity registry.
package mandate

import (
	"encoding/json"
	"fmt"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// TransactionModality mirrors the card-network presence flag carried on
// payment mandates.
type TransactionModality string

const (
	HumanPresent    TransactionModality = "human_present"
	HumanNotPresent TransactionModality = "human_not_present"
)

// Valid reports whether the modality is one of the supported values.
func (m TransactionModality) Valid() bool {
	return m == HumanPresent || m == HumanNotPresent
}

// Header carries the fields shared by all three mandate kinds. Proof holds the
// detached signature over the mandate's signing bytes and is excluded from
// those bytes.
type Header struct {
	MandateID string    `json:"mandate_id"`
	Issuer    string    `json:"issuer"`
	Subject   string    `json:"subject"`
	ExpiresAt time.Time `json:"expires_at"`
	Nonce     string    `json:"nonce"`
	Domain    string    `json:"domain"`
	Purpose   string    `json:"purpose"`
	Proof     []byte    `json:"proof,omitempty"`
}

// Expired reports whether the mandate is past its expiry at the given instant.
func (h Header) Expired(now time.Time) bool {
	return !h.ExpiresAt.IsZero() && !now.Before(h.ExpiresAt)
}

// LineItem is a single cart entry. Amounts are minor units of the cart
// currency.
type LineItem struct {
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	PriceMinor int64  `json:"price_minor"`
}

// IntentMandate declares the agent's goal and the scopes it may spend under.
type IntentMandate struct {
	Header
	Scope                []string `json:"scope"`
	RequestedAmountMinor *int64   `json:"requested_amount_minor,omitempty"`
}

// CartMandate binds a merchant basket to the agent's intent.
type CartMandate struct {
	Header
	LineItems      []LineItem `json:"line_items"`
	MerchantDomain string     `json:"merchant_domain"`
	Currency       string     `json:"currency"`
	SubtotalMinor  int64      `json:"subtotal_minor"`
	TaxesMinor     int64      `json:"taxes_minor"`
}

// Total returns the cart ceiling the payment must not exceed.
func (c CartMandate) Total() int64 { return c.SubtotalMinor + c.TaxesMinor }

// PaymentMandate authorizes a single on-chain transfer. WalletID is an
// execution-only routing hint and is never part of the signed payload.
type PaymentMandate struct {
	Header
	Chain               string              `json:"chain"`
	Token               string              `json:"token"`
	AmountMinor         int64               `json:"amount_minor"`
	Destination         string              `json:"destination"`
	AuditHash           string              `json:"audit_hash"`
	AIAgentPresence     bool                `json:"ai_agent_presence"`
	TransactionModality TransactionModality `json:"transaction_modality"`
	WalletID            string              `json:"-"`
}

// SanitizePayment validates the standalone payment fields that do not depend
// on the rest of the chain.
func SanitizePayment(p *PaymentMandate) error {
	if p == nil {
		return fmt.Errorf("nil payment mandate")
	}
	if p.AmountMinor <= 0 {
		return fmt.Errorf("payment amount must be positive")
	}
	if !ethcommon.IsHexAddress(p.Destination) {
		return fmt.Errorf("invalid destination address %q", p.Destination)
	}
	if !p.TransactionModality.Valid() {
		return fmt.Errorf("invalid transaction modality %q", p.TransactionModality)
	}
	return nil
}

// signingView strips the proof before serialisation so the signature never
// covers itself.
func signingView[T any](m T, strip func(*T)) ([]byte, error) {
	clone := m
	strip(&clone)
	return json.Marshal(clone)
}

// SigningBytes returns the canonical byte serialisation signed by the issuer.
func (m IntentMandate) SigningBytes() ([]byte, error) {
	return signingView(m, func(c *IntentMandate) { c.Proof = nil })
}

// SigningBytes returns the canonical byte serialisation signed by the issuer.
func (m CartMandate) SigningBytes() ([]byte, error) {
	return signingView(m, func(c *CartMandate) { c.Proof = nil })
}

// SigningBytes returns the canonical byte serialisation signed by the issuer.
// WalletID carries a `json:"-"` tag so the routing hint stays unsigned.
func (m PaymentMandate) SigningBytes() ([]byte, error) {
	return signingView(m, func(c *PaymentMandate) { c.Proof = nil })
}
