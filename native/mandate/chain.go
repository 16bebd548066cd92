package mandate

import (
	"errors"
	"time"

	"sardis/errs"
)

// Structural failure kinds surfaced by the chain constructor. They are wrapped
// in platform errors so the transport maps them without inspecting messages.
var (
	ErrMandateExpired      = errors.New("mandate chain: mandate expired")
	ErrChainLinkage        = errors.New("mandate chain: subjects do not match")
	ErrAmountExceedsCart   = errors.New("mandate chain: payment exceeds cart total")
	ErrAmountExceedsIntent = errors.New("mandate chain: payment exceeds requested amount")
	ErrExpiryOrder         = errors.New("mandate chain: expiries out of order")
)

// Chain is a verified Intent -> Cart -> Payment triple. The constructor is the
// only way to obtain one, so holding a *Chain implies the linkage invariants
// held at construction time. Expiry must be re-checked at execution time via
// Validate.
type Chain struct {
	Intent  IntentMandate
	Cart    CartMandate
	Payment PaymentMandate
}

// NewChain validates the triple and returns the verified chain.
func NewChain(intent IntentMandate, cart CartMandate, payment PaymentMandate, now time.Time) (*Chain, error) {
	c := &Chain{Intent: intent, Cart: cart, Payment: payment}
	if err := c.Validate(now); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate re-runs every structural invariant against the given instant. It
// never consults signatures.
func (c *Chain) Validate(now time.Time) error {
	if c == nil {
		return errs.Validation("nil mandate chain")
	}
	if err := SanitizePayment(&c.Payment); err != nil {
		return errs.Wrap(errs.CodeValidation, "payment mandate", err)
	}
	if c.Intent.Subject != c.Cart.Subject || c.Cart.Subject != c.Payment.Subject {
		return errs.Wrap(errs.CodeChainLinkage, "single-agent invariant", ErrChainLinkage)
	}
	if c.Payment.AmountMinor > c.Cart.Total() {
		return errs.Wrap(errs.CodeValidation, "cart ceiling", ErrAmountExceedsCart)
	}
	if req := c.Intent.RequestedAmountMinor; req != nil && c.Payment.AmountMinor > *req {
		return errs.Wrap(errs.CodeValidation, "intent ceiling", ErrAmountExceedsIntent)
	}
	if c.Intent.ExpiresAt.After(c.Cart.ExpiresAt) || c.Cart.ExpiresAt.After(c.Payment.ExpiresAt) {
		return errs.Wrap(errs.CodeValidation, "expiry ordering", ErrExpiryOrder)
	}
	for _, h := range []Header{c.Intent.Header, c.Cart.Header, c.Payment.Header} {
		if h.Expired(now) {
			return errs.Wrap(errs.CodeMandateExpired, "mandate "+h.MandateID, ErrMandateExpired)
		}
	}
	return nil
}
