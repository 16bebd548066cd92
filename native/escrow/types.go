// Package escrow implements agent-to-agent escrow: funds are locked for a
// payee, released on delivery confirmation, and refunded or disputed
// otherwise. Transitions are fail-closed; anything outside the transition
// table is rejected.
package escrow

import (
	"strings"
	"time"

	"sardis/errs"
)

// State is the escrow lifecycle state.
type State string

const (
	StateCreated   State = "CREATED"
	StateFunded    State = "FUNDED"
	StateDelivered State = "DELIVERED"
	StateReleased  State = "RELEASED"
	StateDisputed  State = "DISPUTED"
	StateRefunded  State = "REFUNDED"
	StateExpired   State = "EXPIRED"
)

// validTransitions is the only authority on lifecycle movement. RELEASED and
// REFUNDED are sinks; an EXPIRED escrow may still be refunded.
var validTransitions = map[State][]State{
	StateCreated:   {StateFunded, StateExpired},
	StateFunded:    {StateDelivered, StateDisputed, StateRefunded, StateExpired},
	StateDelivered: {StateReleased, StateDisputed},
	StateDisputed:  {StateReleased, StateRefunded},
	StateExpired:   {StateRefunded},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether the state is a known lifecycle value.
func (s State) Valid() bool {
	switch s {
	case StateCreated, StateFunded, StateDelivered, StateReleased, StateDisputed, StateRefunded, StateExpired:
		return true
	default:
		return false
	}
}

// Terminal reports whether the state is a sink.
func (s State) Terminal() bool {
	return s == StateReleased || s == StateRefunded
}

// Escrow is one agent-to-agent agreement.
type Escrow struct {
	EscrowID      string            `json:"escrow_id"`
	PayerAgentID  string            `json:"payer_agent_id"`
	PayeeAgentID  string            `json:"payee_agent_id"`
	Amount        int64             `json:"amount"`
	Token         string            `json:"token"`
	Chain         string            `json:"chain"`
	State         State             `json:"state"`
	Description   string            `json:"description,omitempty"`
	FundedAt      time.Time         `json:"funded_at,omitempty"`
	FundingTxHash string            `json:"funding_tx_hash,omitempty"`
	DeliveryProof string            `json:"delivery_proof,omitempty"`
	DeliveredAt   time.Time         `json:"delivered_at,omitempty"`
	ReleasedAt    time.Time         `json:"released_at,omitempty"`
	ReleaseTxHash string            `json:"release_tx_hash,omitempty"`
	RefundedAt    time.Time         `json:"refunded_at,omitempty"`
	RefundTxHash  string            `json:"refund_tx_hash,omitempty"`
	RefundReason  string            `json:"refund_reason,omitempty"`
	DisputedAt    time.Time         `json:"disputed_at,omitempty"`
	DisputeReason string            `json:"dispute_reason,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	ExpiresAt     time.Time         `json:"expires_at"`
}

// Clone returns a deep copy safe for callers to mutate.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Metadata != nil {
		clone.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}

// Sanitize validates the escrow and returns a clone with canonical token
// casing. The original value is not mutated.
func Sanitize(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, errs.Validation("nil escrow")
	}
	clone := e.Clone()
	clone.PayerAgentID = strings.TrimSpace(clone.PayerAgentID)
	clone.PayeeAgentID = strings.TrimSpace(clone.PayeeAgentID)
	if clone.PayerAgentID == "" || clone.PayeeAgentID == "" {
		return nil, errs.Validation("escrow payer and payee required")
	}
	if clone.PayerAgentID == clone.PayeeAgentID {
		return nil, errs.Validation("escrow payer and payee must differ")
	}
	if clone.Amount <= 0 {
		return nil, errs.Validation("escrow amount must be positive")
	}
	clone.Token = strings.ToUpper(strings.TrimSpace(clone.Token))
	if clone.Token == "" {
		return nil, errs.Validation("escrow token required")
	}
	clone.Chain = strings.ToLower(strings.TrimSpace(clone.Chain))
	if clone.Chain == "" {
		return nil, errs.Validation("escrow chain required")
	}
	if !clone.State.Valid() {
		return nil, errs.Validation("invalid escrow state: " + string(clone.State))
	}
	return clone, nil
}
