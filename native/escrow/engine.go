package escrow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"sardis/core/events"
	"sardis/errs"
	"sardis/observability"
)

type engineState interface {
	EscrowPut(ctx context.Context, e *Escrow) error
	EscrowGet(ctx context.Context, escrowID string) (*Escrow, error)
	EscrowsByState(ctx context.Context, state State) ([]*Escrow, error)
	EscrowsForAgent(ctx context.Context, agentID string) ([]*Escrow, error)
}

type publisher interface {
	Publish(events.Emitter)
}

type noopPublisher struct{}

func (noopPublisher) Publish(events.Emitter) {}

// Settler moves the escrowed funds to the payee when an escrow releases, or
// back to the payer on refund. It returns the chain transaction hash (empty
// for off-chain settlement) and the ledger transaction id.
type Settler interface {
	Settle(ctx context.Context, e *Escrow, refund bool) (txHash, ledgerTx string, err error)
}

const defaultEscrowTTL = 7 * 24 * time.Hour

// Engine owns the escrow lifecycle. All transitions go through the transition
// table; invalid movement returns a conflict.
type Engine struct {
	state   engineState
	emitter publisher
	settler Settler
	ttl     time.Duration
	nowFn   func() time.Time
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithEmitter wires the event bus. Passing nil keeps the no-op emitter.
func WithEmitter(p publisher) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.emitter = p
		}
	}
}

// WithSettler wires fund movement on release and refund.
func WithSettler(s Settler) EngineOption {
	return func(e *Engine) { e.settler = s }
}

// WithDefaultTTL overrides how long a new escrow lives before expiry.
func WithDefaultTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithClock overrides the engine time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// NewEngine constructs an escrow engine over the given state backend.
func NewEngine(state engineState, opts ...EngineOption) *Engine {
	e := &Engine{
		state:   state,
		emitter: noopPublisher{},
		ttl:     defaultEscrowTTL,
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateInput bundles the create parameters.
type CreateInput struct {
	PayerAgentID string
	PayeeAgentID string
	Amount       int64
	Token        string
	Chain        string
	Description  string
	TTL          time.Duration
	Metadata     map[string]string
}

// Create opens a new escrow in CREATED.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*Escrow, error) {
	now := e.nowFn()
	ttl := in.TTL
	if ttl <= 0 {
		ttl = e.ttl
	}
	esc, err := Sanitize(&Escrow{
		EscrowID:     "esc_" + uuid.NewString(),
		PayerAgentID: in.PayerAgentID,
		PayeeAgentID: in.PayeeAgentID,
		Amount:       in.Amount,
		Token:        in.Token,
		Chain:        in.Chain,
		State:        StateCreated,
		Description:  in.Description,
		Metadata:     in.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	})
	if err != nil {
		return nil, err
	}
	if err := e.state.EscrowPut(ctx, esc); err != nil {
		return nil, err
	}
	e.emitter.Publish(events.EscrowStateChanged{
		Type:     events.TypeEscrowCreated,
		EscrowID: esc.EscrowID,
		PayerID:  esc.PayerAgentID,
		PayeeID:  esc.PayeeAgentID,
		Amount:   esc.Amount,
		Token:    esc.Token,
		ToState:  string(StateCreated),
	})
	return esc.Clone(), nil
}

// Get fetches an escrow by id.
func (e *Engine) Get(ctx context.Context, escrowID string) (*Escrow, error) {
	return e.state.EscrowGet(ctx, escrowID)
}

// ListForAgent lists escrows where the agent is payer or payee.
func (e *Engine) ListForAgent(ctx context.Context, agentID string) ([]*Escrow, error) {
	return e.state.EscrowsForAgent(ctx, agentID)
}

// Fund records the payer's funding transaction and moves CREATED -> FUNDED.
func (e *Engine) Fund(ctx context.Context, escrowID, txHash string) (*Escrow, error) {
	if strings.TrimSpace(txHash) == "" {
		return nil, errs.Validation("funding tx hash required")
	}
	return e.transition(ctx, escrowID, StateFunded, func(esc *Escrow) {
		esc.FundingTxHash = txHash
		esc.FundedAt = e.nowFn()
	})
}

// ConfirmDelivery moves FUNDED -> DELIVERED, recording the delivery proof.
// Only the payer may confirm.
func (e *Engine) ConfirmDelivery(ctx context.Context, escrowID, byAgentID, proof string) (*Escrow, error) {
	esc, err := e.state.EscrowGet(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if esc.PayerAgentID != strings.TrimSpace(byAgentID) {
		return nil, errs.New(errs.CodeUnauthorized, "only the payer can confirm delivery")
	}
	return e.transition(ctx, escrowID, StateDelivered, func(esc *Escrow) {
		esc.DeliveryProof = strings.TrimSpace(proof)
		esc.DeliveredAt = e.nowFn()
	})
}

// Release settles the escrow to the payee and moves to RELEASED. Allowed from
// DELIVERED, or from DISPUTED when a dispute resolves for the payee.
func (e *Engine) Release(ctx context.Context, escrowID string) (*Escrow, error) {
	return e.settle(ctx, escrowID, StateReleased, false, "")
}

// Refund returns the funds to the payer and moves to REFUNDED. Allowed from
// FUNDED, from DISPUTED when a dispute resolves for the payer, or from
// EXPIRED.
func (e *Engine) Refund(ctx context.Context, escrowID, reason string) (*Escrow, error) {
	return e.settle(ctx, escrowID, StateRefunded, true, reason)
}

// Dispute freezes the escrow pending resolution.
func (e *Engine) Dispute(ctx context.Context, escrowID, reason string) (*Escrow, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errs.Validation("dispute reason required")
	}
	return e.transition(ctx, escrowID, StateDisputed, func(esc *Escrow) {
		esc.DisputeReason = reason
		esc.DisputedAt = e.nowFn()
	})
}

// CheckExpired sweeps CREATED and FUNDED escrows past their deadline into
// EXPIRED and returns how many moved. Funds stay locked until an explicit
// refund.
func (e *Engine) CheckExpired(ctx context.Context) (int, error) {
	now := e.nowFn()
	expired := 0
	for _, state := range []State{StateCreated, StateFunded} {
		list, err := e.state.EscrowsByState(ctx, state)
		if err != nil {
			return expired, err
		}
		for _, esc := range list {
			if now.Before(esc.ExpiresAt) {
				continue
			}
			if _, err := e.transition(ctx, esc.EscrowID, StateExpired, nil); err != nil {
				return expired, err
			}
			expired++
		}
	}
	return expired, nil
}

func (e *Engine) settle(ctx context.Context, escrowID string, to State, refund bool, reason string) (*Escrow, error) {
	esc, err := e.state.EscrowGet(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(esc.State, to) {
		return nil, errs.Conflict("escrow " + escrowID + ": cannot move " + string(esc.State) + " -> " + string(to))
	}
	var txHash string
	// An escrow that was never funded has no locked funds to move.
	if e.settler != nil && esc.FundingTxHash != "" {
		txHash, _, err = e.settler.Settle(ctx, esc, refund)
		if err != nil {
			return nil, err
		}
	}
	return e.transition(ctx, escrowID, to, func(esc *Escrow) {
		now := e.nowFn()
		if refund {
			esc.RefundTxHash = txHash
			esc.RefundReason = strings.TrimSpace(reason)
			esc.RefundedAt = now
		} else {
			esc.ReleaseTxHash = txHash
			esc.ReleasedAt = now
		}
	})
}

// transition applies the table, mutates via apply, persists and emits.
func (e *Engine) transition(ctx context.Context, escrowID string, to State, apply func(*Escrow)) (*Escrow, error) {
	esc, err := e.state.EscrowGet(ctx, escrowID)
	if err != nil {
		return nil, err
	}
	from := esc.State
	if !CanTransition(from, to) {
		return nil, errs.Conflict("escrow " + escrowID + ": cannot move " + string(from) + " -> " + string(to))
	}
	if apply != nil {
		apply(esc)
	}
	esc.State = to
	esc.UpdatedAt = e.nowFn()
	if err := e.state.EscrowPut(ctx, esc); err != nil {
		return nil, err
	}
	txHash := esc.ReleaseTxHash
	if to == StateRefunded {
		txHash = esc.RefundTxHash
	}
	e.emitter.Publish(events.EscrowStateChanged{
		Type:      eventTypeFor(to),
		EscrowID:  esc.EscrowID,
		PayerID:   esc.PayerAgentID,
		PayeeID:   esc.PayeeAgentID,
		Amount:    esc.Amount,
		Token:     esc.Token,
		TxHash:    txHash,
		FromState: string(from),
		ToState:   string(to),
	})
	observability.Settlement().RecordEscrowTransition(string(to))
	return esc.Clone(), nil
}

func eventTypeFor(s State) string {
	switch s {
	case StateFunded:
		return events.TypeEscrowFunded
	case StateDelivered:
		return events.TypeEscrowDelivered
	case StateReleased:
		return events.TypeEscrowReleased
	case StateDisputed:
		return events.TypeEscrowDisputed
	case StateRefunded:
		return events.TypeEscrowRefunded
	case StateExpired:
		return events.TypeEscrowExpired
	default:
		return events.TypeEscrowCreated
	}
}
