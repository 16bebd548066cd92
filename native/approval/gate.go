package approval

import (
	"context"

	"sardis/native/payments"
)

// HistoryPort assembles the confidence inputs for a held payment from agent
// history and KYA records.
type HistoryPort interface {
	InputsFor(ctx context.Context, p *payments.Payment) (Inputs, error)
}

// Gate adapts the confidence router and workflow manager to the orchestrator
// approval port. Payments that the policy engine flags for approval are
// scored and opened at the routed tier.
type Gate struct {
	manager *Manager
	history HistoryPort
}

// NewGate wires the manager and history source.
func NewGate(manager *Manager, history HistoryPort) *Gate {
	return &Gate{manager: manager, history: history}
}

// RequestApproval scores the payment and opens a workflow at the routed tier.
func (g *Gate) RequestApproval(ctx context.Context, p *payments.Payment) (string, error) {
	var in Inputs
	if g.history != nil {
		var err error
		in, err = g.history.InputsFor(ctx, p)
		if err != nil {
			return "", err
		}
	}
	confidence := Confidence(in)
	tier := Route(confidence)
	req, err := g.manager.Open(ctx, p.PaymentID, tier, confidence, nil)
	if err != nil {
		return "", err
	}
	return req.WorkflowID, nil
}
