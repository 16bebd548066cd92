package events

const (
	TypeHoldCreated  = "hold.created"
	TypeHoldCaptured = "hold.captured"
	TypeHoldVoided   = "hold.voided"
	TypeHoldExpired  = "hold.expired"

	TypeAgentKeyRotated = "agent.key_rotated"
	TypeWalletFrozen    = "wallet.frozen"
	TypeWalletUnfrozen  = "wallet.unfrozen"

	TypeApprovalRequested = "approval.requested"
	TypeApprovalResolved  = "approval.resolved"
)

// HoldLifecycle covers hold create, capture, void and expiry. The event type
// names the transition.
type HoldLifecycle struct {
	Type     string
	HoldID   string
	WalletID string
	Amount   int64
	Token    string
}

func (e HoldLifecycle) EventType() string { return e.Type }

func (e HoldLifecycle) Event() *Event {
	return newEvent(e.Type, map[string]string{
		"hold_id":   e.HoldID,
		"wallet_id": e.WalletID,
		"amount":    intToString(e.Amount),
		"token":     e.Token,
	})
}

// AgentKeyRotated is emitted on scheduled and emergency key rotation.
type AgentKeyRotated struct {
	AgentID   string
	OldKeyID  string
	NewKeyID  string
	Emergency bool
}

func (AgentKeyRotated) EventType() string { return TypeAgentKeyRotated }

func (e AgentKeyRotated) Event() *Event {
	emergency := "false"
	if e.Emergency {
		emergency = "true"
	}
	return newEvent(TypeAgentKeyRotated, map[string]string{
		"agent_id":   e.AgentID,
		"old_key_id": e.OldKeyID,
		"new_key_id": e.NewKeyID,
		"emergency":  emergency,
	})
}

// WalletFrozen is emitted when a wallet freeze state flips.
type WalletFrozen struct {
	WalletID string
	Frozen   bool
	Reason   string
}

func (e WalletFrozen) EventType() string {
	if e.Frozen {
		return TypeWalletFrozen
	}
	return TypeWalletUnfrozen
}

func (e WalletFrozen) Event() *Event {
	return newEvent(e.EventType(), map[string]string{
		"wallet_id": e.WalletID,
		"reason":    e.Reason,
	})
}

// ApprovalRequested is emitted when confidence routing escalates a payment to
// a human tier.
type ApprovalRequested struct {
	WorkflowID string
	PaymentID  string
	Tier       string
	Confidence float64
}

func (ApprovalRequested) EventType() string { return TypeApprovalRequested }

func (e ApprovalRequested) Event() *Event {
	return newEvent(TypeApprovalRequested, map[string]string{
		"workflow_id": e.WorkflowID,
		"payment_id":  e.PaymentID,
		"tier":        e.Tier,
		"confidence":  floatToString(e.Confidence),
	})
}

// ApprovalResolved is emitted when a pending workflow reaches quorum, is
// rejected, or expires.
type ApprovalResolved struct {
	WorkflowID string
	PaymentID  string
	Outcome    string
}

func (ApprovalResolved) EventType() string { return TypeApprovalResolved }

func (e ApprovalResolved) Event() *Event {
	return newEvent(TypeApprovalResolved, map[string]string{
		"workflow_id": e.WorkflowID,
		"payment_id":  e.PaymentID,
		"outcome":     e.Outcome,
	})
}
