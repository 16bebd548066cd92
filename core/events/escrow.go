package events

const (
	TypeEscrowCreated   = "escrow.created"
	TypeEscrowFunded    = "escrow.funded"
	TypeEscrowDelivered = "escrow.delivered"
	TypeEscrowReleased  = "escrow.released"
	TypeEscrowRefunded  = "escrow.refunded"
	TypeEscrowDisputed  = "escrow.disputed"
	TypeEscrowExpired   = "escrow.expired"
)

// EscrowStateChanged covers every escrow lifecycle transition. The event type
// names the destination state.
type EscrowStateChanged struct {
	Type      string
	EscrowID  string
	PayerID   string
	PayeeID   string
	Amount    int64
	Token     string
	TxHash    string
	FromState string
	ToState   string
}

func (e EscrowStateChanged) EventType() string { return e.Type }

func (e EscrowStateChanged) Event() *Event {
	attrs := map[string]string{
		"escrow_id":  e.EscrowID,
		"payer_id":   e.PayerID,
		"payee_id":   e.PayeeID,
		"amount":     intToString(e.Amount),
		"token":      e.Token,
		"from_state": e.FromState,
		"to_state":   e.ToState,
	}
	if e.TxHash != "" {
		attrs["tx_hash"] = e.TxHash
	}
	return newEvent(e.Type, attrs)
}
