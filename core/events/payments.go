package events

const (
	TypePaymentInitiated = "payment.initiated"
	TypePaymentSettled   = "payment.settled"
	TypePaymentFailed    = "payment.failed"
	TypePolicyDenied     = "policy.denied"
)

// PaymentInitiated is emitted when an orchestrated payment passes policy and
// compliance and is handed to the chain executor.
type PaymentInitiated struct {
	PaymentID string
	WalletID  string
	Chain     string
	Token     string
	Amount    int64
	To        string
}

func (PaymentInitiated) EventType() string { return TypePaymentInitiated }

func (e PaymentInitiated) Event() *Event {
	return newEvent(TypePaymentInitiated, map[string]string{
		"payment_id": e.PaymentID,
		"wallet_id":  e.WalletID,
		"chain":      e.Chain,
		"token":      e.Token,
		"amount":     intToString(e.Amount),
		"to":         e.To,
	})
}

// PaymentSettled is emitted after the executor reports a transaction hash and
// the ledger pair is booked.
type PaymentSettled struct {
	PaymentID string
	WalletID  string
	Chain     string
	Token     string
	Amount    int64
	TxHash    string
	LedgerTx  string
}

func (PaymentSettled) EventType() string { return TypePaymentSettled }

func (e PaymentSettled) Event() *Event {
	return newEvent(TypePaymentSettled, map[string]string{
		"payment_id": e.PaymentID,
		"wallet_id":  e.WalletID,
		"chain":      e.Chain,
		"token":      e.Token,
		"amount":     intToString(e.Amount),
		"tx_hash":    e.TxHash,
		"ledger_tx":  e.LedgerTx,
	})
}

// PaymentFailed is emitted when dispatch fails after admission.
type PaymentFailed struct {
	PaymentID string
	WalletID  string
	Chain     string
	Reason    string
}

func (PaymentFailed) EventType() string { return TypePaymentFailed }

func (e PaymentFailed) Event() *Event {
	return newEvent(TypePaymentFailed, map[string]string{
		"payment_id": e.PaymentID,
		"wallet_id":  e.WalletID,
		"chain":      e.Chain,
		"reason":     e.Reason,
	})
}

// PolicyDenied is emitted when the spending policy engine blocks a payment.
type PolicyDenied struct {
	WalletID   string
	AgentID    string
	Amount     int64
	Token      string
	Reason     string
	DecisionID string
}

func (PolicyDenied) EventType() string { return TypePolicyDenied }

func (e PolicyDenied) Event() *Event {
	return newEvent(TypePolicyDenied, map[string]string{
		"wallet_id":   e.WalletID,
		"agent_id":    e.AgentID,
		"amount":      intToString(e.Amount),
		"token":       e.Token,
		"reason":      e.Reason,
		"decision_id": e.DecisionID,
	})
}
