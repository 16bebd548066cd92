// Package memory is the in-process storage backend. It implements every
// native persistence port and is the default for tests and local runs.
package memory

import (
	"sync"
	"time"

	"sardis/native/approval"
	"sardis/native/escrow"
	"sardis/native/holds"
	"sardis/native/ledger"
	"sardis/native/payments"
	"sardis/native/policy"
	"sardis/native/wallet"
	"sardis/services/webhookd"
)

// Store holds all platform state behind one mutex. Every accessor returns
// clones so callers never share memory with the store.
type Store struct {
	mu sync.RWMutex

	wallets       map[string]*wallet.Wallet
	policies      map[string]*policy.SpendingPolicy
	spends        map[string][]spendRecord
	balances      map[string]int64
	payments      map[string]*payments.Payment
	paymentOrder  []string
	escrows       map[string]*escrow.Escrow
	settlements   map[string][]*escrow.Settlement
	holds         map[string]*holds.Hold
	ledgerEntries []*ledger.Entry
	approvals     map[string]*approval.Request
	webhookSubs   map[string]*webhookd.Subscription
	webhookTries  []*webhookd.DeliveryAttempt
}

type spendRecord struct {
	amount int64
	at     time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		wallets:     make(map[string]*wallet.Wallet),
		policies:    make(map[string]*policy.SpendingPolicy),
		spends:      make(map[string][]spendRecord),
		balances:    make(map[string]int64),
		payments:    make(map[string]*payments.Payment),
		escrows:     make(map[string]*escrow.Escrow),
		settlements: make(map[string][]*escrow.Settlement),
		holds:       make(map[string]*holds.Hold),
		approvals:   make(map[string]*approval.Request),
		webhookSubs: make(map[string]*webhookd.Subscription),
	}
}

func balanceKey(walletID, chain, token string) string {
	return walletID + "|" + chain + "|" + token
}
