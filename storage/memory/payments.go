package memory

import (
	"context"

	"sardis/errs"
	"sardis/native/payments"
)

// PutPayment implements payments.Store.
func (s *Store) PutPayment(_ context.Context, p *payments.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.PaymentID]; !ok {
		s.paymentOrder = append(s.paymentOrder, p.PaymentID)
	}
	s.payments[p.PaymentID] = p.Clone()
	return nil
}

// GetPayment implements payments.Store.
func (s *Store) GetPayment(_ context.Context, paymentID string) (*payments.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, errs.NotFound("payment", paymentID)
	}
	return p.Clone(), nil
}

// PaymentsForWallet implements payments.Store, newest first.
func (s *Store) PaymentsForWallet(_ context.Context, walletID string, limit int) ([]*payments.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*payments.Payment
	for i := len(s.paymentOrder) - 1; i >= 0 && len(out) < limit; i-- {
		p := s.payments[s.paymentOrder[i]]
		if p.WalletID == walletID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}
