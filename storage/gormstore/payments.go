package gormstore

import (
	"context"

	"sardis/native/payments"
	"sardis/native/policy"
)

func paymentToRow(p *payments.Payment) *PaymentRow {
	return &PaymentRow{
		PaymentID:   p.PaymentID,
		WalletID:    p.WalletID,
		AgentID:     p.AgentID,
		Chain:       p.Chain,
		Token:       p.Token,
		Amount:      p.Amount,
		FeeAmount:   p.FeeAmount,
		Destination: p.Destination,
		MerchantID:  p.MerchantID,
		Status:      string(p.Status),
		TxHash:      p.TxHash,
		LedgerTx:    p.LedgerTx,
		DecisionID:  p.DecisionID,
		Receipt:     marshalJSON(p.Receipt),
		FailReason:  p.FailReason,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func paymentFromRow(row *PaymentRow) *payments.Payment {
	p := &payments.Payment{
		PaymentID:   row.PaymentID,
		WalletID:    row.WalletID,
		AgentID:     row.AgentID,
		Chain:       row.Chain,
		Token:       row.Token,
		Amount:      row.Amount,
		FeeAmount:   row.FeeAmount,
		Destination: row.Destination,
		MerchantID:  row.MerchantID,
		Status:      payments.Status(row.Status),
		TxHash:      row.TxHash,
		LedgerTx:    row.LedgerTx,
		DecisionID:  row.DecisionID,
		FailReason:  row.FailReason,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.Receipt != "" {
		var receipt policy.Receipt
		unmarshalJSON(row.Receipt, &receipt)
		p.Receipt = &receipt
	}
	return p
}

// PutPayment implements payments.Store.
func (s *Store) PutPayment(ctx context.Context, p *payments.Payment) error {
	return s.db.WithContext(ctx).Save(paymentToRow(p)).Error
}

// GetPayment implements payments.Store.
func (s *Store) GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error) {
	var row PaymentRow
	if err := s.db.WithContext(ctx).First(&row, "payment_id = ?", paymentID).Error; err != nil {
		return nil, notFoundOr(err, "payment", paymentID)
	}
	return paymentFromRow(&row), nil
}

// PaymentsForWallet implements payments.Store, newest first.
func (s *Store) PaymentsForWallet(ctx context.Context, walletID string, limit int) ([]*payments.Payment, error) {
	var rows []PaymentRow
	q := s.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at DESC, payment_id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*payments.Payment, 0, len(rows))
	for i := range rows {
		out = append(out, paymentFromRow(&rows[i]))
	}
	return out, nil
}
