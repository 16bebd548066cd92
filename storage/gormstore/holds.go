package gormstore

import (
	"context"

	"sardis/native/holds"
)

func holdToRow(h *holds.Hold) *HoldRow {
	return &HoldRow{
		HoldID:         h.HoldID,
		WalletID:       h.WalletID,
		MerchantID:     h.MerchantID,
		Amount:         h.Amount,
		Token:          h.Token,
		Status:         string(h.Status),
		Purpose:        h.Purpose,
		CreatedAt:      h.CreatedAt,
		ExpiresAt:      h.ExpiresAt,
		CapturedAmount: h.CapturedAmount,
		CapturedAt:     h.CapturedAt,
		CaptureTxID:    h.CaptureTxID,
		VoidedAt:       h.VoidedAt,
	}
}

func holdFromRow(row *HoldRow) *holds.Hold {
	return &holds.Hold{
		HoldID:         row.HoldID,
		WalletID:       row.WalletID,
		MerchantID:     row.MerchantID,
		Amount:         row.Amount,
		Token:          row.Token,
		Status:         holds.Status(row.Status),
		Purpose:        row.Purpose,
		CreatedAt:      row.CreatedAt,
		ExpiresAt:      row.ExpiresAt,
		CapturedAmount: row.CapturedAmount,
		CapturedAt:     row.CapturedAt,
		CaptureTxID:    row.CaptureTxID,
		VoidedAt:       row.VoidedAt,
	}
}

// PutHold implements holds.Store.
func (s *Store) PutHold(ctx context.Context, h *holds.Hold) error {
	return s.db.WithContext(ctx).Save(holdToRow(h)).Error
}

// GetHold implements holds.Store.
func (s *Store) GetHold(ctx context.Context, holdID string) (*holds.Hold, error) {
	var row HoldRow
	if err := s.db.WithContext(ctx).First(&row, "hold_id = ?", holdID).Error; err != nil {
		return nil, notFoundOr(err, "hold", holdID)
	}
	return holdFromRow(&row), nil
}

// ListHolds implements holds.Store.
func (s *Store) ListHolds(ctx context.Context, walletID string) ([]*holds.Hold, error) {
	var rows []HoldRow
	if err := s.db.WithContext(ctx).Where("wallet_id = ?", walletID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*holds.Hold, 0, len(rows))
	for i := range rows {
		out = append(out, holdFromRow(&rows[i]))
	}
	return out, nil
}

// ListByStatus implements holds.Store.
func (s *Store) ListByStatus(ctx context.Context, status holds.Status) ([]*holds.Hold, error) {
	var rows []HoldRow
	if err := s.db.WithContext(ctx).Where("status = ?", string(status)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*holds.Hold, 0, len(rows))
	for i := range rows {
		out = append(out, holdFromRow(&rows[i]))
	}
	return out, nil
}
