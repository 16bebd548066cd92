package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"sardis/errs"
	"sardis/native/policy"
)

// PutPolicy stores the active spending policy for a wallet. The full policy
// document lands as JSON; runtime counters live in spend rows.
func (s *Store) PutPolicy(ctx context.Context, walletID string, p *policy.SpendingPolicy) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, "encode policy", err)
	}
	row := PolicyRow{
		PolicyID:  p.PolicyID,
		WalletID:  walletID,
		AgentID:   p.AgentID,
		Document:  string(raw),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

// PolicyForWallet implements the payments policy store port.
func (s *Store) PolicyForWallet(ctx context.Context, walletID string) (*policy.SpendingPolicy, error) {
	var row PolicyRow
	if err := s.db.WithContext(ctx).First(&row, "wallet_id = ?", walletID).Error; err != nil {
		return nil, notFoundOr(err, "spending policy", walletID)
	}
	var p policy.SpendingPolicy
	if err := json.Unmarshal([]byte(row.Document), &p); err != nil {
		return nil, errs.Wrap(errs.CodeInternal, "decode policy", err)
	}
	p.CreatedAt = row.CreatedAt
	p.UpdatedAt = row.UpdatedAt
	return &p, nil
}

// SpentTotal implements policy.StatePort.
func (s *Store) SpentTotal(ctx context.Context, policyID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&SpendRow{}).
		Where("policy_id = ?", policyID).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// WindowSpent implements policy.StatePort.
func (s *Store) WindowSpent(ctx context.Context, policyID string, window policy.WindowType, start time.Time) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&SpendRow{}).
		Where("policy_id = ? AND spent_at >= ? AND spent_at < ?", policyID, start, start.Add(window.Duration())).
		Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
	return total, err
}

// RecordSpend implements policy.StatePort.
func (s *Store) RecordSpend(ctx context.Context, policyID string, amount int64, at time.Time) error {
	if amount <= 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&SpendRow{PolicyID: policyID, Amount: amount, SpentAt: at}).Error
}
