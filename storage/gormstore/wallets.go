package gormstore

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sardis/native/wallet"
)

func walletToRow(w *wallet.Wallet) *WalletRow {
	return &WalletRow{
		WalletID:     w.WalletID,
		AgentID:      w.AgentID,
		AccountType:  string(w.AccountType),
		Addresses:    marshalJSON(w.Addresses),
		Frozen:       w.Frozen,
		FreezeReason: w.FreezeReason,
		CreatedAt:    w.CreatedAt,
		UpdatedAt:    w.UpdatedAt,
	}
}

func walletFromRow(row *WalletRow) *wallet.Wallet {
	w := &wallet.Wallet{
		WalletID:     row.WalletID,
		AgentID:      row.AgentID,
		AccountType:  wallet.AccountType(row.AccountType),
		Frozen:       row.Frozen,
		FreezeReason: row.FreezeReason,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	unmarshalJSON(row.Addresses, &w.Addresses)
	return w
}

// PutWallet implements wallet.Store.
func (s *Store) PutWallet(ctx context.Context, w *wallet.Wallet) error {
	return s.db.WithContext(ctx).Save(walletToRow(w)).Error
}

// GetWallet implements wallet.Store.
func (s *Store) GetWallet(ctx context.Context, walletID string) (*wallet.Wallet, error) {
	var row WalletRow
	if err := s.db.WithContext(ctx).First(&row, "wallet_id = ?", walletID).Error; err != nil {
		return nil, notFoundOr(err, "wallet", walletID)
	}
	return walletFromRow(&row), nil
}

// WalletsForAgent implements wallet.Store.
func (s *Store) WalletsForAgent(ctx context.Context, agentID string) ([]*wallet.Wallet, error) {
	var rows []WalletRow
	if err := s.db.WithContext(ctx).Where("agent_id = ?", agentID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*wallet.Wallet, 0, len(rows))
	for i := range rows {
		out = append(out, walletFromRow(&rows[i]))
	}
	return out, nil
}

// SetBalance seeds or overwrites a wallet balance.
func (s *Store) SetBalance(ctx context.Context, walletID, chain, token string, amount int64) error {
	row := BalanceRow{WalletID: walletID, Chain: chain, Token: token, Amount: amount}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet_id"}, {Name: "chain"}, {Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount"}),
	}).Create(&row).Error
}

// GetBalance implements the policy balance port. A missing row reads as zero.
func (s *Store) GetBalance(ctx context.Context, walletID, chain, token string) (int64, error) {
	var row BalanceRow
	err := s.db.WithContext(ctx).
		First(&row, "wallet_id = ? AND chain = ? AND token = ?", walletID, chain, token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return row.Amount, nil
}
