package gormstore

import (
	"context"

	"gorm.io/gorm"

	"sardis/native/ledger"
)

func entryToRow(e *ledger.Entry) *LedgerEntryRow {
	return &LedgerEntryRow{
		EntryID:     e.EntryID,
		TxID:        e.TxID,
		AccountID:   e.AccountID,
		EntryType:   string(e.EntryType),
		Amount:      e.Amount,
		Currency:    e.Currency,
		Chain:       e.Chain,
		ChainTxHash: e.ChainTxHash,
		Metadata:    marshalJSON(e.Metadata),
		Status:      string(e.Status),
		CreatedAt:   e.CreatedAt,
	}
}

func entryFromRow(row *LedgerEntryRow) *ledger.Entry {
	e := &ledger.Entry{
		EntryID:     row.EntryID,
		TxID:        row.TxID,
		AccountID:   row.AccountID,
		EntryType:   ledger.EntryType(row.EntryType),
		Amount:      row.Amount,
		Currency:    row.Currency,
		Chain:       row.Chain,
		ChainTxHash: row.ChainTxHash,
		Status:      ledger.EntryStatus(row.Status),
		CreatedAt:   row.CreatedAt,
	}
	unmarshalJSON(row.Metadata, &e.Metadata)
	return e
}

// AppendEntries implements ledger.Store. The whole batch commits in one
// transaction or not at all.
func (s *Store) AppendEntries(ctx context.Context, entries []*ledger.Entry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, entry := range entries {
			if err := tx.Create(entryToRow(entry)).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// EntriesByTx implements ledger.Store.
func (s *Store) EntriesByTx(ctx context.Context, txID string) ([]*ledger.Entry, error) {
	var rows []LedgerEntryRow
	if err := s.db.WithContext(ctx).Where("tx_id = ?", txID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, entryFromRow(&rows[i]))
	}
	return out, nil
}

// RecentEntries implements ledger.Store, newest first.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]*ledger.Entry, error) {
	var rows []LedgerEntryRow
	q := s.db.WithContext(ctx).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*ledger.Entry, 0, len(rows))
	for i := range rows {
		out = append(out, entryFromRow(&rows[i]))
	}
	return out, nil
}
