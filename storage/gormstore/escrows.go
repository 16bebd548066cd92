package gormstore

import (
	"context"

	"sardis/native/escrow"
)

func escrowToRow(e *escrow.Escrow) *EscrowRow {
	return &EscrowRow{
		EscrowID:      e.EscrowID,
		PayerAgentID:  e.PayerAgentID,
		PayeeAgentID:  e.PayeeAgentID,
		Amount:        e.Amount,
		Token:         e.Token,
		Chain:         e.Chain,
		State:         string(e.State),
		Description:   e.Description,
		FundedAt:      e.FundedAt,
		FundingTxHash: e.FundingTxHash,
		DeliveryProof: e.DeliveryProof,
		DeliveredAt:   e.DeliveredAt,
		ReleasedAt:    e.ReleasedAt,
		ReleaseTxHash: e.ReleaseTxHash,
		RefundedAt:    e.RefundedAt,
		RefundTxHash:  e.RefundTxHash,
		RefundReason:  e.RefundReason,
		DisputedAt:    e.DisputedAt,
		DisputeReason: e.DisputeReason,
		Metadata:      marshalJSON(e.Metadata),
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		ExpiresAt:     e.ExpiresAt,
	}
}

func escrowFromRow(row *EscrowRow) *escrow.Escrow {
	e := &escrow.Escrow{
		EscrowID:      row.EscrowID,
		PayerAgentID:  row.PayerAgentID,
		PayeeAgentID:  row.PayeeAgentID,
		Amount:        row.Amount,
		Token:         row.Token,
		Chain:         row.Chain,
		State:         escrow.State(row.State),
		Description:   row.Description,
		FundedAt:      row.FundedAt,
		FundingTxHash: row.FundingTxHash,
		DeliveryProof: row.DeliveryProof,
		DeliveredAt:   row.DeliveredAt,
		ReleasedAt:    row.ReleasedAt,
		ReleaseTxHash: row.ReleaseTxHash,
		RefundedAt:    row.RefundedAt,
		RefundTxHash:  row.RefundTxHash,
		RefundReason:  row.RefundReason,
		DisputedAt:    row.DisputedAt,
		DisputeReason: row.DisputeReason,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
		ExpiresAt:     row.ExpiresAt,
	}
	unmarshalJSON(row.Metadata, &e.Metadata)
	return e
}

// EscrowPut implements the escrow engine state port.
func (s *Store) EscrowPut(ctx context.Context, e *escrow.Escrow) error {
	return s.db.WithContext(ctx).Save(escrowToRow(e)).Error
}

// EscrowGet implements the escrow engine state port.
func (s *Store) EscrowGet(ctx context.Context, escrowID string) (*escrow.Escrow, error) {
	var row EscrowRow
	if err := s.db.WithContext(ctx).First(&row, "escrow_id = ?", escrowID).Error; err != nil {
		return nil, notFoundOr(err, "escrow", escrowID)
	}
	return escrowFromRow(&row), nil
}

// EscrowsByState implements the escrow engine state port.
func (s *Store) EscrowsByState(ctx context.Context, state escrow.State) ([]*escrow.Escrow, error) {
	var rows []EscrowRow
	if err := s.db.WithContext(ctx).Where("state = ?", string(state)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*escrow.Escrow, 0, len(rows))
	for i := range rows {
		out = append(out, escrowFromRow(&rows[i]))
	}
	return out, nil
}

// SettlementPut implements the escrow settlement log.
func (s *Store) SettlementPut(ctx context.Context, rec *escrow.Settlement) error {
	return s.db.WithContext(ctx).Save(&SettlementRow{
		SettlementID:   rec.SettlementID,
		EscrowID:       rec.EscrowID,
		SettlementType: string(rec.Type),
		TxHash:         rec.TxHash,
		LedgerTx:       rec.LedgerTx,
		Amount:         rec.Amount,
		Token:          rec.Token,
		Chain:          rec.Chain,
		Refund:         rec.Refund,
		CreatedAt:      rec.CreatedAt,
	}).Error
}

// SettlementsForEscrow returns the settlement rows for one escrow.
func (s *Store) SettlementsForEscrow(ctx context.Context, escrowID string) ([]*escrow.Settlement, error) {
	var rows []SettlementRow
	if err := s.db.WithContext(ctx).Where("escrow_id = ?", escrowID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*escrow.Settlement, 0, len(rows))
	for i := range rows {
		row := &rows[i]
		out = append(out, &escrow.Settlement{
			SettlementID: row.SettlementID,
			EscrowID:     row.EscrowID,
			Type:         escrow.SettlementType(row.SettlementType),
			TxHash:       row.TxHash,
			LedgerTx:     row.LedgerTx,
			Amount:       row.Amount,
			Token:        row.Token,
			Chain:        row.Chain,
			Refund:       row.Refund,
			CreatedAt:    row.CreatedAt,
		})
	}
	return out, nil
}

// EscrowsForAgent implements the escrow engine state port.
func (s *Store) EscrowsForAgent(ctx context.Context, agentID string) ([]*escrow.Escrow, error) {
	var rows []EscrowRow
	err := s.db.WithContext(ctx).
		Where("payer_agent_id = ? OR payee_agent_id = ?", agentID, agentID).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]*escrow.Escrow, 0, len(rows))
	for i := range rows {
		out = append(out, escrowFromRow(&rows[i]))
	}
	return out, nil
}
