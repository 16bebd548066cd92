package gormstore

import (
	"context"

	"sardis/native/approval"
)

func requestToRow(r *approval.Request) *ApprovalRow {
	return &ApprovalRow{
		WorkflowID:        r.WorkflowID,
		PaymentID:         r.PaymentID,
		Tier:              string(r.Tier),
		Confidence:        r.Confidence,
		Quorum:            r.Quorum,
		RequiredApprovers: marshalJSON(r.RequiredApprovers),
		Approvals:         marshalJSON(r.Approvals),
		Rejections:        marshalJSON(r.Rejections),
		Status:            string(r.Status),
		CreatedAt:         r.CreatedAt,
		ExpiresAt:         r.ExpiresAt,
	}
}

func requestFromRow(row *ApprovalRow) *approval.Request {
	r := &approval.Request{
		WorkflowID: row.WorkflowID,
		PaymentID:  row.PaymentID,
		Tier:       approval.Tier(row.Tier),
		Confidence: row.Confidence,
		Quorum:     row.Quorum,
		Status:     approval.WorkflowStatus(row.Status),
		CreatedAt:  row.CreatedAt,
		ExpiresAt:  row.ExpiresAt,
	}
	unmarshalJSON(row.RequiredApprovers, &r.RequiredApprovers)
	unmarshalJSON(row.Approvals, &r.Approvals)
	unmarshalJSON(row.Rejections, &r.Rejections)
	return r
}

// PutRequest implements approval.Store.
func (s *Store) PutRequest(ctx context.Context, r *approval.Request) error {
	return s.db.WithContext(ctx).Save(requestToRow(r)).Error
}

// GetRequest implements approval.Store.
func (s *Store) GetRequest(ctx context.Context, workflowID string) (*approval.Request, error) {
	var row ApprovalRow
	if err := s.db.WithContext(ctx).First(&row, "workflow_id = ?", workflowID).Error; err != nil {
		return nil, notFoundOr(err, "approval workflow", workflowID)
	}
	return requestFromRow(&row), nil
}

// RequestsByStatus implements approval.Store.
func (s *Store) RequestsByStatus(ctx context.Context, status approval.WorkflowStatus) ([]*approval.Request, error) {
	var rows []ApprovalRow
	if err := s.db.WithContext(ctx).Where("status = ?", string(status)).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*approval.Request, 0, len(rows))
	for i := range rows {
		out = append(out, requestFromRow(&rows[i]))
	}
	return out, nil
}
