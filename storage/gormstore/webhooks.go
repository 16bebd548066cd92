package gormstore

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sardis/services/webhookd"
)

func subscriptionToRow(sub *webhookd.Subscription) *WebhookSubscriptionRow {
	return &WebhookSubscriptionRow{
		SubscriptionID: sub.SubscriptionID,
		URL:            sub.URL,
		Secret:         sub.Secret,
		Events:         marshalJSON(sub.Events),
		Active:         sub.Active,
		RateLimit:      sub.RateLimit,
		TotalCount:     sub.TotalCount,
		SuccessCount:   sub.SuccessCount,
		FailCount:      sub.FailCount,
		LastDeliveryAt: sub.LastDeliveryAt,
		CreatedAt:      sub.CreatedAt,
	}
}

func subscriptionFromRow(row *WebhookSubscriptionRow) *webhookd.Subscription {
	sub := &webhookd.Subscription{
		SubscriptionID: row.SubscriptionID,
		URL:            row.URL,
		Secret:         row.Secret,
		Active:         row.Active,
		RateLimit:      row.RateLimit,
		TotalCount:     row.TotalCount,
		SuccessCount:   row.SuccessCount,
		FailCount:      row.FailCount,
		LastDeliveryAt: row.LastDeliveryAt,
		CreatedAt:      row.CreatedAt,
	}
	unmarshalJSON(row.Events, &sub.Events)
	return sub
}

// PutSubscription implements webhookd.Store.
func (s *Store) PutSubscription(ctx context.Context, sub *webhookd.Subscription) error {
	return s.db.WithContext(ctx).Save(subscriptionToRow(sub)).Error
}

// GetSubscription implements webhookd.Store.
func (s *Store) GetSubscription(ctx context.Context, subscriptionID string) (*webhookd.Subscription, error) {
	var row WebhookSubscriptionRow
	if err := s.db.WithContext(ctx).First(&row, "subscription_id = ?", subscriptionID).Error; err != nil {
		return nil, notFoundOr(err, "webhook subscription", subscriptionID)
	}
	return subscriptionFromRow(&row), nil
}

// ActiveSubscriptions implements webhookd.Store.
func (s *Store) ActiveSubscriptions(ctx context.Context) ([]*webhookd.Subscription, error) {
	var rows []WebhookSubscriptionRow
	if err := s.db.WithContext(ctx).Where("active = ?", true).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*webhookd.Subscription, 0, len(rows))
	for i := range rows {
		out = append(out, subscriptionFromRow(&rows[i]))
	}
	return out, nil
}

// CountDelivery implements webhookd.Store. Counters move in a single UPDATE
// so concurrent deliveries never lose increments.
func (s *Store) CountDelivery(ctx context.Context, subscriptionID string, success bool, at time.Time) error {
	counter := "fail_count"
	if success {
		counter = "success_count"
	}
	res := s.db.WithContext(ctx).Model(&WebhookSubscriptionRow{}).
		Where("subscription_id = ?", subscriptionID).
		Updates(map[string]any{
			"total_count":      gorm.Expr("total_count + 1"),
			counter:            gorm.Expr(counter + " + 1"),
			"last_delivery_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundOr(gorm.ErrRecordNotFound, "webhook subscription", subscriptionID)
	}
	return nil
}

// RecordAttempt implements webhookd.Store.
func (s *Store) RecordAttempt(ctx context.Context, a *webhookd.DeliveryAttempt) error {
	row := DeliveryAttemptRow{
		AttemptID:      a.AttemptID,
		SubscriptionID: a.SubscriptionID,
		EventID:        a.EventID,
		EventType:      a.EventType,
		AttemptNumber:  a.AttemptNumber,
		StatusCode:     a.StatusCode,
		ResponseBody:   a.ResponseBody,
		Error:          a.Error,
		DurationMS:     a.DurationMS,
		Succeeded:      a.Succeeded,
		AttemptedAt:    a.AttemptedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// AttemptsForSubscription implements webhookd.Store, newest first.
func (s *Store) AttemptsForSubscription(ctx context.Context, subscriptionID string, limit int) ([]*webhookd.DeliveryAttempt, error) {
	var rows []DeliveryAttemptRow
	q := s.db.WithContext(ctx).Where("subscription_id = ?", subscriptionID).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*webhookd.DeliveryAttempt, 0, len(rows))
	for i := range rows {
		row := rows[i]
		out = append(out, &webhookd.DeliveryAttempt{
			AttemptID:      row.AttemptID,
			SubscriptionID: row.SubscriptionID,
			EventID:        row.EventID,
			EventType:      row.EventType,
			AttemptNumber:  row.AttemptNumber,
			StatusCode:     row.StatusCode,
			ResponseBody:   row.ResponseBody,
			Error:          row.Error,
			DurationMS:     row.DurationMS,
			Succeeded:      row.Succeeded,
			AttemptedAt:    row.AttemptedAt,
		})
	}
	return out, nil
}
