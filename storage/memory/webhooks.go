package memory

import (
	"context"
	"time"

	"sardis/errs"
	"sardis/services/webhookd"
)

// PutSubscription implements webhookd.Store.
func (s *Store) PutSubscription(_ context.Context, sub *webhookd.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhookSubs[sub.SubscriptionID] = sub.Clone()
	return nil
}

// GetSubscription implements webhookd.Store.
func (s *Store) GetSubscription(_ context.Context, subscriptionID string) (*webhookd.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.webhookSubs[subscriptionID]
	if !ok {
		return nil, errs.NotFound("webhook subscription", subscriptionID)
	}
	return sub.Clone(), nil
}

// ActiveSubscriptions implements webhookd.Store.
func (s *Store) ActiveSubscriptions(_ context.Context) ([]*webhookd.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*webhookd.Subscription
	for _, sub := range s.webhookSubs {
		if sub.Active {
			out = append(out, sub.Clone())
		}
	}
	return out, nil
}

// CountDelivery implements webhookd.Store; counters update under one lock.
func (s *Store) CountDelivery(_ context.Context, subscriptionID string, success bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.webhookSubs[subscriptionID]
	if !ok {
		return errs.NotFound("webhook subscription", subscriptionID)
	}
	sub.TotalCount++
	if success {
		sub.SuccessCount++
	} else {
		sub.FailCount++
	}
	sub.LastDeliveryAt = at
	return nil
}

// RecordAttempt implements webhookd.Store.
func (s *Store) RecordAttempt(_ context.Context, a *webhookd.DeliveryAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *a
	s.webhookTries = append(s.webhookTries, &clone)
	return nil
}

// AttemptsForSubscription implements webhookd.Store, newest first.
func (s *Store) AttemptsForSubscription(_ context.Context, subscriptionID string, limit int) ([]*webhookd.DeliveryAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*webhookd.DeliveryAttempt
	for i := len(s.webhookTries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.webhookTries[i].SubscriptionID == subscriptionID {
			clone := *s.webhookTries[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}
