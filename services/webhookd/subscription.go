// Package webhookd delivers platform events to subscriber endpoints with
// HMAC-signed payloads, bounded retries and per-subscription rate limits.
package webhookd

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"sardis/errs"
)

// Subscription is one registered webhook endpoint. An empty Events list
// subscribes to everything.
type Subscription struct {
	SubscriptionID string    `json:"subscription_id"`
	URL            string    `json:"url"`
	Secret         string    `json:"-"`
	Events         []string  `json:"events,omitempty"`
	Active         bool      `json:"active"`
	RateLimit      int       `json:"rate_limit,omitempty"`
	TotalCount     int64     `json:"total_count"`
	SuccessCount   int64     `json:"success_count"`
	FailCount      int64     `json:"fail_count"`
	LastDeliveryAt time.Time `json:"last_delivery_at,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Clone returns a deep copy safe for callers to mutate.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	clone.Events = append([]string(nil), s.Events...)
	return &clone
}

// Matches reports whether the subscription wants the event type.
func (s *Subscription) Matches(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType {
			return true
		}
	}
	return false
}

// DeliveryAttempt is the audit row recorded for every delivery try.
type DeliveryAttempt struct {
	AttemptID      string    `json:"attempt_id"`
	SubscriptionID string    `json:"subscription_id"`
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	AttemptNumber  int       `json:"attempt_number"`
	StatusCode     int       `json:"status_code,omitempty"`
	ResponseBody   string    `json:"response_body,omitempty"`
	Error          string    `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	Succeeded      bool      `json:"succeeded"`
	AttemptedAt    time.Time `json:"attempted_at"`
}

// Store persists subscriptions and their delivery history. CountDelivery must
// update the counters atomically.
type Store interface {
	PutSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	ActiveSubscriptions(ctx context.Context) ([]*Subscription, error)
	CountDelivery(ctx context.Context, subscriptionID string, success bool, at time.Time) error
	RecordAttempt(ctx context.Context, a *DeliveryAttempt) error
	AttemptsForSubscription(ctx context.Context, subscriptionID string, limit int) ([]*DeliveryAttempt, error)
}

// CreateInput bundles subscription registration parameters.
type CreateInput struct {
	URL       string
	Secret    string
	Events    []string
	RateLimit int
}

// NewSubscription validates and builds an active subscription.
func NewSubscription(in CreateInput, now time.Time) (*Subscription, error) {
	parsed, err := url.Parse(strings.TrimSpace(in.URL))
	if err != nil || parsed.Host == "" || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return nil, errs.Validation("webhook url must be an absolute http(s) url")
	}
	if len(in.Secret) < 16 {
		return nil, errs.Validation("webhook secret must be at least 16 characters")
	}
	return &Subscription{
		SubscriptionID: "whsub_" + uuid.NewString(),
		URL:            parsed.String(),
		Secret:         in.Secret,
		Events:         in.Events,
		Active:         true,
		RateLimit:      in.RateLimit,
		CreatedAt:      now,
	}, nil
}
