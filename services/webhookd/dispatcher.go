package webhookd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"sardis/core/events"
	"sardis/observability"
)

const (
	headerSignature = "X-Sardis-Signature"
	headerEventID   = "X-Sardis-Event-ID"
	headerEventType = "X-Sardis-Event-Type"
	headerTimestamp = "X-Sardis-Timestamp"
	headerDelivery  = "X-Sardis-Delivery"

	deliveryAPIVersion = "v2"

	maxLoggedBody  = 500
	requestTimeout = 10 * time.Second
)

// Envelope is the wire shape posted to subscriber endpoints.
type Envelope struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Data       map[string]string `json:"data"`
	CreatedAt  time.Time         `json:"created_at"`
	APIVersion string            `json:"api_version"`
}

func envelope(evt *events.Event) *Envelope {
	return &Envelope{
		ID:         evt.ID,
		Type:       evt.Type,
		Data:       evt.Attributes,
		CreatedAt:  evt.Timestamp,
		APIVersion: deliveryAPIVersion,
	}
}

// backoffSchedule caps deliveries at three attempts.
var backoffSchedule = []time.Duration{time.Second, 5 * time.Second, 30 * time.Second}

// Dispatcher fans platform events out to matching subscriptions. Deliveries
// run on tracked goroutines; Shutdown waits for in-flight work.
type Dispatcher struct {
	store    Store
	client   *http.Client
	limiter  *RateLimiter
	delays   []time.Duration
	log      *slog.Logger
	nowFn    func() time.Time
	wg       sync.WaitGroup
	inflight atomic.Int64
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithHTTPClient overrides the delivery client.
func WithHTTPClient(client *http.Client) DispatcherOption {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithBackoff overrides the attempt delays; their count caps the attempts.
func WithBackoff(delays []time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if len(delays) > 0 {
			d.delays = delays
		}
	}
}

// WithRateLimiter overrides the per-subscription limiter.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		if rl != nil {
			d.limiter = rl
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.nowFn = now
		}
	}
}

// NewDispatcher constructs a dispatcher over the given store.
func NewDispatcher(store Store, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		store:   store,
		client:  &http.Client{Timeout: requestTimeout},
		limiter: NewRateLimiter(),
		delays:  backoffSchedule,
		log:     slog.Default(),
		nowFn:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// HandleEvent is the bus subscription entry point. It spawns one delivery job
// per matching active subscription and returns immediately.
func (d *Dispatcher) HandleEvent(evt *events.Event) {
	if evt == nil {
		return
	}
	subs, err := d.store.ActiveSubscriptions(context.Background())
	if err != nil {
		d.log.Error("webhook subscription listing failed", "err", err)
		return
	}
	payload, err := json.Marshal(envelope(evt))
	if err != nil {
		d.log.Error("webhook payload marshal failed", "event_id", evt.ID, "err", err)
		return
	}
	for _, sub := range subs {
		if !sub.Matches(evt.Type) {
			continue
		}
		if !d.limiter.Allow(sub.SubscriptionID, sub.RateLimit, d.nowFn()) {
			d.log.Warn("webhook delivery rate limited",
				"subscription_id", sub.SubscriptionID,
				"event_type", evt.Type,
			)
			continue
		}
		d.wg.Add(1)
		observability.Webhooks().SetQueueDepth(int(d.inflight.Add(1)))
		go func(sub *Subscription) {
			defer func() {
				observability.Webhooks().SetQueueDepth(int(d.inflight.Add(-1)))
				d.wg.Done()
			}()
			d.deliver(context.Background(), sub, evt, payload)
		}(sub)
	}
}

// Deliver runs one delivery synchronously. Exposed for direct callers that
// are not on the bus path.
func (d *Dispatcher) Deliver(ctx context.Context, sub *Subscription, evt *events.Event) error {
	payload, err := json.Marshal(envelope(evt))
	if err != nil {
		return err
	}
	d.deliver(ctx, sub, evt, payload)
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub *Subscription, evt *events.Event, payload []byte) {
	deliveryID := "whdel_" + uuid.NewString()
	for attempt := 1; attempt <= len(d.delays); attempt++ {
		record := d.attemptOnce(ctx, sub, evt, payload, deliveryID, attempt)
		observability.Webhooks().ObserveDelivery(evt.Type, record.Succeeded, time.Duration(record.DurationMS)*time.Millisecond)
		if err := d.store.RecordAttempt(ctx, record); err != nil {
			d.log.Error("webhook attempt record failed", "subscription_id", sub.SubscriptionID, "err", err)
		}
		if err := d.store.CountDelivery(ctx, sub.SubscriptionID, record.Succeeded, record.AttemptedAt); err != nil {
			d.log.Error("webhook counter update failed", "subscription_id", sub.SubscriptionID, "err", err)
		}
		if record.Succeeded {
			return
		}
		if attempt == len(d.delays) {
			d.log.Warn("webhook delivery exhausted",
				"subscription_id", sub.SubscriptionID,
				"event_id", evt.ID,
				"attempts", attempt,
			)
			return
		}
		timer := time.NewTimer(d.delays[attempt-1])
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (d *Dispatcher) attemptOnce(ctx context.Context, sub *Subscription, evt *events.Event, payload []byte, deliveryID string, attempt int) *DeliveryAttempt {
	record := &DeliveryAttempt{
		AttemptID:      "whatt_" + uuid.NewString(),
		SubscriptionID: sub.SubscriptionID,
		EventID:        evt.ID,
		EventType:      evt.Type,
		AttemptNumber:  attempt,
		AttemptedAt:    d.nowFn(),
	}
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		record.Error = err.Error()
		return record
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventID, evt.ID)
	req.Header.Set(headerEventType, evt.Type)
	req.Header.Set(headerTimestamp, strconv.FormatInt(record.AttemptedAt.Unix(), 10))
	req.Header.Set(headerDelivery, deliveryID)
	req.Header.Set(headerSignature, Sign(sub.Secret, record.AttemptedAt, payload))

	resp, err := d.client.Do(req)
	record.DurationMS = time.Since(start).Milliseconds()
	if err != nil {
		record.Error = err.Error()
		return record
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
	record.StatusCode = resp.StatusCode
	record.ResponseBody = string(body)
	record.Succeeded = resp.StatusCode < 300
	return record
}

// Shutdown waits for in-flight deliveries until the context expires.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
