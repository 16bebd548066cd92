package observability

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type gatewayMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	gatewayMetricsOnce sync.Once
	gatewayRegistry    *gatewayMetrics

	paymentMetricsOnce sync.Once
	paymentRegistry    *PaymentMetrics

	webhookMetricsOnce sync.Once
	webhookRegistry    *WebhookMetrics

	settlementMetricsOnce sync.Once
	settlementRegistry    *SettlementMetrics
)

// Gateway returns the lazily-initialised registry used to record HTTP
// gateway activity.
func Gateway() *gatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		gatewayRegistry = &gatewayMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "gateway",
				Name:      "requests_total",
				Help:      "Total gateway requests segmented by route and outcome.",
			}, []string{"route", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Total gateway errors segmented by route, method, and status code.",
			}, []string{"route", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sardis",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "gateway",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by rate limiting.",
			}, []string{"route"}),
		}
		prometheus.MustRegister(
			gatewayRegistry.requests,
			gatewayRegistry.errors,
			gatewayRegistry.latency,
			gatewayRegistry.throttles,
		)
	})
	return gatewayRegistry
}

// Observe records the outcome of a gateway request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *gatewayMetrics) Observe(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(route, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(route, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter for the supplied route.
func (m *gatewayMetrics) RecordThrottle(route string) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.throttles.WithLabelValues(route).Inc()
}

// PaymentMetrics bundles collectors tracking the payment pipeline.
type PaymentMetrics struct {
	submissions   *prometheus.CounterVec
	policyDenials *prometheus.CounterVec
	pipelineSteps *prometheus.HistogramVec
	approvals     *prometheus.CounterVec
	replays       prometheus.Counter
}

// Payments exposes the metrics registry for the payment orchestrator.
func Payments() *PaymentMetrics {
	paymentMetricsOnce.Do(func() {
		paymentRegistry = &PaymentMetrics{
			submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "payments",
				Name:      "submissions_total",
				Help:      "Count of mandate submissions segmented by final status.",
			}, []string{"status", "chain", "token"}),
			policyDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "payments",
				Name:      "policy_denials_total",
				Help:      "Count of policy denials segmented by reason.",
			}, []string{"reason"}),
			pipelineSteps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sardis",
				Subsystem: "payments",
				Name:      "pipeline_step_duration_seconds",
				Help:      "Latency distribution for payment pipeline stages.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),
			approvals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "payments",
				Name:      "approval_workflows_total",
				Help:      "Count of approval workflow transitions segmented by tier and outcome.",
			}, []string{"tier", "outcome"}),
			replays: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "payments",
				Name:      "replays_rejected_total",
				Help:      "Count of mandate submissions rejected by the replay cache.",
			}),
		}
		prometheus.MustRegister(
			paymentRegistry.submissions,
			paymentRegistry.policyDenials,
			paymentRegistry.pipelineSteps,
			paymentRegistry.approvals,
			paymentRegistry.replays,
		)
	})
	return paymentRegistry
}

// RecordSubmission increments the submission counter for the final status.
func (m *PaymentMetrics) RecordSubmission(status, chain, token string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(labelOr(status, "unknown"), labelOr(chain, "unknown"), labelAsset(token)).Inc()
}

// RecordDenial increments the policy denial counter for the supplied reason.
func (m *PaymentMetrics) RecordDenial(reason string) {
	if m == nil {
		return
	}
	m.policyDenials.WithLabelValues(labelOr(reason, "unspecified")).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *PaymentMetrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineSteps.WithLabelValues(labelOr(stage, "unknown")).Observe(d.Seconds())
}

// RecordApproval counts an approval workflow transition.
func (m *PaymentMetrics) RecordApproval(tier, outcome string) {
	if m == nil {
		return
	}
	m.approvals.WithLabelValues(labelOr(tier, "unknown"), labelOr(outcome, "unknown")).Inc()
}

// RecordReplay counts a rejected duplicate mandate.
func (m *PaymentMetrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// WebhookMetrics wraps collectors tracking webhook delivery health.
type WebhookMetrics struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	queueDepth prometheus.Gauge
}

// Webhooks exposes the metrics registry for the webhook dispatcher.
func Webhooks() *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookRegistry = &WebhookMetrics{
			deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "webhooks",
				Name:      "deliveries_total",
				Help:      "Count of delivery attempts segmented by event type and outcome.",
			}, []string{"event", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sardis",
				Subsystem: "webhooks",
				Name:      "delivery_duration_seconds",
				Help:      "Latency distribution for webhook delivery attempts.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"event"}),
			queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sardis",
				Subsystem: "webhooks",
				Name:      "queue_depth",
				Help:      "Number of events waiting for delivery.",
			}),
		}
		prometheus.MustRegister(
			webhookRegistry.deliveries,
			webhookRegistry.latency,
			webhookRegistry.queueDepth,
		)
	})
	return webhookRegistry
}

// ObserveDelivery records a delivery attempt outcome and its latency.
func (m *WebhookMetrics) ObserveDelivery(event string, succeeded bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !succeeded {
		outcome = "failure"
	}
	label := labelOr(event, "unknown")
	m.deliveries.WithLabelValues(label, outcome).Inc()
	m.latency.WithLabelValues(label).Observe(d.Seconds())
}

// SetQueueDepth updates the pending-delivery gauge.
func (m *WebhookMetrics) SetQueueDepth(depth int) {
	if m == nil {
		return
	}
	if depth < 0 {
		depth = 0
	}
	m.queueDepth.Set(float64(depth))
}

// SettlementMetrics bundles collectors for escrow settlement and ledger health.
type SettlementMetrics struct {
	escrowTransitions *prometheus.CounterVec
	ledgerEntries     *prometheus.CounterVec
	holdsActive       prometheus.Gauge
}

// Settlement exposes the metrics registry for escrow and ledger activity.
func Settlement() *SettlementMetrics {
	settlementMetricsOnce.Do(func() {
		settlementRegistry = &SettlementMetrics{
			escrowTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "settlement",
				Name:      "escrow_transitions_total",
				Help:      "Count of escrow state transitions segmented by target state.",
			}, []string{"state"}),
			ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sardis",
				Subsystem: "settlement",
				Name:      "ledger_entries_total",
				Help:      "Count of ledger entries appended segmented by entry type and currency.",
			}, []string{"type", "currency"}),
			holdsActive: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sardis",
				Subsystem: "settlement",
				Name:      "holds_active",
				Help:      "Number of currently active holds.",
			}),
		}
		prometheus.MustRegister(
			settlementRegistry.escrowTransitions,
			settlementRegistry.ledgerEntries,
			settlementRegistry.holdsActive,
		)
	})
	return settlementRegistry
}

// RecordEscrowTransition counts a transition into the supplied state.
func (m *SettlementMetrics) RecordEscrowTransition(state string) {
	if m == nil {
		return
	}
	m.escrowTransitions.WithLabelValues(labelOr(state, "unknown")).Inc()
}

// RecordLedgerEntry counts an appended ledger entry.
func (m *SettlementMetrics) RecordLedgerEntry(entryType, currency string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(labelOr(entryType, "unknown"), labelAsset(currency)).Inc()
}

// SetActiveHolds updates the active-hold gauge.
func (m *SettlementMetrics) SetActiveHolds(count int) {
	if m == nil {
		return
	}
	if count < 0 {
		count = 0
	}
	m.holdsActive.Set(float64(count))
}

func labelOr(value, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	return trimmed
}

func labelAsset(asset string) string {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(trimmed)
}
