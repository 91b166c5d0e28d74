package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeFailed    = "failed"
)

// WebhookMetrics tracks billing gateway event ingestion.
type WebhookMetrics struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewWebhookMetrics registers the webhook collectors on reg.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Billing gateway events by type and outcome.",
	}, []string{"type", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "handle_duration_seconds",
		Help:      "Time spent reconciling a billing gateway event.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"type"})
	reg.MustRegister(events, duration)
	return &WebhookMetrics{events: events, duration: duration}
}

// Observe records one handled event.
func (w *WebhookMetrics) Observe(eventType, outcome string, elapsed time.Duration) {
	if w == nil || w.events == nil {
		return
	}
	eventType = normalizeLabel(eventType)
	w.events.WithLabelValues(eventType, normalizeLabel(outcome)).Inc()
	w.duration.WithLabelValues(eventType).Observe(elapsed.Seconds())
}

// MembershipMetrics counts lifecycle transitions applied to memberships.
type MembershipMetrics struct {
	transitions *prometheus.CounterVec
}

// NewMembershipMetrics registers the membership transition counter on reg.
func NewMembershipMetrics(reg prometheus.Registerer) *MembershipMetrics {
	if reg == nil {
		return &MembershipMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "membership",
		Name:      "transitions_total",
		Help:      "Membership lifecycle transitions by kind.",
	}, []string{"transition"})
	reg.MustRegister(transitions)
	return &MembershipMetrics{transitions: transitions}
}

// IncTransition bumps the counter for a named transition, e.g. "downgrade".
func (m *MembershipMetrics) IncTransition(name string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(name)).Inc()
}

// QRMetrics counts verification and redemption outcomes.
type QRMetrics struct {
	outcomes *prometheus.CounterVec
}

// NewQRMetrics registers the QR outcome counter on reg.
func NewQRMetrics(reg prometheus.Registerer) *QRMetrics {
	if reg == nil {
		return &QRMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "qr",
		Name:      "outcomes_total",
		Help:      "QR verify and scan results by operation and status.",
	}, []string{"operation", "status"})
	reg.MustRegister(outcomes)
	return &QRMetrics{outcomes: outcomes}
}

// IncOutcome records the status returned by a QR operation.
func (q *QRMetrics) IncOutcome(operation, status string) {
	if q == nil || q.outcomes == nil {
		return
	}
	q.outcomes.WithLabelValues(normalizeLabel(operation), normalizeLabel(status)).Inc()
}
