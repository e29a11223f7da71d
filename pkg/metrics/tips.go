package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels shared by the tip metrics.
const (
	OutcomeApplied   = "applied"
	OutcomeReplay    = "replay"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
)

// TipMetrics records tip lifecycle transitions and event traffic.
type TipMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	published   *prometheus.CounterVec
	consumed    *prometheus.CounterVec
}

// NewTipMetrics registers the tip metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewTipMetrics(reg prometheus.Registerer) *TipMetrics {
	if reg == nil {
		return &TipMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tip_transitions_total",
		Help: "Tip intent operations by transition and outcome.",
	}, []string{"transition", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tip_transition_duration_seconds",
		Help:    "Latency of tip intent operations including lock waits.",
		Buckets: prometheus.DefBuckets,
	}, []string{"transition"})
	published := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tip_events_published_total",
		Help: "Tip events handed to the broker by event type and outcome.",
	}, []string{"event_type", "outcome"})
	consumed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tip_events_consumed_total",
		Help: "Tip events received by the consumer by event type and outcome.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(transitions, duration, published, consumed)
	return &TipMetrics{
		transitions: transitions,
		duration:    duration,
		published:   published,
		consumed:    consumed,
	}
}

// ObserveTransition records one tip operation and its latency.
func (m *TipMetrics) ObserveTransition(transition, outcome string, elapsed time.Duration) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(transition), normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(normalizeLabel(transition)).Observe(elapsed.Seconds())
}

// IncPublished counts a publish attempt.
func (m *TipMetrics) IncPublished(eventType, outcome string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// IncConsumed counts a consumed delivery.
func (m *TipMetrics) IncConsumed(eventType, outcome string) {
	if m == nil || m.consumed == nil {
		return
	}
	m.consumed.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
