package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics records outbox publisher outcomes.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	parked    *prometheus.CounterVec
	lag       prometheus.Histogram
}

// NewOutboxMetrics registers the publisher metrics. A nil registerer yields a
// no-op recorder.
func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events published, by event type.",
		}, []string{"event_type"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_publish_failures_total",
			Help: "Retryable publish failures, by event type.",
		}, []string{"event_type"}),
		parked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_parked_total",
			Help: "Events that will not be retried, by reason.",
		}, []string{"event_type", "reason"}),
		lag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "outbox_publish_lag_seconds",
			Help:    "Time between an event being written and being published.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 15, 60, 300},
		}),
	}
	reg.MustRegister(m.published, m.failed, m.parked, m.lag)
	return m
}

// ObservePublished counts a published event and its outbox lag.
func (m *OutboxMetrics) ObservePublished(eventType string, lag time.Duration) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(eventType)).Inc()
	if lag > 0 {
		m.lag.Observe(lag.Seconds())
	}
}

// IncFailed counts a retryable publish failure.
func (m *OutboxMetrics) IncFailed(eventType string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(eventType)).Inc()
}

// IncParked counts an event moved to its terminal state.
func (m *OutboxMetrics) IncParked(eventType, reason string) {
	if m == nil || m.parked == nil {
		return
	}
	m.parked.WithLabelValues(normalizeLabel(eventType), normalizeLabel(reason)).Inc()
}
