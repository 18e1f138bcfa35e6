package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Webhook delivery outcomes.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// WebhookMetrics records billing webhook deliveries per provider.
type WebhookMetrics struct {
	duration   *prometheus.HistogramVec
	deliveries *prometheus.CounterVec
	unverified *prometheus.CounterVec
}

// NewWebhookMetrics registers the webhook metrics on the provided registerer.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webhook_processing_seconds",
		Help:    "Time spent handling a billing webhook delivery.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Billing webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	unverified := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_unverified_deliveries_total",
		Help: "Billing webhook deliveries accepted without a signature check.",
	}, []string{"provider"})
	reg.MustRegister(duration, deliveries, unverified)
	return &WebhookMetrics{
		duration:   duration,
		deliveries: deliveries,
		unverified: unverified,
	}
}

// ObserveDuration records how long a delivery took.
func (w *WebhookMetrics) ObserveDuration(provider string, duration time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(provider)).Observe(duration.Seconds())
}

// IncDelivery counts a delivery with the given outcome.
func (w *WebhookMetrics) IncDelivery(provider, outcome string) {
	if w == nil || w.deliveries == nil {
		return
	}
	w.deliveries.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// IncUnverified counts a delivery accepted without signature verification.
// The delivery's outcome is still counted once by IncDelivery.
func (w *WebhookMetrics) IncUnverified(provider string) {
	if w == nil || w.unverified == nil {
		return
	}
	w.unverified.WithLabelValues(normalizeLabel(provider)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
