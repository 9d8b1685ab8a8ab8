// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the relay engine.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wormhole"

// Metrics holds the relay's metric instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	MessagesRelayed  *prometheus.CounterVec
	MessagesRejected *prometheus.CounterVec
	DeliveriesTotal  *prometheus.CounterVec
	DeliveryLatency  *prometheus.HistogramVec
	FailuresTotal    *prometheus.CounterVec
	LedgerEntries    prometheus.Gauge
	ResolverLookups  *prometheus.CounterVec
}

// NewMetrics creates the relay's instruments on reg. Pass
// prometheus.DefaultRegisterer to expose them on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		MessagesRelayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Messages relayed through a beam.",
		}, []string{"beam"}),
		MessagesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_rejected_total",
			Help:      "Inbound messages rejected by relay policy.",
		}, []string{"reason"}),
		DeliveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Destination operations by op and status.",
		}, []string{"op", "status"}),
		DeliveryLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delivery_latency_seconds",
			Help:      "Latency of destination operations.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		FailuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_failures_total",
			Help:      "Destination operations that failed.",
		}, []string{"op"}),
		LedgerEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_entries",
			Help:      "Live correlation entries.",
		}),
		ResolverLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_lookups_total",
			Help:      "Destination resolver lookups by cache result.",
		}, []string{"result"}),
	}
}

// Relayed counts one relayed message.
func (m *Metrics) Relayed(beam string) {
	if m == nil {
		return
	}
	m.MessagesRelayed.WithLabelValues(beam).Inc()
}

// Rejected counts one rejected message.
func (m *Metrics) Rejected(reason string) {
	if m == nil {
		return
	}
	m.MessagesRejected.WithLabelValues(reason).Inc()
}

// RecordDelivery records a destination operation with its outcome and latency.
func (m *Metrics) RecordDelivery(op string, err error, latency time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
		m.FailuresTotal.WithLabelValues(op).Inc()
	}
	m.DeliveriesTotal.WithLabelValues(op, status).Inc()
	m.DeliveryLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// SetLedgerEntries reports the number of live correlation entries.
func (m *Metrics) SetLedgerEntries(n int) {
	if m == nil {
		return
	}
	m.LedgerEntries.Set(float64(n))
}

// ResolverHit counts a cached destination lookup.
func (m *Metrics) ResolverHit() {
	if m == nil {
		return
	}
	m.ResolverLookups.WithLabelValues("hit").Inc()
}

// ResolverMiss counts a destination lookup that read the store.
func (m *Metrics) ResolverMiss() {
	if m == nil {
		return
	}
	m.ResolverLookups.WithLabelValues("miss").Inc()
}
