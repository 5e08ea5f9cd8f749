// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the swapper.
// A nil *Metrics is valid and records nothing, so call sites don't need
// guards when metrics are disabled.
type Metrics struct {
	// Cycle metrics
	CyclesTotal   *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	// Ledger metrics
	LedgerAppends *prometheus.CounterVec

	// Oracle metrics
	PriceFetches    *prometheus.CounterVec
	OracleCacheHits prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_swapper"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Total number of swap cycles by terminal outcome",
		}, []string{"outcome"}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of swap cycles",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		LedgerAppends: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Total number of records appended to the ledger by status",
		}, []string{"status"}),
		PriceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "price_fetches_total",
			Help:      "Total number of price fetches by source",
		}, []string{"source"}),
		OracleCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "cache_hits_total",
			Help:      "Total number of price lookups served from cache",
		}),
	}
}

// ObserveCycle records one finished cycle.
func (m *Metrics) ObserveCycle(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.CyclesTotal.WithLabelValues(outcome).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

// ObserveLedgerAppend records one ledger append.
func (m *Metrics) ObserveLedgerAppend(status string) {
	if m == nil {
		return
	}
	m.LedgerAppends.WithLabelValues(status).Inc()
}

// ObservePriceFetch records one price fetch against a live source.
func (m *Metrics) ObservePriceFetch(source string) {
	if m == nil {
		return
	}
	m.PriceFetches.WithLabelValues(source).Inc()
}

// ObserveCacheHit records one cached price lookup.
func (m *Metrics) ObserveCacheHit() {
	if m == nil {
		return
	}
	m.OracleCacheHits.Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
