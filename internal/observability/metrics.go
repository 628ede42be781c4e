// Package observability exposes Prometheus metrics for reconcile cycles,
// convergence watches and the HTTP API.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	ReconcileRuns     *prometheus.CounterVec
	ReconcileDuration *prometheus.HistogramVec
	ReconcileRecords  *prometheus.GaugeVec
	IndexerDegraded   *prometheus.GaugeVec
	PendingActions    *prometheus.GaugeVec

	ConvergenceOutcomes *prometheus.CounterVec
	ConvergencePending  prometheus.Gauge

	CacheLookups *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics registers every metric on reg. A nil reg uses the default
// registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "pollkeeper"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		ReconcileRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Reconcile cycles by chain and outcome",
		}, []string{"chain", "status"}),
		ReconcileDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconcile cycle latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"chain"}),
		ReconcileRecords: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "records",
			Help:      "Records in the last reconciled view by source",
		}, []string{"chain", "source"}),
		IndexerDegraded: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "indexer_degraded",
			Help:      "1 when the last cycle ran on ledger fallback",
		}, []string{"chain"}),
		PendingActions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "distribution",
			Name:      "pending_actions",
			Help:      "Polls awaiting a creator distribution action",
		}, []string{"chain"}),
		ConvergenceOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "convergence",
			Name:      "outcomes_total",
			Help:      "Finished convergence watches by outcome",
		}, []string{"outcome"}),
		ConvergencePending: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "convergence",
			Name:      "pending",
			Help:      "Live convergence watches",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// The helpers below are nil-safe so components can run without metrics.

func (m *Metrics) RecordReconcile(chain string, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ReconcileRuns.WithLabelValues(chain, status).Inc()
	m.ReconcileDuration.WithLabelValues(chain).Observe(took.Seconds())
}

func (m *Metrics) RecordCoverage(chain string, indexer, ledgerOnly int, degraded bool, pending int) {
	if m == nil {
		return
	}
	m.ReconcileRecords.WithLabelValues(chain, "indexer").Set(float64(indexer))
	m.ReconcileRecords.WithLabelValues(chain, "ledger").Set(float64(ledgerOnly))
	d := 0.0
	if degraded {
		d = 1
	}
	m.IndexerDegraded.WithLabelValues(chain).Set(d)
	m.PendingActions.WithLabelValues(chain).Set(float64(pending))
}

func (m *Metrics) RecordConvergence(outcome string, pending int) {
	if m == nil {
		return
	}
	if outcome != "" {
		m.ConvergenceOutcomes.WithLabelValues(outcome).Inc()
	}
	m.ConvergencePending.Set(float64(pending))
}

func (m *Metrics) RecordCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookups.WithLabelValues("miss").Inc()
}

func (m *Metrics) RecordHTTP(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, http.StatusText(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}
