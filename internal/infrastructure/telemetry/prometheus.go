package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "ledger"

// Metrics holds the service's Prometheus collectors on a private registry.
// It records idempotency guard outcomes, journal activity and HTTP traffic.
type Metrics struct {
	registry *prometheus.Registry

	idempotencyOutcomes *prometheus.CounterVec
	journalEntries      *prometheus.CounterVec
	journalLines        *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors, including the Go runtime
// and process collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		idempotencyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "idempotency_outcomes_total",
			Help:      "Guarded calls by operation and outcome (executed, replayed, conflict, released, unkeyed)",
		}, []string{"operation", "outcome"}),
		journalEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "journal_entries_total",
			Help:      "Journal entries by action (posted, voided, drafted, discarded)",
		}, []string{"action"}),
		journalLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "journal_lines_total",
			Help:      "Journal lines touched by action",
		}, []string{"action"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests processed, labeled by status code",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP requests",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.idempotencyOutcomes,
		m.journalEntries,
		m.journalLines,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// IdempotencyOutcome counts one guarded call
func (m *Metrics) IdempotencyOutcome(operation, outcome string) {
	m.idempotencyOutcomes.WithLabelValues(operation, outcome).Inc()
}

// JournalEntry counts one journal entry transition and its lines
func (m *Metrics) JournalEntry(action string, lines int) {
	m.journalEntries.WithLabelValues(action).Inc()
	m.journalLines.WithLabelValues(action).Add(float64(lines))
}

// DedupeStatsFunc reports cumulative event dedupe counters
type DedupeStatsFunc func() (processed, duplicate, failed int64)

// RegisterDedupeStats exposes the event dedupe counters, read at scrape time
func (m *Metrics) RegisterDedupeStats(stats DedupeStatsFunc) error {
	read := func(pick func(p, d, f int64) int64) func() float64 {
		return func() float64 { return float64(pick(stats())) }
	}
	for _, c := range []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "events_processed_total",
			Help: "Events handled for the first time",
		}, read(func(p, _, _ int64) int64 { return p })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "events_duplicate_total",
			Help: "Redelivered events skipped by id",
		}, read(func(_, d, _ int64) int64 { return d })),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Name: "events_failed_total",
			Help: "Events whose handler returned an error",
		}, read(func(_, _, f int64) int64 { return f })),
	} {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// GinMiddleware records request count and latency per matched route.
// Unmatched paths share the "unmatched" route label.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
