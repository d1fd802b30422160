// Package metrics exposes Prometheus collectors for the analysis service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec
	analysesTotal               *prometheus.CounterVec
	jobRunsTotal                *prometheus.CounterVec
	pollAttemptsTotal           *prometheus.CounterVec
	droppedRecordsTotal         prometheus.Counter
	fallbacksTotal              *prometheus.CounterVec
	enrichmentLookupsTotal      *prometheus.CounterVec
	persistenceFailuresTotal    *prometheus.CounterVec
	outboundRateLimitDelaysSecs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30, 120, 300},
			},
			[]string{"method", "route"},
		)

		analysesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_analyses_total",
				Help: "Completed analyses, labeled by kind and whether mock data was served.",
			},
			[]string{"kind", "mock"},
		)

		jobRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_job_runs_total",
				Help: "Scraping job runs, labeled by terminal outcome.",
			},
			[]string{"outcome"},
		)

		pollAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_poll_attempts_total",
				Help: "Job status checks, labeled by the observed status.",
			},
			[]string{"status"},
		)

		droppedRecordsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "siteintel_dropped_records_total",
				Help: "Job result records that failed validation and were skipped.",
			},
		)

		fallbacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_fallbacks_total",
				Help: "Times mock data replaced a live result, labeled by source.",
			},
			[]string{"source"},
		)

		enrichmentLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_enrichment_lookups_total",
				Help: "Technology lookups, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		persistenceFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "siteintel_persistence_failures_total",
				Help: "Failed side-effect writes, labeled by sink.",
			},
			[]string{"sink"},
		)

		outboundRateLimitDelaysSecs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "siteintel_outbound_rate_limit_delay_seconds",
				Help:    "Histogram of outbound rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeSite reduces a URL or bare host to a lowercase hostname for use as a
// metric label. It returns "unknown" if no host can be parsed.
func SanitizeSite(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.Contains(rawURL, "://") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveAnalysis counts a completed analysis of the given kind.
func ObserveAnalysis(kind string, mock bool) {
	Init()
	analysesTotal.WithLabelValues(kind, strconv.FormatBool(mock)).Inc()
}

// ObserveJobRun counts a finished job run by outcome (succeeded, failed, timeout, error).
func ObserveJobRun(outcome string) {
	Init()
	jobRunsTotal.WithLabelValues(outcome).Inc()
}

// ObservePollAttempt counts one status check.
func ObservePollAttempt(status string) {
	Init()
	if status == "" {
		status = "unknown"
	}
	pollAttemptsTotal.WithLabelValues(status).Inc()
}

// ObserveDroppedRecords adds n skipped records.
func ObserveDroppedRecords(n int) {
	Init()
	if n > 0 {
		droppedRecordsTotal.Add(float64(n))
	}
}

// ObserveFallback counts a mock-data substitution.
func ObserveFallback(source string) {
	Init()
	fallbacksTotal.WithLabelValues(source).Inc()
}

// ObserveEnrichment counts a technology lookup outcome.
func ObserveEnrichment(outcome string) {
	Init()
	enrichmentLookupsTotal.WithLabelValues(outcome).Inc()
}

// ObservePersistenceFailure counts a failed write to the named sink.
func ObservePersistenceFailure(sink string) {
	Init()
	persistenceFailuresTotal.WithLabelValues(sink).Inc()
}

// ObserveRateLimitDelay records the duration of an outbound rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	outboundRateLimitDelaysSecs.WithLabelValues(host).Observe(duration.Seconds())
}
