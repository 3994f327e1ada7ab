// Vitalis - Personal Health Tracking and Hybrid Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vitalis

// Package metrics defines the Prometheus instrumentation for Vitalis.
//
// All collectors are registered on the default registry through promauto and
// exposed by the API router at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeDegraded = "degraded"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Ranking Metrics
	RankingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_requests_total",
			Help: "Total ranking calls by operation and outcome",
		},
		[]string{"operation", "outcome"}, // operation: recommend, suggest; outcome: success, degraded, or an error kind
	)

	RankingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_duration_seconds",
			Help:    "Duration of ranking calls in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 3},
		},
		[]string{"operation"},
	)

	RankingCandidates = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranking_candidates",
			Help:    "Candidates considered before truncation",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 20, 40},
		},
		[]string{"operation"},
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_upstream_retries_total",
			Help: "Retried upstream sub-fetches",
		},
		[]string{"upstream"},
	)

	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_upstream_failures_total",
			Help: "Upstream sub-fetches that failed after all retries",
		},
		[]string{"upstream"},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ranking_breaker_state",
			Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
		},
		[]string{"upstream"},
	)

	DegradedResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranking_degraded_total",
			Help: "Responses served without the graph signal",
		},
		[]string{"operation"},
	)

	// Catalog Metrics
	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_reloads_total",
			Help: "Catalog snapshot reloads by outcome",
		},
		[]string{"outcome"},
	)

	CatalogReloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_reload_duration_seconds",
			Help:    "Time to load and index a catalog snapshot",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	CatalogItems = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_items",
			Help: "Recommendation items in the current snapshot by category",
		},
		[]string{"category"},
	)

	CatalogEdges = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_edges",
			Help: "Graph edges in the current snapshot",
		},
	)

	CatalogVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_snapshot_version",
			Help: "Monotonic version of the active catalog snapshot",
		},
	)

	// Ledger Metrics
	LedgerWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_writes_total",
			Help: "Ledger writes by kind and outcome (applied, duplicate, error)",
		},
		[]string{"kind", "outcome"},
	)

	LedgerReadDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_read_duration_seconds",
			Help:    "Duration of ledger reads in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"operation"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRanking records one Recommend or Suggest call.
func RecordRanking(operation, outcome string, candidates int, duration time.Duration) {
	RankingRequests.WithLabelValues(operation, outcome).Inc()
	RankingDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if outcome == OutcomeSuccess || outcome == OutcomeDegraded {
		RankingCandidates.WithLabelValues(operation).Observe(float64(candidates))
	}
	if outcome == OutcomeDegraded {
		DegradedResponses.WithLabelValues(operation).Inc()
	}
}

// RecordUpstreamRetry counts a retried sub-fetch.
func RecordUpstreamRetry(upstream string) {
	UpstreamRetries.WithLabelValues(upstream).Inc()
}

// RecordUpstreamFailure counts a sub-fetch that exhausted its retries.
func RecordUpstreamFailure(upstream string) {
	UpstreamFailures.WithLabelValues(upstream).Inc()
}

// SetBreakerState publishes a breaker state (0=closed, 1=half-open, 2=open).
func SetBreakerState(upstream string, state int) {
	BreakerState.WithLabelValues(upstream).Set(float64(state))
}

// RecordCatalogReload records a snapshot reload attempt.
func RecordCatalogReload(duration time.Duration, err error) {
	CatalogReloadDuration.Observe(duration.Seconds())
	if err != nil {
		CatalogReloads.WithLabelValues(OutcomeError).Inc()
		return
	}
	CatalogReloads.WithLabelValues(OutcomeSuccess).Inc()
}

// UpdateCatalogGauges publishes the shape of the active snapshot.
func UpdateCatalogGauges(version uint64, itemsByCategory map[string]int, edges int) {
	CatalogItems.Reset()
	for category, n := range itemsByCategory {
		CatalogItems.WithLabelValues(category).Set(float64(n))
	}
	CatalogEdges.Set(float64(edges))
	CatalogVersion.Set(float64(version))
}

// RecordLedgerWrite records an idempotent ledger write.
func RecordLedgerWrite(kind string, applied bool, err error) {
	outcome := "applied"
	switch {
	case err != nil:
		outcome = OutcomeError
	case !applied:
		outcome = "duplicate"
	}
	LedgerWrites.WithLabelValues(kind, outcome).Inc()
}

// RecordLedgerRead records a ledger read.
func RecordLedgerRead(operation string, duration time.Duration) {
	LedgerReadDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
