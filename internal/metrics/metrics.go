// Clipsight - Creator Video Analytics and Feed-Loop Optimization
// Copyright 2026 Clipsight Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/clipsight/clipsight

// Package metrics exposes the Prometheus instrumentation surface:
// API latency and throughput, DuckDB query performance, queue depth,
// worker progress, credit spend, cache efficiency, and circuit breakers.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database metrics
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

	// API endpoint metrics
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
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Queue metrics (NATS JetStream)
	QueuePublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publishes_total",
			Help: "Total number of messages published to job queues",
		},
		[]string{"topic"},
	)

	QueuePublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_publish_errors_total",
			Help: "Total number of failed queue publishes",
		},
		[]string{"topic"},
	)

	QueueMessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_messages_processed_total",
			Help: "Total number of queue messages handled by workers",
		},
		[]string{"topic", "result"}, // "ok", "error"
	)

	// Worker metrics
	MediaDownloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_downloads_total",
			Help: "Total number of media download jobs by terminal state",
		},
		[]string{"state"}, // "completed", "failed"
	)

	MediaDownloadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_download_duration_seconds",
			Help:    "Duration of media download jobs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	TranscriptJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcript_jobs_total",
			Help: "Total number of transcript jobs by terminal state and source",
		},
		[]string{"state", "source"}, // source: "whisper", "caption", "title"
	)

	AuditRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_runs_total",
			Help: "Total number of audit runs by terminal state",
		},
		[]string{"state"},
	)

	AuditDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_duration_seconds",
			Help:    "Duration of completed audit runs in seconds",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)

	// Credit metrics
	CreditsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Total credits debited by operation",
		},
		[]string{"operation"},
	)

	CreditsRefunded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_refunded_total",
			Help: "Total credits refunded by operation",
		},
		[]string{"operation"},
	)

	CreditDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credit_denials_total",
			Help: "Total operations rejected for insufficient credits",
		},
		[]string{"operation"},
	)

	// Feed loop metrics
	FeedIngestRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_ingest_runs_total",
			Help: "Total auto-ingest runs by result",
		},
		[]string{"result"}, // "ok", "error", "skipped_overlap"
	)

	FeedItemsIngested = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feed_items_ingested_total",
			Help: "Total research items written by auto-ingest",
		},
	)

	// Outcome metrics
	CalibrationRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calibration_refreshes_total",
			Help: "Total calibration snapshot rebuilds by result",
		},
		[]string{"result"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"}, // "blueprint"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// External client metrics
	ExternalAPICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "external_api_call_duration_seconds",
			Help:    "Duration of upstream provider calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"}, // "youtube", "openai"
	)

	ExternalAPIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "external_api_errors_total",
			Help: "Total upstream provider call failures",
		},
		[]string{"provider"},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

// RecordDBQuery records one query's duration and error state.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records one handled HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordExternalCall records one provider round trip.
func RecordExternalCall(provider string, duration time.Duration, err error) {
	ExternalAPICallDuration.WithLabelValues(provider).Observe(duration.Seconds())
	if err != nil {
		ExternalAPIErrors.WithLabelValues(provider).Inc()
	}
}
