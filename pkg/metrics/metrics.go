// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// CacheOpsTotal tracks cache lookups by cache name and outcome.
	CacheOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_ops_total",
			Help: "Cache operations by cache and outcome",
		},
		[]string{"cache", "outcome"},
	)

	// KVDegradedTotal tracks key-value store operations absorbed as misses.
	KVDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kv_degraded_total",
			Help: "Key-value store failures absorbed by fail-soft handling",
		},
		[]string{"op"},
	)

	// RateLimitDecisionsTotal tracks rate limit outcomes per endpoint.
	RateLimitDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Rate limit decisions by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	// RateLimitDegradedTotal tracks fail-open decisions taken while the
	// counter store was unreachable.
	RateLimitDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_degraded_total",
			Help: "Rate limit checks that failed open",
		},
	)

	// SearchRequestDuration tracks search index operation duration.
	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "search_request_duration_seconds",
			Help:    "Search index operation duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"op"},
	)

	// SearchOpsTotal tracks search index operations by outcome.
	SearchOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_ops_total",
			Help: "Search index operations by outcome",
		},
		[]string{"op", "outcome"},
	)

	// SearchDegradedTotal tracks search failures surfaced as empty results.
	SearchDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "search_degraded_total",
			Help: "Search index failures absorbed by fail-closed handling",
		},
		[]string{"op"},
	)

	// LLMRequestDuration tracks LLM completion duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SyncEventsTotal tracks index sync events by type and outcome.
	SyncEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "index_sync_events_total",
			Help: "Index sync events processed by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	// NATSStreamMessages tracks messages in NATS stream.
	NATSStreamMessages = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_messages",
			Help: "Number of messages in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSStreamBytes tracks bytes in NATS stream.
	NATSStreamBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_stream_bytes",
			Help: "Bytes in NATS stream",
		},
		[]string{"stream"},
	)

	// NATSConsumerPending tracks pending messages for consumers.
	NATSConsumerPending = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nats_consumer_pending",
			Help: "Pending messages for NATS consumer",
		},
		[]string{"stream", "consumer"},
	)

	// ConversationsTotal tracks total conversations created.
	ConversationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_total",
			Help: "Total conversations created",
		},
		[]string{"use_case_id"},
	)

	// MessagesTotal tracks total messages stored.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_total",
			Help: "Total messages stored",
		},
		[]string{"use_case_id", "role"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for an LLM completion.
func RecordLLMRequest(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordCacheHit records a cache lookup that found a fresh entry.
func RecordCacheHit(cache string) {
	CacheOpsTotal.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a cache lookup that found nothing.
func RecordCacheMiss(cache string) {
	CacheOpsTotal.WithLabelValues(cache, "miss").Inc()
}

// RecordSearchOp records a search index operation and its duration.
func RecordSearchOp(op, outcome string, duration float64) {
	SearchRequestDuration.WithLabelValues(op).Observe(duration)
	SearchOpsTotal.WithLabelValues(op, outcome).Inc()
}
