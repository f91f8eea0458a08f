// Package metrics provides Prometheus metrics for the Confluence MCP server.
// It tracks tool calls, upstream Confluence API calls, cache performance and the
// HTTP transport.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics
const (
	Namespace = "confluence_mcp"
)

var (
	// RequestsTotal counts total MCP tool calls by tool name and status
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "requests_total",
		Help:      "Total number of MCP tool calls",
	}, []string{"tool", "status"})

	// RequestDuration measures request latency distribution
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "request_duration_seconds",
		Help:      "Request latency distribution by tool",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"tool"})

	// RequestInFlight tracks currently executing requests
	RequestInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "requests_in_flight",
		Help:      "Number of requests currently being processed",
	}, []string{"tool"})

	// ToolErrors counts failed tool calls by domain error kind
	ToolErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "tool_errors_total",
		Help:      "Failed tool calls by tool and domain error kind",
	}, []string{"tool", "kind"})

	// CacheHits counts cache hits
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_hits_total",
		Help:      "Total cache hit count",
	})

	// CacheMisses counts cache misses
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_misses_total",
		Help:      "Total cache miss count",
	})

	// CacheEvictions counts cache evictions
	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "cache_evictions_total",
		Help:      "Total cache eviction count",
	})

	// UpstreamAPILatency measures Confluence API call latency by surface and action
	UpstreamAPILatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "upstream_api_latency_seconds",
		Help:      "Confluence API call latency by API surface and action",
		Buckets:   prometheus.DefBuckets,
	}, []string{"surface", "action"})

	// UpstreamAPIRequestsTotal counts Confluence API requests
	UpstreamAPIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_api_requests_total",
		Help:      "Total Confluence API requests by surface, action and HTTP status class",
	}, []string{"surface", "action", "status"})

	// UpstreamAPIErrors counts classified adapter errors
	UpstreamAPIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_api_errors_total",
		Help:      "Confluence API errors by surface, action and error kind",
	}, []string{"surface", "action", "kind"})

	// UpstreamAPIRetries counts API request retries
	UpstreamAPIRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "upstream_api_retries_total",
		Help:      "Confluence API retry count by surface and action",
	}, []string{"surface", "action"})

	// CoalescedRequests counts GETs answered by an identical in-flight request
	CoalescedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "coalesced_requests_total",
		Help:      "Upstream GET requests that shared an in-flight identical request",
	})

	// CircuitBreakerState reports the breaker state (0 closed, 1 open, 2 half-open)
	CircuitBreakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "circuit_breaker_state",
		Help:      "Upstream circuit breaker state: 0 closed, 1 open, 2 half-open",
	})

	// RateLimitRejections counts requests rejected due to rate limiting
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_rejections_total",
		Help:      "HTTP transport requests rejected due to rate limiting",
	})

	// RateLimitWaits counts requests that had to wait for the upstream semaphore
	RateLimitWaits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "rate_limit_waits_total",
		Help:      "Upstream requests that waited for a concurrency slot",
	})

	// AuthFailures counts authentication failures
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "auth_failures_total",
		Help:      "Authentication failure count by reason",
	}, []string{"reason"})

	// PanicsRecovered counts recovered panics
	PanicsRecovered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "panics_recovered_total",
		Help:      "Number of panics recovered in tool handlers",
	}, []string{"tool"})

	// HTTPRequestsTotal counts HTTP transport requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method and status",
	}, []string{"method", "status"})

	// HTTPRequestDuration measures HTTP request latency
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency distribution",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path"})

	// EditOperations counts write operations by type
	EditOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "edit_operations_total",
		Help:      "Write operations by type and status",
	}, []string{"operation", "status"})

	// VersionConflicts counts page updates rejected for a stale version
	VersionConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "version_conflicts_total",
		Help:      "Page updates rejected by optimistic concurrency, by detection point",
	}, []string{"detected_by"})

	// ContentSize tracks content sizes processed
	ContentSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "content_size_bytes",
		Help:      "Content size distribution in bytes",
		Buckets:   []float64{100, 1000, 10000, 50000, 100000, 250000, 500000, 1000000},
	}, []string{"operation"})
)

// RecordRequest records a completed tool call with its duration and status
func RecordRequest(tool string, duration float64, success bool) {
	RequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	RequestDuration.WithLabelValues(tool).Observe(duration)
}

// RecordAPICall records one Confluence API round trip. statusCode 0 means the
// request never produced a response.
func RecordAPICall(surface, action string, duration float64, statusCode int) {
	UpstreamAPIRequestsTotal.WithLabelValues(surface, action, statusClass(statusCode)).Inc()
	UpstreamAPILatency.WithLabelValues(surface, action).Observe(duration)
}

// RecordAPIError records a classified adapter error
func RecordAPIError(surface, action, kind string) {
	UpstreamAPIErrors.WithLabelValues(surface, action, kind).Inc()
}

// RecordEdit records a write operation outcome
func RecordEdit(operation string, success bool) {
	EditOperations.WithLabelValues(operation, statusLabel(success)).Inc()
}

// RecordCacheAccess records a cache hit or miss
func RecordCacheAccess(hit bool) {
	if hit {
		CacheHits.Inc()
	} else {
		CacheMisses.Inc()
	}
}

// RecordCacheEvictions adds n evictions
func RecordCacheEvictions(n int) {
	CacheEvictions.Add(float64(n))
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func statusClass(code int) string {
	switch {
	case code == 0:
		return "network_error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
