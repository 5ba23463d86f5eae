// Package metrics exposes the Prometheus registry used by the gateway.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination) to maintain modularity and avoid circular
// dependencies.
//
// This package provides the scrape handler and a reference for all
// available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the gateway.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry the scrape handler reads from.
var Gatherer = prometheus.DefaultGatherer

// Handler returns the HTTP handler serving every registered metric.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - skyfi_rate_limit_acquires_total (Counter): Tokens acquired for outbound requests
//   - skyfi_rate_limit_wait_seconds (Histogram): Time spent waiting for a token
//
// Cache Metrics (pkg/cache):
//   - skyfi_cache_hits_total{backend} (Counter): Cache hits by backend (memory, redis)
//   - skyfi_cache_misses_total{backend} (Counter): Cache misses by backend
//   - skyfi_cache_invalidations_total{scope} (Counter): Invalidations by scope (endpoint, all)
//   - skyfi_cache_errors_total{operation} (Counter): Cache operation errors
//
// Request Metrics (pkg/client):
//   - skyfi_requests_total{operation, status} (Counter): Operations by name and outcome
//   - skyfi_request_duration_seconds{operation} (Histogram): Operation duration
//   - skyfi_errors_total{class} (Counter): Errors by class
//
// Retry Metrics (pkg/client):
//   - skyfi_retries_total{error_class} (Counter): Retry attempts by error class
//   - skyfi_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - skyfi_retry_exhausted_total{error_class} (Counter): Requests that exhausted all attempts
//
// Order History Metrics (pkg/pagination):
//   - skyfi_history_sessions_created_total (Counter): Sessions created
//   - skyfi_history_page_fetches_total{action} (Counter): Page fetches by navigation
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(skyfi_cache_hits_total[5m])) /
//   (sum(rate(skyfi_cache_hits_total[5m])) + sum(rate(skyfi_cache_misses_total[5m])))
//
//   # Upstream Error Rate by Class
//   sum by (class) (rate(skyfi_errors_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(skyfi_request_duration_seconds_bucket[5m]))
//
//   # Rate Limiter Pressure
//   histogram_quantile(0.95, rate(skyfi_rate_limit_wait_seconds_bucket[5m]))
