// Package metrics provides the centralized Prometheus registry for the
// catalogue client. All metrics are defined in their respective packages
// (client, cache, ratelimit) to maintain modularity and avoid circular
// dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the catalogue client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Rate Limit Metrics (pkg/ratelimit):
//   - catalog_rate_limit_wait_seconds (Histogram): Time spent waiting for admission
//   - catalog_inflight_requests (Gauge): Requests currently holding a concurrency slot
//
// Cache Metrics (pkg/cache):
//   - catalog_cache_hits_total{backend} (Counter): Cache hits by backend
//   - catalog_cache_misses_total{backend} (Counter): Cache misses by backend
//   - catalog_cache_errors_total{backend, operation} (Counter): Cache operation errors
//   - catalog_cache_evictions_total{backend} (Counter): Expired entries removed
//
// Request Metrics (pkg/client):
//   - catalog_requests_total{endpoint, status} (Counter): Requests by endpoint and outcome
//     (HTTP status, "cache_hit", "not_admitted" or "network_error")
//   - catalog_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - catalog_errors_total{kind} (Counter): Errors by kind (validation, rate_limit, server, ...)
//
// Retry Metrics (pkg/client):
//   - catalog_retries_total{kind} (Counter): Retry attempts by error kind
//   - catalog_retry_backoff_seconds{kind} (Histogram): Backoff duration by error kind
//   - catalog_retry_exhausted_total{kind} (Counter): Requests that exhausted max retries
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(catalog_cache_hits_total[5m])) /
//   (sum(rate(catalog_cache_hits_total[5m])) + sum(rate(catalog_cache_misses_total[5m])))
//
//   # Admission Wait P95
//   histogram_quantile(0.95, rate(catalog_rate_limit_wait_seconds_bucket[5m]))
//
//   # Request Error Rate
//   rate(catalog_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(catalog_request_duration_seconds_bucket[5m]))
//
//   # Retry Pressure
//   rate(catalog_retries_total[5m]) / rate(catalog_requests_total[5m])
