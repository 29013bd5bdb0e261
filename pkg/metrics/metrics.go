// Package metrics exposes the Prometheus metrics of the SuiteTalk client.
// Collectors are defined with promauto next to the code they observe
// (client, ratelimit, pagination, cache); this package documents them and
// serves the registry over HTTP.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registerer every collector of the module is added to.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - suitetalk_requests_total{operation, status} (Counter): Attempts by operation and HTTP status, or cancelled/timeout/network_error/cache_hit
//   - suitetalk_request_duration_seconds{operation} (Histogram): Attempt duration
//   - suitetalk_errors_total{kind} (Counter): Terminal and retried failures by error kind
//
// Retry Metrics (pkg/client):
//   - suitetalk_retries_total{kind} (Counter): Retries by error kind
//   - suitetalk_retry_delay_seconds (Histogram): Delay before each retry
//   - suitetalk_retry_exhausted_total (Counter): Calls that used up their retries
//
// Admission Metrics (pkg/ratelimit):
//   - suitetalk_admission_waits_total (Counter): Calls that had to queue for a ticket
//   - suitetalk_admission_wait_seconds (Histogram): Time spent queued
//   - suitetalk_admission_rejections_total{reason} (Counter): Calls rejected or abandoned before admission
//
// Search Metrics (pkg/pagination):
//   - suitetalk_search_pages_total (Counter): Search pages fetched
//   - suitetalk_search_page_shrinks_total (Counter): Page size reductions after a timeout
//   - suitetalk_search_failures_total{reason} (Counter): Searches that ended in an error
//
// Cache Metrics (pkg/cache):
//   - suitetalk_cache_hits_total (Counter): Cache hits
//   - suitetalk_cache_misses_total (Counter): Cache misses
//   - suitetalk_cache_stored_bytes_total (Counter): Bytes written to the cache
//   - suitetalk_cache_invalidations_total (Counter): Keys removed after writes
//   - suitetalk_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Share of calls that had to wait for admission
//   rate(suitetalk_admission_waits_total[5m]) / sum(rate(suitetalk_requests_total[5m]))
//
//   # Retry rate by kind
//   sum by (kind) (rate(suitetalk_retries_total[5m]))
//
//   # P95 attempt latency of searches
//   histogram_quantile(0.95, rate(suitetalk_request_duration_seconds_bucket{operation="searchMoreWithId"}[5m]))
//
//   # Page shrinks per search page
//   rate(suitetalk_search_page_shrinks_total[1h]) / rate(suitetalk_search_pages_total[1h])
