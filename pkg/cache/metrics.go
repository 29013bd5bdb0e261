package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suitetalk_cache_hits_total",
			Help: "Total number of SuiteTalk response cache hits",
		},
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suitetalk_cache_misses_total",
			Help: "Total number of SuiteTalk response cache misses",
		},
	)

	// CacheStoredBytes tracks bytes written to the cache
	CacheStoredBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suitetalk_cache_stored_bytes_total",
			Help: "Total number of bytes written to the SuiteTalk response cache",
		},
	)

	// CacheInvalidations tracks keys removed after writes
	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "suitetalk_cache_invalidations_total",
			Help: "Total number of cache keys removed after a write to the same record path",
		},
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suitetalk_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete", "invalidate"
	)
)
