package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for SuiteTalk client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitetalk_requests_total",
		Help: "Total SuiteTalk request attempts by operation and status",
	}, []string{"operation", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "suitetalk_request_duration_seconds",
		Help:    "SuiteTalk request attempt duration in seconds by operation",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
	}, []string{"operation"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitetalk_errors_total",
		Help: "Total SuiteTalk errors by kind",
	}, []string{"kind"})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "suitetalk_retries_total",
		Help: "Total number of retry attempts by error kind",
	}, []string{"kind"})

	retryDelaySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "suitetalk_retry_delay_seconds",
		Help:    "Delay before each retry attempt",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
	})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "suitetalk_retry_exhausted_total",
		Help: "Total number of operations that exhausted their retry attempts",
	})
)
