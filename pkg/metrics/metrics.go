package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultError   = "error"
)

var (
	StoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelstore_operations_total",
			Help: "Total number of model store operations",
		},
		[]string{"operation", "result"}, // save, read, collect, save_meta, get_meta
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "modelstore_operation_duration_seconds",
			Help:    "Duration of model store operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	BuffersWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelstore_buffers_written_total",
			Help: "Total number of model buffers written",
		},
	)

	BuffersDecoded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modelstore_buffers_decoded_total",
			Help: "Total number of model buffers decoded, by decode strategy",
		},
		[]string{"strategy"}, // direct, marker_fallback
	)

	EmptyPayloadsWrapped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modelstore_empty_payloads_wrapped_total",
			Help: "Total number of all-default buffers stored as the empty-fill marker",
		},
	)
)

// ObserveOperation records the outcome and latency of one store operation.
func ObserveOperation(operation string, start time.Time, err error) {
	result := ResultSuccess
	if err != nil {
		result = ResultError
	}
	StoreOperations.WithLabelValues(operation, result).Inc()
	StoreOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
