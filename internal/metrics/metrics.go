// Package metrics exposes Prometheus instrumentation for backup and restore
// workflows. HTTP-level metrics live in the api middleware.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backhaul_operations_total",
			Help: "Total number of backup and restore operations by outcome",
		},
		[]string{"kind", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "backhaul_operation_duration_seconds",
			Help:    "Backup and restore operation duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800},
		},
		[]string{"kind"},
	)
)

// ObserveOperation records one finished workflow invocation.
func ObserveOperation(kind, result string, elapsed time.Duration) {
	operationsTotal.WithLabelValues(kind, result).Inc()
	operationDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
