package objstore

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// gatewayMetricsOnce ensures metrics are only initialized once.
var gatewayMetricsOnce sync.Once

// gatewayMetricsInstance is the singleton instance of gateway metrics.
var gatewayMetricsInstance *GatewayMetrics

// GatewayMetrics holds all Prometheus metrics for tiered object storage.
type GatewayMetrics struct {
	// Operation metrics
	OperationsTotal   *prometheus.CounterVec   // coldkeep_objstore_operations_total{operation,tier,status}
	OperationDuration *prometheus.HistogramVec // coldkeep_objstore_operation_duration_seconds{operation,tier}

	// Transfer metrics
	BytesUploaded   prometheus.Counter // coldkeep_objstore_bytes_uploaded_total
	BytesDownloaded prometheus.Counter // coldkeep_objstore_bytes_downloaded_total
}

// InitGatewayMetrics initializes all object storage metrics.
// Metrics are only registered once; subsequent calls return the same instance.
func InitGatewayMetrics(registry prometheus.Registerer) *GatewayMetrics {
	gatewayMetricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		gatewayMetricsInstance = &GatewayMetrics{
			OperationsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "coldkeep_objstore_operations_total",
				Help: "Total object storage operations by operation, tier and status",
			}, []string{"operation", "tier", "status"}),

			OperationDuration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
				Name:    "coldkeep_objstore_operation_duration_seconds",
				Help:    "Object storage operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			}, []string{"operation", "tier"}),

			BytesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_objstore_bytes_uploaded_total",
				Help: "Total bytes written to object storage",
			}),

			BytesDownloaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_objstore_bytes_downloaded_total",
				Help: "Total bytes read from object storage",
			}),
		}
	})

	return gatewayMetricsInstance
}

// GetGatewayMetrics returns the singleton gateway metrics instance.
// Returns nil if metrics have not been initialized.
func GetGatewayMetrics() *GatewayMetrics {
	return gatewayMetricsInstance
}

// RecordOperation records an operation metric.
func (m *GatewayMetrics) RecordOperation(operation, tier, status string, durationSeconds float64) {
	m.OperationsTotal.WithLabelValues(operation, tier, status).Inc()
	m.OperationDuration.WithLabelValues(operation, tier).Observe(durationSeconds)
}

// RecordUpload records bytes written to a backend.
func (m *GatewayMetrics) RecordUpload(bytes int64) {
	m.BytesUploaded.Add(float64(bytes))
}

// RecordDownload records bytes read from a backend.
func (m *GatewayMetrics) RecordDownload(bytes int64) {
	m.BytesDownloaded.Add(float64(bytes))
}
