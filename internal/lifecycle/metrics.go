package lifecycle

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// lifecycleMetricsOnce ensures metrics are only initialized once.
var lifecycleMetricsOnce sync.Once

// lifecycleMetricsInstance is the singleton instance of lifecycle metrics.
var lifecycleMetricsInstance *Metrics

// Metrics holds all Prometheus metrics for the file lifecycle.
type Metrics struct {
	// File metrics
	FilesUploaded prometheus.Counter // coldkeep_files_uploaded_total
	FilesArchived prometheus.Counter // coldkeep_files_archived_total
	FilesDeleted  prometheus.Counter // coldkeep_files_deleted_total

	// Reconciliation metrics
	OrphansDeleted prometheus.Counter // coldkeep_orphans_deleted_total
	OrphansAdopted prometheus.Counter // coldkeep_orphans_adopted_total
	OrphanObjects  prometheus.Gauge   // coldkeep_orphan_objects

	// Sweep metrics
	SweepsTotal   *prometheus.CounterVec // coldkeep_sweeps_total{status}
	SweepDuration prometheus.Histogram   // coldkeep_sweep_duration_seconds
}

// InitMetrics initializes all lifecycle metrics.
// Metrics are only registered once; subsequent calls return the same instance.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	lifecycleMetricsOnce.Do(func() {
		if registry == nil {
			registry = prometheus.DefaultRegisterer
		}
		lifecycleMetricsInstance = &Metrics{
			FilesUploaded: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_files_uploaded_total",
				Help: "Total files uploaded",
			}),

			FilesArchived: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_files_archived_total",
				Help: "Total expired hot files archived to cold storage",
			}),

			FilesDeleted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_files_deleted_total",
				Help: "Total files deleted",
			}),

			OrphansDeleted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_orphans_deleted_total",
				Help: "Total orphan objects deleted during reconciliation",
			}),

			OrphansAdopted: promauto.With(registry).NewCounter(prometheus.CounterOpts{
				Name: "coldkeep_orphans_adopted_total",
				Help: "Total orphan objects adopted into the record store",
			}),

			OrphanObjects: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
				Name: "coldkeep_orphan_objects",
				Help: "Orphan objects found by the most recent scan",
			}),

			SweepsTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
				Name: "coldkeep_sweeps_total",
				Help: "Total maintenance sweeps by status",
			}, []string{"status"}),

			SweepDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
				Name:    "coldkeep_sweep_duration_seconds",
				Help:    "Maintenance sweep duration in seconds",
				Buckets: prometheus.DefBuckets,
			}),
		}
	})

	return lifecycleMetricsInstance
}

// GetMetrics returns the singleton lifecycle metrics instance.
// Returns nil if metrics have not been initialized.
func GetMetrics() *Metrics {
	return lifecycleMetricsInstance
}
