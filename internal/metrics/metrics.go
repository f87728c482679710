// Package metrics provides the Prometheus registry shared by all coldkeep
// components.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/coldkeep/coldkeep/internal/lifecycle"
	"github.com/coldkeep/coldkeep/internal/objstore"
)

// Registry is the Prometheus registry for all coldkeep metrics.
var Registry = prometheus.NewRegistry()

var initOnce sync.Once

func init() {
	// Register standard Go metrics
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// Init wires every component's metrics into the shared registry and
// records build information. Called once at process start; later calls
// are no-ops.
func Init(version string) {
	initOnce.Do(func() {
		objstore.InitGatewayMetrics(Registry)
		lifecycle.InitMetrics(Registry)

		buildInfo := promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "coldkeep_build_info",
			Help: "Build information (value is always 1)",
		}, []string{"version"})
		buildInfo.WithLabelValues(version).Set(1)
	})
}
