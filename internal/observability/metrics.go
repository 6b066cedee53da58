package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects engine counters. No exposition endpoint is started here;
// callers decide whether and how to publish the registry.
type Metrics struct {
	registry *prometheus.Registry

	NodesChecked   prometheus.Counter
	SnapshotHits   prometheus.Counter
	SnapshotMisses prometheus.Counter
	RowsSuppressed prometheus.Counter
	SearchDuration prometheus.Gauge
}

// NewMetrics creates and registers the engine metrics. A nil registry
// allocates a private one.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: registry,
		NodesChecked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anonymizer",
			Name:      "nodes_checked_total",
			Help:      "Number of lattice nodes evaluated by the checker",
		}),
		SnapshotHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anonymizer",
			Name:      "snapshot_hits_total",
			Help:      "Node checks groupified from a cached snapshot",
		}),
		SnapshotMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anonymizer",
			Name:      "snapshot_misses_total",
			Help:      "Node checks groupified from the base data",
		}),
		RowsSuppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "anonymizer",
			Name:      "rows_suppressed_total",
			Help:      "Rows marked as outliers across all node checks",
		}),
		SearchDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "anonymizer",
			Name:      "search_duration_seconds",
			Help:      "Wall-clock duration of the last lattice search",
		}),
	}
	registry.MustRegister(m.NodesChecked, m.SnapshotHits, m.SnapshotMisses, m.RowsSuppressed, m.SearchDuration)
	return m
}

// Registry returns the backing registry
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
