package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// Simulation pipeline metrics
	SimulationRunsStarted   prometheus.Counter
	SimulationRunsJoined    prometheus.Counter
	SimulationRunsCompleted prometheus.Counter
	SimulationRunsFailed    prometheus.Counter
	SimulationDuration      prometheus.Histogram
}

// New creates the application metrics. Collectors are unregistered so tests
// can build throwaway instances; call Register once in main.
func New(namespace string) *Metrics {
	return &Metrics{
		SimulationRunsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_started_total",
			Help:      "Total number of simulation workers spawned",
		}),
		SimulationRunsJoined: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_joined_total",
			Help:      "Total number of start requests that joined an in-flight run",
		}),
		SimulationRunsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_completed_total",
			Help:      "Total number of simulation runs that completed successfully",
		}),
		SimulationRunsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "simulation_runs_failed_total",
			Help:      "Total number of simulation runs that failed or timed out",
		}),
		SimulationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "simulation_run_duration_seconds",
			Help:      "Wall-clock duration of external engine invocations",
			Buckets:   []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}),
	}
}

// Register registers all collectors with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(
		m.SimulationRunsStarted,
		m.SimulationRunsJoined,
		m.SimulationRunsCompleted,
		m.SimulationRunsFailed,
		m.SimulationDuration,
	)
}
