// Package metrics defines the prometheus collectors of the coupled solver.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Solver bundles the collectors the Laplace driver updates each time
// window.
type Solver struct {
	CGIterations     prometheus.Gauge
	AssemblyDuration prometheus.Histogram
	SolveDuration    prometheus.Histogram
	TimeWindowsTotal prometheus.Counter
	CoupledTime      prometheus.Gauge
}

// NewSolver creates the solver collectors and registers them with
// registrar.
func NewSolver(registrar prometheus.Registerer) *Solver {
	factory := promauto.With(registrar)

	return &Solver{
		CGIterations: factory.NewGauge(prometheus.GaugeOpts{
			Name: "laplace_cg_iterations",
			Help: "CG iterations needed for the last linear solve",
		}),
		AssemblyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "laplace_assembly_duration_seconds",
			Help:    "Histogram of system assembly durations",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		SolveDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "laplace_solve_duration_seconds",
			Help:    "Histogram of linear solve durations",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		TimeWindowsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "laplace_time_windows_total",
			Help: "Count of completed coupling time windows",
		}),
		CoupledTime: factory.NewGauge(prometheus.GaugeOpts{
			Name: "laplace_coupled_time",
			Help: "Coupled simulation time reached so far",
		}),
	}
}
