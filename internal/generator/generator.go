// Package generator implements the boundary condition participant. It
// receives the solver's interface mesh, evaluates a time dependent
// boundary function at the received coordinates and publishes the values
// once per time window.
package generator

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/davidscn/coupled-laplace/internal/fem"
)

// Coupling is the slice of the participant API the generator drives.
type Coupling interface {
	Initialize(ctx context.Context) error
	IsCouplingOngoing() bool
	ReceivedMeshCoordinates() []float64
	VertexIDs() []int
	WriteBlockScalarData(ids []int, values []float64) error
	Advance(ctx context.Context, dt float64) error
	Time() float64
}

// BoundaryValue is the boundary condition published to the solver,
// evaluated at the start of each time window. At t = 0 it coincides with
// the solver's clamped boundary condition, so the initial field is
// continuous across the interface.
func BoundaryValue(p fem.Point, t float64) float64 {
	return p.SquaredNorm() + t
}

// Generator drives the boundary condition participant through the
// coupling.
type Generator struct {
	log      logr.Logger
	coupling Coupling
	dt       float64
}

// New creates a generator publishing through coupling, one batch of
// values per time window of size dt.
func New(log logr.Logger, coupling Coupling, dt float64) *Generator {
	return &Generator{
		log:      log.WithName("generator"),
		coupling: coupling,
		dt:       dt,
	}
}

// Run initializes the coupling and publishes boundary values until no
// time windows remain.
func (g *Generator) Run(ctx context.Context) error {
	if err := g.coupling.Initialize(ctx); err != nil {
		return errors.Wrap(err, "initialize coupling")
	}

	coords := g.coupling.ReceivedMeshCoordinates()
	ids := g.coupling.VertexIDs()
	values := make([]float64, len(ids))

	window := 0
	for g.coupling.IsCouplingOngoing() {
		window++
		t := g.coupling.Time()

		for i := range ids {
			p := fem.Point{X: coords[2*i], Y: coords[2*i+1]}
			values[i] = BoundaryValue(p, t)
		}
		if err := g.coupling.WriteBlockScalarData(ids, values); err != nil {
			return errors.Wrapf(err, "time window %d", window)
		}

		if err := g.coupling.Advance(ctx, g.dt); err != nil {
			return errors.Wrapf(err, "advance coupling after window %d", window)
		}

		g.log.Info("boundary data published", "time_window", window, "time", t)
	}

	g.log.Info("coupling finished", "time_windows", window)
	return nil
}
