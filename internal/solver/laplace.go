// Package solver contains the coupled Laplace problem driver: grid setup,
// system assembly, the CG solve and the per-time-window coupling loop.
package solver

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/davidscn/coupled-laplace/internal/adapter"
	"github.com/davidscn/coupled-laplace/internal/fem"
	"github.com/davidscn/coupled-laplace/internal/linalg"
	"github.com/davidscn/coupled-laplace/internal/metrics"
	"github.com/davidscn/coupled-laplace/internal/vtk"
)

// InterfaceBoundaryID marks the part of the boundary coupled to the
// partner participant. It must not be assigned to any other part of the
// boundary.
const InterfaceBoundaryID = 1

// clampedBoundaryID is the default id of the remaining, clamped boundary.
const clampedBoundaryID = 0

// Options are the solver knobs; the zero-value-adjacent defaults of the
// fixed problem are refinements 4, 1000 CG iterations at 1e-12.
type Options struct {
	// Refinements is the number of global mesh refinements of the unit
	// cell.
	Refinements int
	// MaxIterations bounds the CG solve per time window.
	MaxIterations int
	// Tolerance is the absolute CG residual tolerance.
	Tolerance float64
	// OutputDir receives one VTK file per time window.
	OutputDir string
}

// Problem is the coupled Laplace problem on [-1, 1]^2. The call sequence
// is fixed: make grid, set up, then per time window assemble, solve,
// output and advance the coupling.
type Problem struct {
	log     logr.Logger
	opts    Options
	adapter *adapter.Adapter
	dt      float64
	stats   *metrics.Solver

	mesh     *fem.Mesh
	dofs     *fem.DoFHandler
	matrix   *linalg.SparseMatrix
	solution linalg.Vector
	rhs      linalg.Vector
	// dummy receives the partner's data in vector form; the values enter
	// the system through boundaryData.
	dummy        linalg.Vector
	boundaryData map[int]float64

	window int
}

// New creates the problem around an initialized coupling adapter. dt is
// the coupling time window size; stats receives the per-window
// observations.
func New(log logr.Logger, opts Options, adpt *adapter.Adapter, dt float64, stats *metrics.Solver) *Problem {
	return &Problem{
		log:          log.WithName("laplace"),
		opts:         opts,
		adapter:      adpt,
		dt:           dt,
		stats:        stats,
		boundaryData: make(map[int]float64),
	}
}

// rightHandSide is the source term f(x, y) = 4 (x^4 + y^4).
func rightHandSide(p fem.Point) float64 {
	return 4 * (math.Pow(p.X, 4) + math.Pow(p.Y, 4))
}

// clampedBoundaryValue is the Dirichlet condition on the non-coupled
// boundary.
func clampedBoundaryValue(p fem.Point) float64 {
	return p.SquaredNorm()
}

// Run executes the coupled simulation until the coupling reports
// completion.
func (p *Problem) Run(ctx context.Context) error {
	p.log.Info("Solving problem in 2 space dimensions")

	p.makeGrid()
	p.setupSystem()

	if p.opts.OutputDir != "" {
		if err := os.MkdirAll(p.opts.OutputDir, 0o755); err != nil {
			return errors.Wrap(err, "create output directory")
		}
	}

	if err := p.adapter.Initialize(ctx, p.dofs, p.solution, p.dummy, p.boundaryData); err != nil {
		return errors.Wrap(err, "initialize coupling")
	}

	for p.adapter.IsCouplingOngoing() {
		p.window++

		p.assembleSystem()
		if err := p.solve(); err != nil {
			return errors.Wrapf(err, "time window %d", p.window)
		}
		if err := p.outputResults(); err != nil {
			return errors.Wrapf(err, "time window %d", p.window)
		}

		if err := p.adapter.Advance(ctx, p.solution, p.dummy, p.dt, p.boundaryData); err != nil {
			return errors.Wrapf(err, "advance coupling after window %d", p.window)
		}

		p.stats.TimeWindowsTotal.Inc()
		p.stats.CoupledTime.Set(p.adapter.Time())
	}

	p.log.Info("coupling finished", "time_windows", p.window)
	return nil
}

// makeGrid builds the refined unit square and marks the boundary in
// positive x direction as the coupling interface.
func (p *Problem) makeGrid() {
	p.mesh = fem.NewHyperCube(-1, 1)
	p.mesh.RefineGlobal(p.opts.Refinements)

	for _, face := range p.mesh.BoundaryFaces() {
		if face.Center().X == 1 {
			face.SetBoundaryID(InterfaceBoundaryID)
		}
	}

	p.log.Info("grid generated",
		"active_cells", p.mesh.NActiveCells(),
		"total_cells", p.mesh.NCells())
}

// setupSystem distributes DoFs and allocates the linear system.
func (p *Problem) setupSystem() {
	p.dofs = fem.NewDoFHandler(p.mesh, fem.FEQ1{})

	dsp := linalg.NewDynamicSparsityPattern(p.dofs.NDoFs())
	p.dofs.MakeSparsityPattern(dsp)
	p.matrix = linalg.NewSparseMatrix(dsp.Compress())

	p.solution = linalg.NewVector(p.dofs.NDoFs())
	p.rhs = linalg.NewVector(p.dofs.NDoFs())
	p.dummy = linalg.NewVector(p.dofs.NDoFs())

	p.log.Info("system set up", "dofs", p.dofs.NDoFs())
}

// assembleSystem rebuilds matrix and right hand side and applies both
// boundary conditions: the analytic clamped one and the coupling data of
// the current time window. Reassembly per window is required because the
// Dirichlet elimination consumes the assembled matrix.
func (p *Problem) assembleSystem() {
	start := time.Now()

	p.matrix.Zero()
	p.rhs.Reinit(p.dofs.NDoFs())

	fem.AssembleLaplace(p.dofs, fem.NewQGauss(fem.FEQ1{}.Degree()+1), rightHandSide, p.matrix, p.rhs)

	clamped := fem.InterpolateBoundaryValues(p.dofs, clampedBoundaryID, clampedBoundaryValue)
	fem.ApplyBoundaryValues(clamped, p.matrix, p.solution, p.rhs)
	fem.ApplyBoundaryValues(p.boundaryData, p.matrix, p.solution, p.rhs)

	p.stats.AssemblyDuration.Observe(time.Since(start).Seconds())
}

// solve runs CG on the assembled system, with the previous window's
// solution as initial guess.
func (p *Problem) solve() error {
	start := time.Now()

	control := linalg.NewSolverControl(p.opts.MaxIterations, p.opts.Tolerance)
	if err := linalg.SolveCG(control, p.matrix, p.solution, p.rhs); err != nil {
		return err
	}

	p.stats.SolveDuration.Observe(time.Since(start).Seconds())
	p.stats.CGIterations.Set(float64(control.LastStep()))

	p.log.Info("linear system solved",
		"cg_iterations", control.LastStep(),
		"residual", control.LastValue())
	return nil
}

// outputResults writes the current solution as a VTK file named after the
// time window.
func (p *Problem) outputResults() error {
	if p.opts.OutputDir == "" {
		return nil
	}
	path := filepath.Join(p.opts.OutputDir, fmt.Sprintf("solution-%d.vtk", p.window))
	return vtk.WriteFile(path, p.mesh, "solution", p.solution)
}

// Mesh exposes the computational mesh once Run has built it.
func (p *Problem) Mesh() *fem.Mesh {
	return p.mesh
}

// Solution exposes the current solution vector.
func (p *Problem) Solution() linalg.Vector {
	return p.solution
}

// DoFHandler exposes the DoF handler once Run has built it.
func (p *Problem) DoFHandler() *fem.DoFHandler {
	return p.dofs
}
