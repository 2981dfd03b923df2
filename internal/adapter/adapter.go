// Package adapter converts between the solver's global vectors and the
// flat per-vertex arrays of the coupling layer. It owns the association
// between the coupling boundary of the mesh and the interface mesh the
// coupling partner sees.
package adapter

import (
	"context"

	"github.com/go-logr/logr"
	"github.com/pkg/errors"

	"github.com/davidscn/coupled-laplace/internal/fem"
	"github.com/davidscn/coupled-laplace/internal/linalg"
)

// ErrNoCouplingDoFs indicates the coupling boundary id matched no boundary
// face, which leaves nothing to couple. This is a grid setup mistake.
var ErrNoCouplingDoFs = errors.New("adapter: no degrees of freedom on the coupling boundary")

// Coupler is the slice of the coupling participant API the adapter drives.
type Coupler interface {
	SetMeshVertices(coords []float64) []int
	Initialize(ctx context.Context) error
	IsCouplingOngoing() bool
	WriteBlockScalarData(ids []int, values []float64) error
	ReadBlockScalarData(ids []int) ([]float64, error)
	Advance(ctx context.Context, dt float64) error
	Time() float64
	Finalize() error
}

// Adapter couples a DoF-indexed solver to a vertex-indexed coupling
// participant. All conversions iterate the coupling DoFs in ascending
// order; that order fixed the vertex registration and must never change
// between initialization and data exchange.
type Adapter struct {
	log     logr.Logger
	coupler Coupler

	// BoundaryID is the boundary id of the coupling interface. It must be
	// set on the coupling faces during grid generation and on no other
	// part of the boundary.
	BoundaryID int

	couplingDoFs []int
	vertexIDs    []int
	writeBuffer  []float64
}

// New creates an adapter around coupler for the faces marked boundaryID.
func New(log logr.Logger, coupler Coupler, boundaryID int) *Adapter {
	return &Adapter{
		log:        log.WithName("adapter"),
		coupler:    coupler,
		BoundaryID: boundaryID,
	}
}

// Initialize extracts the coupling DoFs, registers their support points as
// interface vertices, runs the coupling initialization and seeds
// boundaryData: every coupling DoF gets an entry, filled with the initial
// data the partner provided. readVec receives the same values at the
// coupling DoFs.
func (a *Adapter) Initialize(ctx context.Context, dh *fem.DoFHandler, writeVec, readVec linalg.Vector, boundaryData map[int]float64) error {
	a.couplingDoFs = dh.ExtractBoundaryDoFs(a.BoundaryID)
	if len(a.couplingDoFs) == 0 {
		return ErrNoCouplingDoFs
	}

	for _, dof := range a.couplingDoFs {
		boundaryData[dof] = 0
	}

	a.log.Info("coupling interface extracted", "coupling_nodes", len(a.couplingDoFs))

	// The flat coordinate layout is [x0 y0 x1 y1 ...], one block per
	// coupling DoF in ascending DoF order.
	coords := make([]float64, 0, 2*len(a.couplingDoFs))
	for _, dof := range a.couplingDoFs {
		p := dh.SupportPoint(dof)
		coords = append(coords, p.X, p.Y)
	}
	a.vertexIDs = a.coupler.SetMeshVertices(coords)
	a.writeBuffer = make([]float64, len(a.couplingDoFs))

	if err := a.coupler.WriteBlockScalarData(a.vertexIDs, a.gather(writeVec)); err != nil {
		return err
	}
	if err := a.coupler.Initialize(ctx); err != nil {
		return err
	}

	return a.scatter(readVec, boundaryData)
}

// Advance hands the solver data for the completed time window to the
// coupling, moves the coupled time by dt and scatters the received
// partner data into readVec and boundaryData.
func (a *Adapter) Advance(ctx context.Context, writeVec, readVec linalg.Vector, dt float64, boundaryData map[int]float64) error {
	if err := a.coupler.WriteBlockScalarData(a.vertexIDs, a.gather(writeVec)); err != nil {
		return err
	}
	if err := a.coupler.Advance(ctx, dt); err != nil {
		return err
	}
	return a.scatter(readVec, boundaryData)
}

// IsCouplingOngoing reports whether another time window follows.
func (a *Adapter) IsCouplingOngoing() bool {
	return a.coupler.IsCouplingOngoing()
}

// Time returns the coupled time reached so far. The final time window may
// be shorter than the requested dt, so this can lag behind window count
// times dt.
func (a *Adapter) Time() float64 {
	return a.coupler.Time()
}

// Finalize shuts the coupling down.
func (a *Adapter) Finalize() error {
	return a.coupler.Finalize()
}

// CouplingDoFs returns the global DoF indices on the coupling boundary in
// the exchange order.
func (a *Adapter) CouplingDoFs() []int {
	return a.couplingDoFs
}

// gather pulls the coupling DoF entries out of a global vector into the
// flat array layout.
func (a *Adapter) gather(vec linalg.Vector) []float64 {
	for i, dof := range a.couplingDoFs {
		a.writeBuffer[i] = vec[dof]
	}
	return a.writeBuffer
}

// scatter distributes received interface values to the coupling DoF
// entries of a global vector and the boundary value map. All other
// entries stay untouched.
func (a *Adapter) scatter(vec linalg.Vector, boundaryData map[int]float64) error {
	values, err := a.coupler.ReadBlockScalarData(a.vertexIDs)
	if err != nil {
		return err
	}
	for i, dof := range a.couplingDoFs {
		vec[dof] = values[i]
		boundaryData[dof] = values[i]
	}
	return nil
}
