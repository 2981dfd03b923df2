package linalg

import (
	"errors"
	"fmt"
)

// ErrNoConvergence indicates the iterative solver exhausted its iteration
// budget before reaching the requested tolerance.
var ErrNoConvergence = errors.New("linalg: solver did not converge")

// SolverControl bounds an iterative solve and records how it went.
type SolverControl struct {
	MaxSteps  int
	Tolerance float64

	lastStep  int
	lastValue float64
}

// NewSolverControl returns a control that stops after maxSteps iterations
// or once the residual norm drops to tol.
func NewSolverControl(maxSteps int, tol float64) *SolverControl {
	return &SolverControl{MaxSteps: maxSteps, Tolerance: tol}
}

// LastStep returns the iteration count of the most recent solve.
func (c *SolverControl) LastStep() int {
	return c.lastStep
}

// LastValue returns the residual norm of the most recent solve.
func (c *SolverControl) LastValue() float64 {
	return c.lastValue
}

// check records the current state and reports whether iteration should stop.
func (c *SolverControl) check(step int, residual float64) bool {
	c.lastStep = step
	c.lastValue = residual
	return residual <= c.Tolerance
}

// SolveCG solves A x = b with the conjugate gradient method and no
// preconditioning. A must be symmetric positive definite. x carries the
// initial guess on entry and the solution on successful return.
func SolveCG(control *SolverControl, a *SparseMatrix, x, b Vector) error {
	n := a.Size()
	if len(x) != n || len(b) != n {
		return fmt.Errorf("linalg: size mismatch, matrix is %d but x is %d and b is %d", n, len(x), len(b))
	}

	r := NewVector(n)
	p := NewVector(n)
	q := NewVector(n)

	// r = b - A x
	a.VMult(r, x)
	for i := range r {
		r[i] = b[i] - r[i]
	}
	copy(p, r)

	rho := r.Dot(r)
	if control.check(0, r.Norm()) {
		return nil
	}

	for step := 1; step <= control.MaxSteps; step++ {
		a.VMult(q, p)
		alpha := rho / p.Dot(q)
		x.AddScaled(alpha, p)
		r.AddScaled(-alpha, q)

		rhoNext := r.Dot(r)
		if control.check(step, r.Norm()) {
			return nil
		}

		p.ScaleAdd(rhoNext/rho, r)
		rho = rhoNext
	}

	return fmt.Errorf("%w after %d iterations, residual %g", ErrNoConvergence, control.lastStep, control.lastValue)
}
