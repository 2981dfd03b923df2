// Package linalg provides the sparse linear algebra needed by the Laplace
// solver: a CSR sparse matrix over a fixed sparsity pattern and a plain
// conjugate gradient solver.
package linalg

import "math"

// Vector is a dense vector of float64 entries.
type Vector []float64

// NewVector returns a zero-initialized vector of size n.
func NewVector(n int) Vector {
	return make(Vector, n)
}

// Reinit resizes v to n entries and zeroes it, reusing the backing array
// when possible.
func (v *Vector) Reinit(n int) {
	if cap(*v) < n {
		*v = make(Vector, n)
		return
	}
	*v = (*v)[:n]
	for i := range *v {
		(*v)[i] = 0
	}
}

// Clone returns an independent copy of v.
func (v Vector) Clone() Vector {
	out := make(Vector, len(v))
	copy(out, v)
	return out
}

// Dot returns the inner product of v and w.
func (v Vector) Dot(w Vector) float64 {
	var sum float64
	for i := range v {
		sum += v[i] * w[i]
	}
	return sum
}

// Norm returns the l2 norm of v.
func (v Vector) Norm() float64 {
	return math.Sqrt(v.Dot(v))
}

// AddScaled performs v += alpha * w.
func (v Vector) AddScaled(alpha float64, w Vector) {
	for i := range v {
		v[i] += alpha * w[i]
	}
}

// ScaleAdd performs v = alpha*v + w.
func (v Vector) ScaleAdd(alpha float64, w Vector) {
	for i := range v {
		v[i] = alpha*v[i] + w[i]
	}
}
