package fem

import (
	"fmt"
	"math"
)

// Quadrature is a numerical integration rule on the reference cell
// [-1, 1]^2. Weights sum to the reference cell area (4).
type Quadrature struct {
	points  []Point
	weights []float64
}

// gauss1D holds the 1D Gauss-Legendre nodes and weights on [-1, 1] for the
// orders the Q1 assembly can ask for (fe degree + 1 and a test rule above
// it).
var gauss1D = map[int]struct {
	nodes   []float64
	weights []float64
}{
	1: {
		nodes:   []float64{0},
		weights: []float64{2},
	},
	2: {
		nodes:   []float64{-1 / math.Sqrt(3), 1 / math.Sqrt(3)},
		weights: []float64{1, 1},
	},
	3: {
		nodes:   []float64{-math.Sqrt(3.0 / 5.0), 0, math.Sqrt(3.0 / 5.0)},
		weights: []float64{5.0 / 9.0, 8.0 / 9.0, 5.0 / 9.0},
	},
}

// NewQGauss builds the tensor product of the n-point Gauss-Legendre rule,
// exact for polynomials of degree 2n-1 per direction. Supported n are the
// ones a bilinear element needs; asking for more is a programming error.
func NewQGauss(n int) *Quadrature {
	rule, ok := gauss1D[n]
	if !ok {
		panic(fmt.Sprintf("fem: no %d-point Gauss rule tabulated", n))
	}

	q := &Quadrature{
		points:  make([]Point, 0, n*n),
		weights: make([]float64, 0, n*n),
	}
	for iy := 0; iy < n; iy++ {
		for ix := 0; ix < n; ix++ {
			q.points = append(q.points, Point{X: rule.nodes[ix], Y: rule.nodes[iy]})
			q.weights = append(q.weights, rule.weights[ix]*rule.weights[iy])
		}
	}
	return q
}

// Size returns the number of quadrature points.
func (q *Quadrature) Size() int {
	return len(q.points)
}

// Point returns quadrature point i in reference coordinates.
func (q *Quadrature) Point(i int) Point {
	return q.points[i]
}

// Weight returns the weight of quadrature point i.
func (q *Quadrature) Weight(i int) float64 {
	return q.weights[i]
}
