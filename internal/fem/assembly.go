package fem

import (
	"sort"

	"github.com/davidscn/coupled-laplace/internal/linalg"
)

// AssembleLaplace assembles the stiffness matrix and right hand side of
// -laplace(u) = f into matrix and rhs: cell by cell, the local 4x4 matrix
// of grad-grad products and the local load vector are integrated with quad
// and stamped into the global system through the cell DoF indices.
func AssembleLaplace(dh *DoFHandler, quad *Quadrature, f func(Point) float64, matrix *linalg.SparseMatrix, rhs linalg.Vector) {
	fv := NewFEValues(dh.Mesh(), FEQ1{}, quad)
	n := fv.DoFsPerCell()

	cellMatrix := make([][]float64, n)
	for i := range cellMatrix {
		cellMatrix[i] = make([]float64, n)
	}
	cellRHS := make([]float64, n)

	for c := 0; c < dh.Mesh().NActiveCells(); c++ {
		fv.Reinit(c)
		for i := 0; i < n; i++ {
			cellRHS[i] = 0
			for j := 0; j < n; j++ {
				cellMatrix[i][j] = 0
			}
		}

		for q := 0; q < fv.NQuadPoints(); q++ {
			fq := f(fv.QuadraturePoint(q))
			for i := 0; i < n; i++ {
				gi := fv.ShapeGrad(i, q)
				for j := 0; j < n; j++ {
					gj := fv.ShapeGrad(j, q)
					cellMatrix[i][j] += (gi[0]*gj[0] + gi[1]*gj[1]) * fv.JxW(q)
				}
				cellRHS[i] += fv.ShapeValue(i, q) * fq * fv.JxW(q)
			}
		}

		dofs := dh.CellDoFs(c)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				matrix.Add(dofs[i], dofs[j], cellMatrix[i][j])
			}
			rhs[dofs[i]] += cellRHS[i]
		}
	}
}

// InterpolateBoundaryValues evaluates g at the support points of all DoFs
// on faces with the given boundary id and returns the DoF-to-value map.
func InterpolateBoundaryValues(dh *DoFHandler, boundaryID int, g func(Point) float64) map[int]float64 {
	values := make(map[int]float64)
	for _, dof := range dh.ExtractBoundaryDoFs(boundaryID) {
		values[dof] = g(dh.SupportPoint(dof))
	}
	return values
}

// ApplyBoundaryValues eliminates the Dirichlet constraints in values from
// the system. Rows and columns of constrained DoFs are zeroed with the
// right hand side compensated through the column entries, so the matrix
// stays symmetric positive definite for the CG solve. The constrained
// solution entries are set directly.
func ApplyBoundaryValues(values map[int]float64, matrix *linalg.SparseMatrix, solution, rhs linalg.Vector) {
	if len(values) == 0 {
		return
	}

	dofs := make([]int, 0, len(values))
	for d := range values {
		dofs = append(dofs, d)
	}
	sort.Ints(dofs)

	// Replacement diagonal entry for rows whose diagonal was eliminated to
	// zero; keeps the scaling of constrained rows comparable to the rest of
	// the matrix.
	var meanDiag float64
	for i := 0; i < matrix.Size(); i++ {
		v := matrix.At(i, i)
		if v < 0 {
			v = -v
		}
		meanDiag += v
	}
	meanDiag /= float64(matrix.Size())
	if meanDiag == 0 {
		meanDiag = 1
	}

	for _, i := range dofs {
		g := values[i]

		diag := matrix.At(i, i)
		if diag == 0 {
			diag = meanDiag
		}

		// The sparsity pattern is structurally symmetric, so the column
		// entries of DoF i sit exactly in the rows named by row i.
		cols := make([]int, 0, 8)
		matrix.ForRow(i, func(j int, _ float64) {
			if j != i {
				cols = append(cols, j)
			}
		})
		for _, j := range cols {
			matrix.Set(i, j, 0)
			if _, constrained := values[j]; !constrained {
				rhs[j] -= matrix.At(j, i) * g
			}
			matrix.Set(j, i, 0)
		}

		matrix.Set(i, i, diag)
		rhs[i] = diag * g
		solution[i] = g
	}
}
