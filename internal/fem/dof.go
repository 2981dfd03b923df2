package fem

import (
	"sort"

	"github.com/davidscn/coupled-laplace/internal/linalg"
)

// DoFHandler enumerates the degrees of freedom of a Q1 discretization on a
// mesh. For bilinear elements there is exactly one DoF per mesh vertex, so
// the global numbering is the vertex numbering; keeping the type separate
// preserves the distinction between topology and unknowns.
type DoFHandler struct {
	mesh *Mesh
}

// NewDoFHandler distributes the degrees of freedom of fe on mesh.
func NewDoFHandler(mesh *Mesh, _ FEQ1) *DoFHandler {
	return &DoFHandler{mesh: mesh}
}

// NDoFs returns the number of global degrees of freedom.
func (h *DoFHandler) NDoFs() int {
	return h.mesh.NVertices()
}

// Mesh returns the underlying mesh.
func (h *DoFHandler) Mesh() *Mesh {
	return h.mesh
}

// CellDoFs returns the global DoF indices of cell c in local order.
func (h *DoFHandler) CellDoFs(c int) [4]int {
	return h.mesh.Cell(c)
}

// SupportPoint returns the location of DoF i.
func (h *DoFHandler) SupportPoint(i int) Point {
	return h.mesh.Vertex(i)
}

// ExtractBoundaryDoFs returns the DoFs lying on boundary faces whose id is
// in ids, sorted ascending. The ascending order is the contract consumers
// rely on when pairing DoFs with externally exchanged flat arrays.
func (h *DoFHandler) ExtractBoundaryDoFs(ids ...int) []int {
	wanted := make(map[int]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	seen := make(map[int]struct{})
	for _, face := range h.mesh.BoundaryFaces() {
		if _, ok := wanted[face.BoundaryID()]; !ok {
			continue
		}
		for _, v := range face.Vertices() {
			seen[v] = struct{}{}
		}
	}

	dofs := make([]int, 0, len(seen))
	for d := range seen {
		dofs = append(dofs, d)
	}
	sort.Ints(dofs)
	return dofs
}

// MakeSparsityPattern records every DoF coupling produced by cell
// integrals into dsp.
func (h *DoFHandler) MakeSparsityPattern(dsp *linalg.DynamicSparsityPattern) {
	for c := 0; c < h.mesh.NActiveCells(); c++ {
		dofs := h.CellDoFs(c)
		for _, i := range dofs {
			for _, j := range dofs {
				dsp.Add(i, j)
			}
		}
	}
}
