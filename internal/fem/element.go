package fem

// Q1 node positions on the reference cell [-1, 1]^2, in the same
// counterclockwise order as Mesh cell vertices.
var q1Nodes = [4]Point{
	{X: -1, Y: -1},
	{X: 1, Y: -1},
	{X: 1, Y: 1},
	{X: -1, Y: 1},
}

// FEQ1 is the bilinear quadrilateral element. Shape function i is one at
// reference node i and zero at the others.
type FEQ1 struct{}

// DoFsPerCell returns the number of local degrees of freedom.
func (FEQ1) DoFsPerCell() int {
	return 4
}

// Degree returns the polynomial degree per direction.
func (FEQ1) Degree() int {
	return 1
}

// Value evaluates shape function i at reference point p.
func (FEQ1) Value(i int, p Point) float64 {
	n := q1Nodes[i]
	return 0.25 * (1 + n.X*p.X) * (1 + n.Y*p.Y)
}

// Grad evaluates the reference-space gradient of shape function i at p.
func (FEQ1) Grad(i int, p Point) [2]float64 {
	n := q1Nodes[i]
	return [2]float64{
		0.25 * n.X * (1 + n.Y*p.Y),
		0.25 * n.Y * (1 + n.X*p.X),
	}
}

// FEValues evaluates shape functions, physical gradients, quadrature points
// and integration weights on a concrete mesh cell. Reference-space data is
// tabulated once; Reinit switches the cell. The mapping is the affine one
// of axis-aligned square cells, so the Jacobian is diagonal and constant.
type FEValues struct {
	mesh *Mesh
	fe   FEQ1
	quad *Quadrature

	shapeValues [][]float64    // [q][i]
	refGrads    [][][2]float64 // [q][i]

	cell       int
	quadPoints []Point
	jxw        []float64
}

// NewFEValues tabulates fe on quad for cells of mesh.
func NewFEValues(mesh *Mesh, fe FEQ1, quad *Quadrature) *FEValues {
	fv := &FEValues{
		mesh:       mesh,
		fe:         fe,
		quad:       quad,
		cell:       -1,
		quadPoints: make([]Point, quad.Size()),
		jxw:        make([]float64, quad.Size()),
	}

	fv.shapeValues = make([][]float64, quad.Size())
	fv.refGrads = make([][][2]float64, quad.Size())
	for q := 0; q < quad.Size(); q++ {
		fv.shapeValues[q] = make([]float64, fe.DoFsPerCell())
		fv.refGrads[q] = make([][2]float64, fe.DoFsPerCell())
		for i := 0; i < fe.DoFsPerCell(); i++ {
			fv.shapeValues[q][i] = fe.Value(i, quad.Point(q))
			fv.refGrads[q][i] = fe.Grad(i, quad.Point(q))
		}
	}

	return fv
}

// Reinit prepares the values for mesh cell c.
func (fv *FEValues) Reinit(c int) {
	fv.cell = c
	h := fv.mesh.CellSize()
	origin := fv.mesh.Vertex(fv.mesh.Cell(c)[0])

	// x = x0 + (xi + 1) h/2, so dx = (h/2)^2 dxi and grad_x = (2/h) grad_xi.
	detJ := (h / 2) * (h / 2)
	for q := 0; q < fv.quad.Size(); q++ {
		ref := fv.quad.Point(q)
		fv.quadPoints[q] = Point{
			X: origin.X + (ref.X+1)*h/2,
			Y: origin.Y + (ref.Y+1)*h/2,
		}
		fv.jxw[q] = fv.quad.Weight(q) * detJ
	}
}

// NQuadPoints returns the number of quadrature points per cell.
func (fv *FEValues) NQuadPoints() int {
	return fv.quad.Size()
}

// DoFsPerCell returns the number of local degrees of freedom.
func (fv *FEValues) DoFsPerCell() int {
	return fv.fe.DoFsPerCell()
}

// ShapeValue returns shape function i at quadrature point q.
func (fv *FEValues) ShapeValue(i, q int) float64 {
	return fv.shapeValues[q][i]
}

// ShapeGrad returns the physical-space gradient of shape function i at
// quadrature point q of the current cell.
func (fv *FEValues) ShapeGrad(i, q int) [2]float64 {
	scale := 2 / fv.mesh.CellSize()
	g := fv.refGrads[q][i]
	return [2]float64{scale * g[0], scale * g[1]}
}

// QuadraturePoint returns the physical coordinates of quadrature point q on
// the current cell.
func (fv *FEValues) QuadraturePoint(q int) Point {
	return fv.quadPoints[q]
}

// JxW returns the integration weight (quadrature weight times Jacobian
// determinant) of quadrature point q.
func (fv *FEValues) JxW(q int) float64 {
	return fv.jxw[q]
}
