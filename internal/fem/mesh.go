// Package fem implements the fixed finite-element toolbox of the coupled
// Laplace problem: a structured quadrilateral mesh of a square, Q1 bilinear
// elements with Gauss quadrature, degree-of-freedom handling and system
// assembly. It is deliberately not a general mesh or element library; the
// problem geometry is a globally refined square and the element degree is
// one.
package fem

// Point is a position in the 2D computational domain.
type Point struct {
	X, Y float64
}

// SquaredNorm returns x^2 + y^2.
func (p Point) SquaredNorm() float64 {
	return p.X*p.X + p.Y*p.Y
}

// Face is a boundary face (edge) of the mesh. Faces carry a boundary id
// used to select which boundary condition applies; id 0 is the default.
type Face struct {
	vertices   [2]int
	center     Point
	boundaryID int
}

// Vertices returns the two mesh vertex indices of the face.
func (f *Face) Vertices() [2]int {
	return f.vertices
}

// Center returns the face midpoint.
func (f *Face) Center() Point {
	return f.center
}

// BoundaryID returns the boundary id of the face.
func (f *Face) BoundaryID() int {
	return f.boundaryID
}

// SetBoundaryID assigns the boundary id of the face.
func (f *Face) SetBoundaryID(id int) {
	f.boundaryID = id
}

// Mesh is a structured quadrilateral mesh of the square [left, right]^2,
// produced by globally refining a single cell. Cells are axis-aligned
// squares of equal size; vertices and cells are numbered lexicographically,
// x fastest.
type Mesh struct {
	left, right float64
	refinements int
	cellsPerDir int

	vertices      []Point
	cells         [][4]int
	boundaryFaces []*Face
}

// NewHyperCube creates a mesh of the square [left, right]^2 consisting of a
// single cell.
func NewHyperCube(left, right float64) *Mesh {
	m := &Mesh{left: left, right: right, cellsPerDir: 1}
	m.rebuild()
	return m
}

// RefineGlobal refines every cell into four n times.
func (m *Mesh) RefineGlobal(n int) {
	m.refinements += n
	m.cellsPerDir = 1 << m.refinements
	m.rebuild()
}

// NActiveCells returns the number of cells of the finest level.
func (m *Mesh) NActiveCells() int {
	return m.cellsPerDir * m.cellsPerDir
}

// NCells returns the number of cells over all refinement levels, counting
// the coarser cells each refinement step replaced.
func (m *Mesh) NCells() int {
	total := 0
	for l := 0; l <= m.refinements; l++ {
		total += 1 << (2 * l)
	}
	return total
}

// NVertices returns the number of mesh vertices.
func (m *Mesh) NVertices() int {
	return len(m.vertices)
}

// Vertex returns the coordinates of vertex i.
func (m *Mesh) Vertex(i int) Point {
	return m.vertices[i]
}

// Cell returns the four vertex indices of cell c in counterclockwise order.
func (m *Mesh) Cell(c int) [4]int {
	return m.cells[c]
}

// CellSize returns the edge length of the (uniform) cells.
func (m *Mesh) CellSize() float64 {
	return (m.right - m.left) / float64(m.cellsPerDir)
}

// BoundaryFaces returns all faces on the boundary of the domain. The
// returned faces are shared with the mesh, so boundary ids set on them
// stick.
func (m *Mesh) BoundaryFaces() []*Face {
	return m.boundaryFaces
}

func (m *Mesh) rebuild() {
	nd := m.cellsPerDir
	h := (m.right - m.left) / float64(nd)

	m.vertices = make([]Point, (nd+1)*(nd+1))
	for iy := 0; iy <= nd; iy++ {
		for ix := 0; ix <= nd; ix++ {
			m.vertices[iy*(nd+1)+ix] = Point{
				X: m.left + float64(ix)*h,
				Y: m.left + float64(iy)*h,
			}
		}
	}

	m.cells = make([][4]int, 0, nd*nd)
	for iy := 0; iy < nd; iy++ {
		for ix := 0; ix < nd; ix++ {
			v := func(dx, dy int) int { return (iy+dy)*(nd+1) + ix + dx }
			m.cells = append(m.cells, [4]int{v(0, 0), v(1, 0), v(1, 1), v(0, 1)})
		}
	}

	m.boundaryFaces = m.boundaryFaces[:0]
	addFace := func(a, b int) {
		pa, pb := m.vertices[a], m.vertices[b]
		m.boundaryFaces = append(m.boundaryFaces, &Face{
			vertices: [2]int{a, b},
			center:   Point{X: (pa.X + pb.X) / 2, Y: (pa.Y + pb.Y) / 2},
		})
	}
	for i := 0; i < nd; i++ {
		addFace(i, i+1)                             // bottom
		addFace(nd*(nd+1)+i, nd*(nd+1)+i+1)         // top
		addFace(i*(nd+1), (i+1)*(nd+1))             // left
		addFace(i*(nd+1)+nd, (i+1)*(nd+1)+nd)       // right
	}
}
