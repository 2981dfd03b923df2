// Package vtk writes simulation results in the legacy ASCII VTK format so
// the per-time-window solutions can be opened in ParaView or VisIt.
package vtk

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/davidscn/coupled-laplace/internal/fem"
	"github.com/davidscn/coupled-laplace/internal/linalg"
)

// quadCellType is the VTK cell type id of a 4-node quadrilateral.
const quadCellType = 9

// Write emits mesh and one point-data scalar field to w as a legacy VTK 2.0
// unstructured grid. values must hold one entry per mesh vertex, in vertex
// order.
func Write(w io.Writer, mesh *fem.Mesh, fieldName string, values linalg.Vector) error {
	if len(values) != mesh.NVertices() {
		return errors.Errorf("vtk: %d values for %d vertices", len(values), mesh.NVertices())
	}

	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# vtk DataFile Version 2.0")
	fmt.Fprintln(bw, fieldName)
	fmt.Fprintln(bw, "ASCII")
	fmt.Fprintln(bw, "DATASET UNSTRUCTURED_GRID")

	fmt.Fprintf(bw, "POINTS %d double\n", mesh.NVertices())
	for i := 0; i < mesh.NVertices(); i++ {
		p := mesh.Vertex(i)
		fmt.Fprintf(bw, "%.12g %.12g 0\n", p.X, p.Y)
	}

	n := mesh.NActiveCells()
	fmt.Fprintf(bw, "CELLS %d %d\n", n, n*5)
	for c := 0; c < n; c++ {
		cell := mesh.Cell(c)
		fmt.Fprintf(bw, "4 %d %d %d %d\n", cell[0], cell[1], cell[2], cell[3])
	}

	fmt.Fprintf(bw, "CELL_TYPES %d\n", n)
	for c := 0; c < n; c++ {
		fmt.Fprintln(bw, quadCellType)
	}

	fmt.Fprintf(bw, "POINT_DATA %d\n", mesh.NVertices())
	fmt.Fprintf(bw, "SCALARS %s double 1\n", fieldName)
	fmt.Fprintln(bw, "LOOKUP_TABLE default")
	for i := range values {
		fmt.Fprintf(bw, "%.12g\n", values[i])
	}

	return errors.Wrap(bw.Flush(), "vtk: flush")
}

// WriteFile writes the grid and field to path, creating or truncating it.
func WriteFile(path string, mesh *fem.Mesh, fieldName string, values linalg.Vector) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "vtk: create output file")
	}

	if err := Write(f, mesh, fieldName, values); err != nil {
		f.Close()
		return err
	}

	return errors.Wrap(f.Close(), "vtk: close output file")
}
