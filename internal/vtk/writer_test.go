package vtk_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidscn/coupled-laplace/internal/fem"
	"github.com/davidscn/coupled-laplace/internal/linalg"
	"github.com/davidscn/coupled-laplace/internal/vtk"
)

func TestWrite(t *testing.T) {
	m := fem.NewHyperCube(0, 1)
	m.RefineGlobal(1)

	values := linalg.NewVector(m.NVertices())
	for i := range values {
		values[i] = float64(i)
	}

	var buf bytes.Buffer
	require.NoError(t, vtk.Write(&buf, m, "solution", values))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "# vtk DataFile Version 2.0\n"))
	assert.Contains(t, out, "DATASET UNSTRUCTURED_GRID")
	assert.Contains(t, out, "POINTS 9 double")
	assert.Contains(t, out, "CELLS 4 20")
	assert.Contains(t, out, "CELL_TYPES 4")
	assert.Contains(t, out, "POINT_DATA 9")
	assert.Contains(t, out, "SCALARS solution double 1")

	// First cell references the lower-left quad in counterclockwise order.
	assert.Contains(t, out, "4 0 1 4 3")
}

func TestWriteSizeMismatch(t *testing.T) {
	m := fem.NewHyperCube(0, 1)
	err := vtk.Write(&bytes.Buffer{}, m, "solution", linalg.NewVector(3))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 values for 4 vertices")
}

func TestWriteFile(t *testing.T) {
	m := fem.NewHyperCube(0, 1)
	path := filepath.Join(t.TempDir(), "solution-0.vtk")

	require.NoError(t, vtk.WriteFile(path, m, "solution", linalg.NewVector(4)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "POINTS 4 double")
}
