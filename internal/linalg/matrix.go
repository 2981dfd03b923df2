package linalg

import "fmt"

// SparseMatrix stores values in CSR form over a fixed SparsityPattern.
// Writing to an entry outside the pattern is a programming error and
// panics; the pattern must be built to cover every coupling before
// assembly starts.
type SparseMatrix struct {
	pattern *SparsityPattern
	values  []float64
}

// NewSparseMatrix allocates a zero matrix over pattern.
func NewSparseMatrix(pattern *SparsityPattern) *SparseMatrix {
	return &SparseMatrix{
		pattern: pattern,
		values:  make([]float64, pattern.NNonzero()),
	}
}

// Size returns the number of rows (and columns).
func (m *SparseMatrix) Size() int {
	return m.pattern.Size()
}

// Pattern returns the underlying sparsity pattern.
func (m *SparseMatrix) Pattern() *SparsityPattern {
	return m.pattern
}

// Zero resets all stored values, keeping the pattern.
func (m *SparseMatrix) Zero() {
	for i := range m.values {
		m.values[i] = 0
	}
}

// Add accumulates v into entry (i, j).
func (m *SparseMatrix) Add(i, j int, v float64) {
	pos := m.pattern.index(i, j)
	if pos < 0 {
		panic(fmt.Sprintf("linalg: entry (%d, %d) is not in the sparsity pattern", i, j))
	}
	m.values[pos] += v
}

// Set overwrites entry (i, j).
func (m *SparseMatrix) Set(i, j int, v float64) {
	pos := m.pattern.index(i, j)
	if pos < 0 {
		panic(fmt.Sprintf("linalg: entry (%d, %d) is not in the sparsity pattern", i, j))
	}
	m.values[pos] = v
}

// At returns entry (i, j); entries outside the pattern are zero.
func (m *SparseMatrix) At(i, j int) float64 {
	pos := m.pattern.index(i, j)
	if pos < 0 {
		return 0
	}
	return m.values[pos]
}

// VMult computes dst = M * src.
func (m *SparseMatrix) VMult(dst, src Vector) {
	for i := 0; i < m.pattern.n; i++ {
		var sum float64
		for pos := m.pattern.RowStart[i]; pos < m.pattern.RowStart[i+1]; pos++ {
			sum += m.values[pos] * src[m.pattern.ColIndex[pos]]
		}
		dst[i] = sum
	}
}

// ForRow calls fn for every stored entry of row i.
func (m *SparseMatrix) ForRow(i int, fn func(j int, v float64)) {
	for pos := m.pattern.RowStart[i]; pos < m.pattern.RowStart[i+1]; pos++ {
		fn(m.pattern.ColIndex[pos], m.values[pos])
	}
}
