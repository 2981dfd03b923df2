package linalg

import "sort"

// DynamicSparsityPattern collects matrix entry positions one at a time. It
// is the mutable construction stage; Compress turns it into the immutable
// CSR index arrays a SparseMatrix is allocated over.
type DynamicSparsityPattern struct {
	n    int
	rows []map[int]struct{}
}

// NewDynamicSparsityPattern creates an empty pattern for an n x n matrix.
func NewDynamicSparsityPattern(n int) *DynamicSparsityPattern {
	return &DynamicSparsityPattern{
		n:    n,
		rows: make([]map[int]struct{}, n),
	}
}

// Add records that entry (i, j) may be nonzero. Adding an entry twice is a
// no-op.
func (d *DynamicSparsityPattern) Add(i, j int) {
	if d.rows[i] == nil {
		d.rows[i] = make(map[int]struct{}, 9)
	}
	d.rows[i][j] = struct{}{}
}

// Compress freezes the collected entries into a CSR pattern with sorted
// column indices per row.
func (d *DynamicSparsityPattern) Compress() *SparsityPattern {
	p := &SparsityPattern{
		n:        d.n,
		RowStart: make([]int, d.n+1),
	}

	var nnz int
	for _, r := range d.rows {
		nnz += len(r)
	}
	p.ColIndex = make([]int, 0, nnz)

	for i, r := range d.rows {
		p.RowStart[i] = len(p.ColIndex)
		cols := make([]int, 0, len(r))
		for j := range r {
			cols = append(cols, j)
		}
		sort.Ints(cols)
		p.ColIndex = append(p.ColIndex, cols...)
	}
	p.RowStart[d.n] = len(p.ColIndex)

	return p
}

// SparsityPattern is a compressed sparse row index structure. Row i owns the
// column indices ColIndex[RowStart[i]:RowStart[i+1]], sorted ascending.
type SparsityPattern struct {
	n        int
	RowStart []int
	ColIndex []int
}

// Size returns the number of rows (and columns).
func (p *SparsityPattern) Size() int {
	return p.n
}

// NNonzero returns the number of stored entries.
func (p *SparsityPattern) NNonzero() int {
	return len(p.ColIndex)
}

// index returns the position of entry (i, j) in the value array, or -1 when
// the entry is not part of the pattern.
func (p *SparsityPattern) index(i, j int) int {
	lo, hi := p.RowStart[i], p.RowStart[i+1]
	pos := lo + sort.SearchInts(p.ColIndex[lo:hi], j)
	if pos < hi && p.ColIndex[pos] == j {
		return pos
	}
	return -1
}
