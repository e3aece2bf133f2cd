package vector

import (
	"fmt"
)

// Matrix is the catalog's lyric matrix: row i is song i. Row norms are
// computed once at construction.
type Matrix struct {
	dim   int
	rows  []Sparse
	norms []float64
}

func NewMatrix(dim int, rows []Sparse) (*Matrix, error) {
	if dim < 0 {
		return nil, fmt.Errorf("negative dimension %d", dim)
	}
	norms := make([]float64, len(rows))
	for i, r := range rows {
		if err := r.Validate(dim); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		norms[i] = r.Norm()
	}
	return &Matrix{dim: dim, rows: rows, norms: norms}, nil
}

func (m *Matrix) Rows() int { return len(m.rows) }

func (m *Matrix) Dim() int { return m.dim }

func (m *Matrix) Row(i int) Sparse { return m.rows[i] }

func (m *Matrix) Norm(i int) float64 { return m.norms[i] }

// NNZ counts stored weights across all rows.
func (m *Matrix) NNZ() int {
	n := 0
	for _, r := range m.rows {
		n += r.Len()
	}
	return n
}

// CSR flattens the matrix into compressed sparse row arrays.
func (m *Matrix) CSR() (indptr []int64, indices []int32, data []float64) {
	nnz := m.NNZ()
	indptr = make([]int64, len(m.rows)+1)
	indices = make([]int32, 0, nnz)
	data = make([]float64, 0, nnz)
	for i, r := range m.rows {
		indices = append(indices, r.Indices...)
		data = append(data, r.Values...)
		indptr[i+1] = int64(len(indices))
	}
	return indptr, indices, data
}

// FromCSR rebuilds a matrix from compressed sparse row arrays, validating
// the layout and every row.
func FromCSR(dim, rows int, indptr []int64, indices []int32, data []float64) (*Matrix, error) {
	if rows < 0 || len(indptr) != rows+1 {
		return nil, fmt.Errorf("indptr has %d entries for %d rows", len(indptr), rows)
	}
	if len(indices) != len(data) {
		return nil, fmt.Errorf("%d indices but %d values", len(indices), len(data))
	}
	if indptr[0] != 0 || indptr[rows] != int64(len(indices)) {
		return nil, fmt.Errorf("indptr bounds [%d,%d] do not cover %d values", indptr[0], indptr[rows], len(indices))
	}
	out := make([]Sparse, rows)
	for i := range out {
		lo, hi := indptr[i], indptr[i+1]
		if lo > hi || hi > int64(len(indices)) {
			return nil, fmt.Errorf("indptr is not monotonic at row %d", i)
		}
		out[i] = Sparse{Indices: indices[lo:hi:hi], Values: data[lo:hi:hi]}
	}
	return NewMatrix(dim, out)
}
