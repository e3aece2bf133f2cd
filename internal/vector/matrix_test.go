package vector

import (
	"math"
	"slices"
	"testing"
)

func TestMatrixCSRRoundTrip(t *testing.T) {
	rows := []Sparse{
		FromDense([]float64{0.6, 0, 0.8}),
		{},
		FromDense([]float64{0, 1, 0}),
	}
	m, err := NewMatrix(3, rows)
	if err != nil {
		t.Fatal(err)
	}
	if m.NNZ() != 3 {
		t.Errorf("NNZ = %d, want 3", m.NNZ())
	}
	if math.Abs(m.Norm(0)-1) > 1e-12 || m.Norm(1) != 0 {
		t.Errorf("norms = %v, %v", m.Norm(0), m.Norm(1))
	}

	indptr, indices, data := m.CSR()
	if !slices.Equal(indptr, []int64{0, 2, 2, 3}) {
		t.Errorf("indptr = %v", indptr)
	}
	back, err := FromCSR(3, 3, indptr, indices, data)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if !slices.Equal(back.Row(i).Indices, m.Row(i).Indices) || !slices.Equal(back.Row(i).Values, m.Row(i).Values) {
			t.Errorf("row %d differs after round trip", i)
		}
	}
}

func TestFromCSRRejectsBadLayout(t *testing.T) {
	tests := []struct {
		name    string
		dim     int
		rows    int
		indptr  []int64
		indices []int32
		data    []float64
	}{
		{"short indptr", 2, 2, []int64{0, 1}, []int32{0}, []float64{1}},
		{"length mismatch", 2, 1, []int64{0, 1}, []int32{0}, []float64{1, 2}},
		{"decreasing", 2, 2, []int64{0, 1, 0}, []int32{}, []float64{}},
		{"unsorted columns", 3, 1, []int64{0, 2}, []int32{2, 1}, []float64{1, 1}},
		{"column out of range", 2, 1, []int64{0, 1}, []int32{5}, []float64{1}},
		{"nan weight", 2, 1, []int64{0, 1}, []int32{0}, []float64{math.NaN()}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromCSR(tt.dim, tt.rows, tt.indptr, tt.indices, tt.data); err == nil {
				t.Error("FromCSR should fail")
			}
		})
	}
}
