// Package vector holds the sparse term-weight vectors shared by the
// vectorizer, the catalog matrix and the scorer.
package vector

import (
	"fmt"
	"math"
)

// Sparse is a vector over a fixed vocabulary. Indices are strictly
// ascending column numbers and Values holds the matching weights.
type Sparse struct {
	Indices []int32
	Values  []float64
}

// Len returns the number of non-zero entries.
func (s Sparse) Len() int { return len(s.Indices) }

// IsZero reports whether the vector has no non-zero weight.
func (s Sparse) IsZero() bool {
	for _, v := range s.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Norm returns the L2 norm.
func (s Sparse) Norm() float64 {
	var sum float64
	for _, v := range s.Values {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// Dot merges the two index lists in ascending order, so the summation order
// and therefore the result is fixed for a given pair.
func Dot(a, b Sparse) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.Indices) && j < len(b.Indices) {
		switch {
		case a.Indices[i] == b.Indices[j]:
			sum += a.Values[i] * b.Values[j]
			i++
			j++
		case a.Indices[i] < b.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Validate checks the structural invariants against a vocabulary size.
func (s Sparse) Validate(dim int) error {
	if len(s.Indices) != len(s.Values) {
		return fmt.Errorf("%d indices but %d values", len(s.Indices), len(s.Values))
	}
	prev := int32(-1)
	for k, idx := range s.Indices {
		if idx <= prev {
			return fmt.Errorf("column %d at position %d is not ascending", idx, k)
		}
		if int(idx) >= dim {
			return fmt.Errorf("column %d out of range for dimension %d", idx, dim)
		}
		v := s.Values[k]
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("invalid weight %v at column %d", v, idx)
		}
		prev = idx
	}
	return nil
}

// FromDense builds a Sparse from a dense slice, dropping zeros.
func FromDense(dense []float64) Sparse {
	var s Sparse
	for i, v := range dense {
		if v != 0 {
			s.Indices = append(s.Indices, int32(i))
			s.Values = append(s.Values, v)
		}
	}
	return s
}
