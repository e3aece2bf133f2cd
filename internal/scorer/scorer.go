// Package scorer computes cosine similarity between a query vector and every
// row of the catalog matrix.
package scorer

import (
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vector"
)

// DefaultParallelThreshold is the row count above which Scan splits work
// across goroutines.
const DefaultParallelThreshold = 4096

// Cosine returns dot(a,b)/(|a||b|), 0 when either norm is 0, clamped to
// [0,1].
func Cosine(a, b vector.Sparse) float64 {
	return cosine(vector.Dot(a, b), a.Norm(), b.Norm())
}

func cosine(dot, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	s := dot / (na * nb)
	switch {
	case s < 0:
		return 0
	case s > 1:
		return 1
	}
	return s
}

type Options struct {
	ParallelThreshold int
	// Workers caps scan goroutines; 0 uses GOMAXPROCS.
	Workers int
}

type Scanner struct {
	matrix *vector.Matrix
	opts   Options
}

func NewScanner(m *vector.Matrix, opts Options) *Scanner {
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Scanner{matrix: m, opts: opts}
}

// Scan scores query against every row, in row order. Each score comes from
// the same sequential dot product whether or not the scan is split, so
// results do not depend on the worker count.
func (s *Scanner) Scan(query vector.Sparse) Scores {
	rows := s.matrix.Rows()
	scores := make(Scores, rows)
	qn := query.Norm()
	if qn == 0 {
		return scores
	}

	if rows <= s.opts.ParallelThreshold || s.opts.Workers == 1 {
		s.scoreRange(query, qn, scores, 0, rows)
		return scores
	}

	chunk := (rows + s.opts.Workers - 1) / s.opts.Workers
	var g errgroup.Group
	for lo := 0; lo < rows; lo += chunk {
		hi := min(lo+chunk, rows)
		g.Go(func() error {
			s.scoreRange(query, qn, scores, lo, hi)
			return nil
		})
	}
	_ = g.Wait()
	return scores
}

func (s *Scanner) scoreRange(query vector.Sparse, qn float64, out Scores, lo, hi int) {
	for i := lo; i < hi; i++ {
		out[i] = cosine(vector.Dot(query, s.matrix.Row(i)), qn, s.matrix.Norm(i))
	}
}

// ScanRow scores stored row i against every row.
func (s *Scanner) ScanRow(i int) Scores {
	return s.Scan(s.matrix.Row(i))
}
