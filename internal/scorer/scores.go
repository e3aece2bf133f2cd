package scorer

import (
	"container/heap"
	"slices"
)

// Scores holds one similarity per catalog row.
type Scores []float64

type Ranked struct {
	Index int
	Score float64
}

// before reports whether a ranks ahead of b: higher score first, lower index
// on ties.
func before(a, b Ranked) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Index < b.Index
}

// Best returns the highest score and its row, the lowest row on ties. An
// empty Scores returns (-1, 0).
func (s Scores) Best() (int, float64) {
	best, bestScore := -1, 0.0
	for i, v := range s {
		if best < 0 || v > bestScore {
			best, bestScore = i, v
		}
	}
	return best, bestScore
}

// TopK returns up to k rows ordered by score descending then index
// ascending, skipping row exclude (-1 skips nothing).
func (s Scores) TopK(k, exclude int) []Ranked {
	if k <= 0 || len(s) == 0 {
		return nil
	}
	h := make(minHeap, 0, min(k, len(s)))
	for i, v := range s {
		if i == exclude {
			continue
		}
		r := Ranked{Index: i, Score: v}
		if len(h) < k {
			heap.Push(&h, r)
			continue
		}
		if before(r, h[0]) {
			h[0] = r
			heap.Fix(&h, 0)
		}
	}
	out := []Ranked(h)
	slices.SortFunc(out, func(a, b Ranked) int {
		if before(a, b) {
			return -1
		}
		if before(b, a) {
			return 1
		}
		return 0
	})
	return out
}

// minHeap keeps the worst retained candidate at the root.
type minHeap []Ranked

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return before(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Ranked)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
