// Package recommender returns the songs whose lyrics are most similar to an
// anchor song from the catalog.
package recommender

import (
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
)

const DefaultCount = 5

type Options struct {
	DefaultCount int
	MaxCount     int
}

type Recommendation struct {
	Index int           `json:"index"`
	Entry catalog.Entry `json:"song"`
	Score float64       `json:"score"`
}

type Recommender struct {
	idx     *index.Index
	scanner *scorer.Scanner
	opts    Options
	logger  *slog.Logger
}

// New shares the scanner with the matcher so both use the same scan
// settings.
func New(idx *index.Index, scanner *scorer.Scanner, opts Options) *Recommender {
	if opts.DefaultCount <= 0 {
		opts.DefaultCount = DefaultCount
	}
	return &Recommender{
		idx:     idx,
		scanner: scanner,
		opts:    opts,
		logger:  logger.WithComponent("recommender"),
	}
}

// DefaultCount is the count callers use when none was requested.
func (r *Recommender) DefaultCount() int { return r.opts.DefaultCount }

// Recommend anchors on the first song titled exactly title. An unknown title
// yields an empty result.
func (r *Recommender) Recommend(title string, n int) []Recommendation {
	i, ok := r.idx.Catalog.IndexOfTitle(title)
	if !ok {
		r.logger.Debug("recommendation anchor not in catalog", "title", title)
		return nil
	}
	return r.RecommendIndex(i, n)
}

// RecommendIndex returns up to n songs most similar to song i, never
// including i itself. n <= 0 yields nothing and MaxCount caps n.
func (r *Recommender) RecommendIndex(i, n int) []Recommendation {
	if n <= 0 || i < 0 || i >= r.idx.Catalog.Len() {
		return nil
	}
	if r.opts.MaxCount > 0 && n > r.opts.MaxCount {
		n = r.opts.MaxCount
	}
	ranked := r.scanner.ScanRow(i).TopK(n, i)
	out := make([]Recommendation, len(ranked))
	for k, rk := range ranked {
		out[k] = Recommendation{Index: rk.Index, Entry: r.idx.Catalog.Entry(rk.Index), Score: rk.Score}
	}
	return out
}
