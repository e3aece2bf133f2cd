// Package matcher identifies the catalog song whose lyrics are most similar
// to a free-text query.
package matcher

import (
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/scorer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
)

const DefaultThreshold = 0.1

type Options struct {
	Threshold float64
	// ReportSubThresholdScore keeps the best similarity on a miss; when
	// false a miss always reports 0.
	ReportSubThresholdScore bool
	ParallelThreshold       int
	Workers                 int
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, ReportSubThresholdScore: true}
}

type Result struct {
	Found bool          `json:"found"`
	Index int           `json:"index"`
	Entry catalog.Entry `json:"song"`
	Score float64       `json:"score"`
}

// Trace records per-stage timings of one FindSong call.
type Trace struct {
	Normalized string
	Terms      int
	Vectorize  time.Duration
	Scan       time.Duration
}

type Matcher struct {
	idx     *index.Index
	scanner *scorer.Scanner
	opts    Options
	logger  *slog.Logger
}

func New(idx *index.Index, opts Options) *Matcher {
	return &Matcher{
		idx: idx,
		scanner: scorer.NewScanner(idx.Matrix, scorer.Options{
			ParallelThreshold: opts.ParallelThreshold,
			Workers:           opts.Workers,
		}),
		opts:   opts,
		logger: logger.WithComponent("matcher"),
	}
}

func (m *Matcher) Threshold() float64 { return m.opts.Threshold }

func (m *Matcher) Scanner() *scorer.Scanner { return m.scanner }

// FindSong returns the best matching song for raw. A score equal to the
// threshold counts as a match; a score of 0 never does, whatever the
// threshold.
func (m *Matcher) FindSong(raw string) Result {
	res, _ := m.FindSongTraced(raw)
	return res
}

// FindSongTraced is FindSong plus stage timings.
func (m *Matcher) FindSongTraced(raw string) (Result, Trace) {
	var tr Trace
	if raw == "" {
		return Result{Index: -1}, tr
	}

	start := time.Now()
	tr.Normalized = normalizer.Normalize(raw)
	query := m.idx.Vectorizer.Transform(tr.Normalized)
	tr.Terms = query.Len()
	tr.Vectorize = time.Since(start)

	start = time.Now()
	i, s := m.scanner.Scan(query).Best()
	tr.Scan = time.Since(start)

	if i < 0 || s == 0 || s < m.opts.Threshold {
		m.logger.Debug("no match above threshold", "score", s, "threshold", m.opts.Threshold, "terms", tr.Terms)
		if !m.opts.ReportSubThresholdScore {
			s = 0
		}
		return Result{Index: -1, Score: s}, tr
	}
	return Result{Found: true, Index: i, Entry: m.idx.Catalog.Entry(i), Score: s}, tr
}
