// Package vectorizer turns normalized lyric text into TF-IDF vectors using a
// vocabulary and IDF weights fitted offline. Query-time code only calls
// Transform; Fit is for the offline index build.
package vectorizer

import (
	"fmt"
	"math"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vector"
)

const (
	DefaultMinTokenLength = 2
	NormL2                = "l2"
	NormNone              = "none"
)

// Options are the analyzer and weighting settings. They are stored with the
// fitted model so query-time analysis always equals build-time analysis.
type Options struct {
	SublinearTF    bool     `json:"sublinear_tf"`
	Norm           string   `json:"norm"`
	MinTokenLength int      `json:"min_token_length"`
	StopWords      []string `json:"stop_words,omitempty"`
	Stem           bool     `json:"stem"`
	MinDF          int      `json:"min_df,omitempty"`
	MaxFeatures    int      `json:"max_features,omitempty"`
}

// Model is the serialisable form of a fitted vectorizer.
type Model struct {
	Vocabulary map[string]int32 `json:"vocabulary"`
	IDF        []float64        `json:"idf"`
	Options    Options          `json:"options"`
}

// Vectorizer is immutable after construction and safe for concurrent use.
type Vectorizer struct {
	vocab    map[string]int32
	idf      []float64
	opts     Options
	analyzer analyzer
}

// New validates a model and wraps it.
func New(m Model) (*Vectorizer, error) {
	if len(m.IDF) != len(m.Vocabulary) {
		return nil, fmt.Errorf("vocabulary has %d terms but %d idf weights", len(m.Vocabulary), len(m.IDF))
	}
	seen := make([]bool, len(m.IDF))
	for term, col := range m.Vocabulary {
		if col < 0 || int(col) >= len(seen) {
			return nil, fmt.Errorf("term %q has column %d outside [0,%d)", term, col, len(seen))
		}
		if seen[col] {
			return nil, fmt.Errorf("column %d assigned to more than one term", col)
		}
		seen[col] = true
	}
	for col, w := range m.IDF {
		if math.IsNaN(w) || math.IsInf(w, 0) || w <= 0 {
			return nil, fmt.Errorf("idf weight %v at column %d is not a positive finite number", w, col)
		}
	}
	switch m.Options.Norm {
	case "":
		m.Options.Norm = NormL2
	case NormL2, NormNone:
	default:
		return nil, fmt.Errorf("unknown norm %q", m.Options.Norm)
	}
	return &Vectorizer{
		vocab:    m.Vocabulary,
		idf:      m.IDF,
		opts:     m.Options,
		analyzer: newAnalyzer(m.Options),
	}, nil
}

// Dim is the vocabulary size, which is also the vector dimension.
func (v *Vectorizer) Dim() int { return len(v.idf) }

func (v *Vectorizer) Options() Options { return v.opts }

// Model returns the serialisable form. The returned maps and slices are
// shared and must not be modified.
func (v *Vectorizer) Model() Model {
	return Model{Vocabulary: v.vocab, IDF: v.idf, Options: v.opts}
}

// Terms exposes the analyzer for callers that need the token stream.
func (v *Vectorizer) Terms(normalized string) []string {
	return v.analyzer.terms(normalized)
}

// Transform maps normalized text onto the fitted vocabulary. Terms outside
// the vocabulary are ignored, so the result may be the zero vector.
func (v *Vectorizer) Transform(normalized string) vector.Sparse {
	counts := make(map[int32]int)
	for _, term := range v.analyzer.terms(normalized) {
		if col, ok := v.vocab[term]; ok {
			counts[col]++
		}
	}
	if len(counts) == 0 {
		return vector.Sparse{}
	}

	indices := make([]int32, 0, len(counts))
	for col := range counts {
		indices = append(indices, col)
	}
	slices.Sort(indices)

	values := make([]float64, len(indices))
	var sumSq float64
	for k, col := range indices {
		tf := float64(counts[col])
		if v.opts.SublinearTF {
			tf = 1 + math.Log(tf)
		}
		w := tf * v.idf[col]
		values[k] = w
		sumSq += w * w
	}
	if v.opts.Norm == NormL2 && sumSq > 0 {
		norm := math.Sqrt(sumSq)
		for k := range values {
			values[k] /= norm
		}
	}
	return vector.Sparse{Indices: indices, Values: values}
}
