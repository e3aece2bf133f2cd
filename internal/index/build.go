package index

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/normalizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vectorizer"
)

// Build fits a vectorizer over the normalized full lyrics of entries and
// transforms every song into its matrix row. Songs without lyrics get an
// empty row. An empty buildID is replaced by a random UUID.
func Build(entries []catalog.Entry, opts vectorizer.Options, buildID string) (*Index, error) {
	cat, err := catalog.New(entries)
	if err != nil {
		return nil, err
	}
	if buildID == "" {
		buildID = uuid.NewString()
	}

	docs := make([]string, cat.Len())
	for i, e := range cat.Entries() {
		if e.HasLyrics {
			docs[i] = normalizer.Normalize(e.Lyrics)
		}
	}
	vec, err := vectorizer.Fit(docs, opts)
	if err != nil {
		return nil, fmt.Errorf("fitting vectorizer: %w", err)
	}

	rows := make([]vector.Sparse, len(docs))
	for i, doc := range docs {
		rows[i] = vec.Transform(doc)
	}
	matrix, err := vector.NewMatrix(vec.Dim(), rows)
	if err != nil {
		return nil, fmt.Errorf("assembling matrix: %w", err)
	}

	return &Index{
		BuildID:    buildID,
		Vectorizer: vec,
		Matrix:     matrix,
		Catalog:    cat,
	}, nil
}
