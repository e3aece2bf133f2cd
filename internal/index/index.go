// Package index loads, writes and builds the three co-versioned artifacts
// behind lyric search: the fitted vectorizer, the catalog lyric matrix and
// the song catalog. A loaded Index is immutable and shared by the matcher,
// the recommender and the HTTP layer.
package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vector"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vectorizer"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/melodetect/pkg/errors"
)

const (
	DefaultVectorizerFile = "vectorizer.json"
	DefaultMatrixFile     = "matrix.lvx"
	DefaultCatalogFile    = "catalog.json"
)

type Index struct {
	BuildID    string
	Vectorizer *vectorizer.Vectorizer
	Matrix     *vector.Matrix
	Catalog    *catalog.Catalog
}

type Paths struct {
	Vectorizer string
	Matrix     string
	Catalog    string
}

// PathsIn uses the default artifact names inside dir.
func PathsIn(dir string) Paths {
	return Paths{
		Vectorizer: filepath.Join(dir, DefaultVectorizerFile),
		Matrix:     filepath.Join(dir, DefaultMatrixFile),
		Catalog:    filepath.Join(dir, DefaultCatalogFile),
	}
}

func PathsFromConfig(cfg config.IndexConfig) Paths {
	return Paths{
		Vectorizer: filepath.Join(cfg.Dir, cfg.VectorizerFile),
		Matrix:     filepath.Join(cfg.Dir, cfg.MatrixFile),
		Catalog:    filepath.Join(cfg.Dir, cfg.CatalogFile),
	}
}

type vectorizerFile struct {
	BuildID string `json:"build_id"`
	vectorizer.Model
}

// Info summarises a loaded index.
type Info struct {
	BuildID   string   `json:"build_id"`
	Songs     int      `json:"songs"`
	Dim       int      `json:"dim"`
	NNZ       int      `json:"nnz"`
	Moods     []string `json:"moods"`
	Artists   int      `json:"artists"`
	Stemmed   bool     `json:"stemmed"`
	StopWords int      `json:"stop_words"`
}

func (idx *Index) Info() Info {
	opts := idx.Vectorizer.Options()
	return Info{
		BuildID:   idx.BuildID,
		Songs:     idx.Catalog.Len(),
		Dim:       idx.Matrix.Dim(),
		NNZ:       idx.Matrix.NNZ(),
		Moods:     idx.Catalog.Moods(),
		Artists:   len(idx.Catalog.Artists()),
		Stemmed:   opts.Stem,
		StopWords: len(opts.StopWords),
	}
}

// Load reads and cross-checks the three artifacts. Every failure is fatal
// for the caller and wraps one of the load sentinels in pkg/errors.
func Load(paths Paths) (*Index, error) {
	vecRaw, err := readArtifact(paths.Vectorizer)
	if err != nil {
		return nil, err
	}
	matRaw, err := readArtifact(paths.Matrix)
	if err != nil {
		return nil, err
	}
	catRaw, err := readArtifact(paths.Catalog)
	if err != nil {
		return nil, err
	}

	var vf vectorizerFile
	if err := json.Unmarshal(vecRaw, &vf); err != nil {
		return nil, fmt.Errorf("%w: vectorizer: %v", apperrors.ErrArtifactCorrupt, err)
	}
	vec, err := vectorizer.New(vf.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: vectorizer: %v", apperrors.ErrArtifactCorrupt, err)
	}

	matBuild, matrix, err := decodeMatrix(matRaw)
	if err != nil {
		return nil, err
	}

	catBuild, entries, err := catalog.Unmarshal(catRaw)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	if matBuild != vf.BuildID || catBuild != vf.BuildID {
		return nil, fmt.Errorf("%w: vectorizer=%q matrix=%q catalog=%q",
			apperrors.ErrArtifactVersion, vf.BuildID, matBuild, catBuild)
	}
	if matrix.Dim() != vec.Dim() {
		return nil, fmt.Errorf("%w: matrix has %d columns, vocabulary has %d terms",
			apperrors.ErrDimensionMismatch, matrix.Dim(), vec.Dim())
	}
	if matrix.Rows() != len(entries) {
		return nil, fmt.Errorf("%w: matrix has %d rows, catalog has %d songs",
			apperrors.ErrRowCountMismatch, matrix.Rows(), len(entries))
	}

	cat, err := catalog.New(entries)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	return &Index{
		BuildID:    vf.BuildID,
		Vectorizer: vec,
		Matrix:     matrix,
		Catalog:    cat,
	}, nil
}

func readArtifact(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", apperrors.ErrArtifactMissing)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrArtifactMissing, err)
	}
	return b, nil
}
