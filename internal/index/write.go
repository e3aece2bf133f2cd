package index

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
)

// Write stores the index as three artifacts. Each file is written to a
// temporary name and renamed into place, so readers never observe a
// partially written artifact.
func Write(paths Paths, idx *Index) error {
	vecData, err := json.Marshal(vectorizerFile{BuildID: idx.BuildID, Model: idx.Vectorizer.Model()})
	if err != nil {
		return fmt.Errorf("marshaling vectorizer: %w", err)
	}
	matData, err := encodeMatrix(idx.BuildID, idx.Matrix)
	if err != nil {
		return fmt.Errorf("encoding matrix: %w", err)
	}
	catData, err := catalog.Marshal(idx.BuildID, idx.Catalog.Entries())
	if err != nil {
		return fmt.Errorf("marshaling catalog: %w", err)
	}

	// catalog last
	for _, f := range []struct {
		path string
		data []byte
	}{
		{paths.Vectorizer, vecData},
		{paths.Matrix, matData},
		{paths.Catalog, catData},
	} {
		if err := writeAtomic(f.path, f.data); err != nil {
			return err
		}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp artifact file: %w", err)
	}
	defer os.Remove(tmpPath)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming %s: %w", filepath.Base(path), err)
	}
	return nil
}
