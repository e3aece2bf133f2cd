package main

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/catalog/store"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/vectorizer"
)

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Fit a vectorizer over a catalog and write the three index artifacts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog", Usage: "Catalog JSON file to read songs from"},
			&cli.StringFlag{Name: "sqlite", Usage: "SQLite catalog database to read songs from"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory (overrides index.dir)"},
			&cli.StringFlag{Name: "build-id", Usage: "Build id stamped on every artifact (default: random UUID)"},
			&cli.BoolFlag{Name: "stem", Usage: "Apply Porter2 stemming to terms"},
			&cli.BoolFlag{Name: "stopwords", Usage: "Drop the built-in Indonesian and English stop words"},
			&cli.StringFlag{Name: "stop-words-file", Usage: "Drop the stop words listed one per line in this file"},
			&cli.BoolFlag{Name: "sublinear-tf", Usage: "Use 1+ln(tf) term frequency"},
			&cli.IntFlag{Name: "min-df", Usage: "Drop terms found in fewer songs"},
			&cli.IntFlag{Name: "max-features", Usage: "Keep only the most frequent terms"},
			&cli.IntFlag{Name: "min-token-length", Value: vectorizer.DefaultMinTokenLength, Usage: "Shortest term kept, in runes"},
		},
		Action: buildAction,
	}
}

func buildAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	entries, err := readEntries(c)
	if err != nil {
		return err
	}

	opts := vectorizer.Options{
		SublinearTF:    c.Bool("sublinear-tf"),
		Norm:           vectorizer.NormL2,
		MinTokenLength: c.Int("min-token-length"),
		Stem:           c.Bool("stem"),
		MinDF:          c.Int("min-df"),
		MaxFeatures:    c.Int("max-features"),
	}
	switch {
	case c.Bool("stopwords") && c.String("stop-words-file") != "":
		return fmt.Errorf("--stopwords and --stop-words-file are mutually exclusive")
	case c.Bool("stopwords"):
		opts.StopWords = catalog.StopWords()
	case c.String("stop-words-file") != "":
		if opts.StopWords, err = readStopWords(c.String("stop-words-file")); err != nil {
			return err
		}
	}

	start := time.Now()
	idx, err := index.Build(entries, opts, c.String("build-id"))
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	paths := index.PathsFromConfig(cfg.Index)
	if dir := c.String("out"); dir != "" {
		paths = index.PathsIn(dir)
	}
	if err := index.Write(paths, idx); err != nil {
		return fmt.Errorf("writing index: %w", err)
	}

	info := idx.Info()
	fmt.Printf("built index %s in %s\n", info.BuildID, time.Since(start).Round(time.Millisecond))
	fmt.Printf("  songs:      %d\n", info.Songs)
	fmt.Printf("  vocabulary: %d\n", info.Dim)
	fmt.Printf("  non-zeros:  %d\n", info.NNZ)
	fmt.Printf("  vectorizer: %s\n", paths.Vectorizer)
	fmt.Printf("  matrix:     %s\n", paths.Matrix)
	fmt.Printf("  catalog:    %s\n", paths.Catalog)
	return nil
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Load a catalog JSON file into a SQLite catalog database",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "catalog", Required: true, Usage: "Catalog JSON file"},
			&cli.StringFlag{Name: "sqlite", Required: true, Usage: "SQLite database path"},
		},
		Action: func(c *cli.Context) error {
			entries, err := readCatalogFile(c.String("catalog"))
			if err != nil {
				return err
			}
			db, err := store.Open(c.String("sqlite"))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := db.Import(c.Context, entries); err != nil {
				return err
			}
			total, err := db.Count(c.Context)
			if err != nil {
				return err
			}
			fmt.Printf("imported %d songs, %d in database\n", len(entries), total)
			return nil
		},
	}
}

func readEntries(c *cli.Context) ([]catalog.Entry, error) {
	switch {
	case c.String("catalog") != "" && c.String("sqlite") != "":
		return nil, fmt.Errorf("--catalog and --sqlite are mutually exclusive")
	case c.String("catalog") != "":
		return readCatalogFile(c.String("catalog"))
	case c.String("sqlite") != "":
		db, err := store.Open(c.String("sqlite"))
		if err != nil {
			return nil, err
		}
		defer db.Close()
		return db.Entries(c.Context)
	default:
		return nil, fmt.Errorf("one of --catalog or --sqlite is required")
	}
}

func readStopWords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading stop words: %w", err)
	}
	seen := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		if w := strings.ToLower(strings.TrimSpace(line)); w != "" && !strings.HasPrefix(w, "#") {
			seen[w] = struct{}{}
		}
	}
	words := make([]string, 0, len(seen))
	for w := range seen {
		words = append(words, w)
	}
	slices.Sort(words)
	return words, nil
}

func readCatalogFile(path string) ([]catalog.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	_, entries, err := catalog.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return entries, nil
}
