// Command lyricctl builds and inspects lyric index artifacts and runs
// find and recommend queries against a local index or a running searcher.
//
// Usage:
//
//	lyricctl build --catalog songs.json --out data/index --stem
//	lyricctl find --index data/index "hujan turun lagi"
//	lyricctl recommend --remote localhost:9100 "Hujan"
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/logger"
)

func main() {
	app := &cli.App{
		Name:  "lyricctl",
		Usage: "Build, inspect and query MeloDetect lyric indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				EnvVars: []string{"MD_CONFIG"},
			},
			&cli.StringFlag{
				Name:  "log-level",
				Value: "warn",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(c.String("log-level"), "text", logger.WithWriter(os.Stderr))
			return nil
		},
		Commands: []*cli.Command{
			buildCommand(),
			importCommand(),
			findCommand(),
			recommendCommand(),
			inspectCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "lyricctl: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

var indexDirFlag = &cli.StringFlag{
	Name:    "index",
	Aliases: []string{"i"},
	Usage:   "Directory holding the index artifacts (overrides index.dir)",
}

var jsonFlag = &cli.BoolFlag{
	Name:  "json",
	Usage: "Output as JSON",
}
