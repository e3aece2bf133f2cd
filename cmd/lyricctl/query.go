package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v2"

	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/index"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/melodetect/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/melodetect/pkg/rpc"
)

var remoteFlag = &cli.StringFlag{
	Name:  "remote",
	Usage: "Query a running searcher over RPC at this address instead of a local index",
}

var countFlag = &cli.IntFlag{
	Name:  "n",
	Value: -1,
	Usage: "Number of recommendations (default: search.defaultRecommendations)",
}

func findCommand() *cli.Command {
	return &cli.Command{
		Name:      "find",
		Usage:     "Identify the song a lyric fragment comes from",
		ArgsUsage: "<lyrics>",
		Flags:     []cli.Flag{indexDirFlag, remoteFlag, countFlag, jsonFlag},
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			req := proto.FindSongRequest{Text: text, Recommendations: countArg(c)}

			var resp proto.FindSongResponse
			if addr := c.String("remote"); addr != "" {
				if err := callRemote(c.Context, addr, handler.MethodFindSong, req, &resp); err != nil {
					return err
				}
			} else {
				exec, err := localExecutor(c)
				if err != nil {
					return err
				}
				if resp, err = exec.Find(c.Context, req, "cli"); err != nil {
					return err
				}
			}
			if c.Bool("json") {
				return printJSON(resp)
			}
			if !resp.Found {
				fmt.Printf("no match (best score %.4f, threshold %.2f)\n", resp.Score, resp.Threshold)
				return nil
			}
			fmt.Printf("%s - %s [%s]  score %.4f\n", resp.Song.Title, resp.Song.Artist, resp.Song.Mood, resp.Score)
			fmt.Printf("  %s\n", resp.Song.ListenURL)
			printScored("similar songs", resp.Recommendations)
			return nil
		},
	}
}

func recommendCommand() *cli.Command {
	return &cli.Command{
		Name:      "recommend",
		Usage:     "List songs with lyrics similar to a catalog title",
		ArgsUsage: "[title]",
		Flags: []cli.Flag{
			indexDirFlag, remoteFlag, countFlag, jsonFlag,
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}, Usage: "Anchor song title (or pass it as arguments)"},
		},
		Action: func(c *cli.Context) error {
			title := c.String("title")
			if title == "" {
				title = strings.Join(c.Args().Slice(), " ")
			}
			req := proto.RecommendRequest{Title: title, N: countArg(c)}

			var resp proto.RecommendResponse
			if addr := c.String("remote"); addr != "" {
				if err := callRemote(c.Context, addr, handler.MethodRecommend, req, &resp); err != nil {
					return err
				}
			} else {
				exec, err := localExecutor(c)
				if err != nil {
					return err
				}
				if resp, err = exec.Recommend(c.Context, req, "cli"); err != nil {
					return err
				}
			}
			if c.Bool("json") {
				return printJSON(resp)
			}
			if !resp.Found {
				fmt.Printf("%q is not in the catalog\n", resp.Title)
				for _, s := range resp.Suggestions {
					fmt.Printf("  did you mean %q by %s?\n", s.Title, s.Artist)
				}
				return nil
			}
			printScored("recommendations for "+resp.Title, resp.Recommendations)
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Load an index, verify its artifacts and print a summary",
		Flags: []cli.Flag{indexDirFlag, remoteFlag, jsonFlag},
		Action: func(c *cli.Context) error {
			var info index.Info
			if addr := c.String("remote"); addr != "" {
				if err := callRemote(c.Context, addr, handler.MethodIndexInfo, nil, &info); err != nil {
					return err
				}
			} else {
				cfg, err := loadConfig(c)
				if err != nil {
					return err
				}
				idx, err := loadIndex(c, cfg)
				if err != nil {
					return err
				}
				info = idx.Info()
			}
			if c.Bool("json") {
				return printJSON(info)
			}
			fmt.Printf("build:      %s\n", info.BuildID)
			fmt.Printf("songs:      %d\n", info.Songs)
			fmt.Printf("vocabulary: %d\n", info.Dim)
			fmt.Printf("non-zeros:  %d\n", info.NNZ)
			fmt.Printf("moods:      %s\n", strings.Join(info.Moods, ", "))
			fmt.Printf("artists:    %d\n", info.Artists)
			fmt.Printf("stemmed:    %v\n", info.Stemmed)
			fmt.Printf("stop words: %d\n", info.StopWords)
			return nil
		},
	}
}

func countArg(c *cli.Context) *int {
	if n := c.Int("n"); n >= 0 {
		return &n
	}
	return nil
}

func loadIndex(c *cli.Context, cfg *config.Config) (*index.Index, error) {
	paths := index.PathsFromConfig(cfg.Index)
	if dir := c.String("index"); dir != "" {
		paths = index.PathsIn(dir)
	}
	return index.Load(paths)
}

func localExecutor(c *cli.Context) (*executor.Executor, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	idx, err := loadIndex(c, cfg)
	if err != nil {
		return nil, err
	}
	return executor.New(idx, cfg.Search, executor.Deps{}), nil
}

func callRemote(ctx context.Context, addr, method string, params, result any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := rpc.Dial(ctx, addr)
	if err != nil {
		return err
	}
	defer client.Close()
	return client.Call(ctx, method, params, result)
}

func printScored(heading string, songs []proto.ScoredSong) {
	if len(songs) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", heading)
	for i, s := range songs {
		fmt.Printf("  %2d. %s - %s [%s]  %.4f\n", i+1, s.Title, s.Artist, s.Mood, s.Score)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
