package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "semsearch",
		Usage: "Semantic search over a small document corpus",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file (uses ./config.yaml or ~/.config/semsearch/config.yaml if not provided)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Override logging level (debug, info, warn, error)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Use the development log encoder",
			},
		},
		Action: tuiCommand,
		Commands: []*cli.Command{
			{
				Name:   "tui",
				Usage:  "Interactive search screen (default)",
				Action: tuiCommand,
			},
			{
				Name:      "search",
				Usage:     "Run one query, or the three example queries when none is given",
				ArgsUsage: "[query...]",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results (defaults to search.default_top_k)",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print results as JSON",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Serve the HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults to server.addr)",
					},
				},
			},
			{
				Name:   "check",
				Usage:  "Verify the configured vector index with a scratch collection",
				Action: checkCommand,
			},
			{
				Name:   "drop",
				Usage:  "Drop the search collection so the next run reloads it",
				Action: dropCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "collection",
						Usage: "Collection to drop (defaults to search.collection)",
					},
				},
			},
		},
	}
}
