package cli

import (
	"context"
	"fmt"

	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func searchCommand() *cli.Command {
	var (
		cfg        config
		query      string
		department string
		tags       []string
		asOf       string
		anchor     string
		limit      int64
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "query",
			Aliases:     []string{"q"},
			Usage:       "Natural language query",
			Destination: &query,
		},
		&cli.StringFlag{
			Name:        "department",
			Usage:       "Restrict results to one department",
			Destination: &department,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Require a tag (repeatable)",
			Destination: &tags,
		},
		&cli.StringFlag{
			Name:        "as-of",
			Usage:       "Resolve against the knowledge state at this time",
			Destination: &asOf,
		},
		&cli.StringFlag{
			Name:        "anchor",
			Usage:       "Graph entity to pivot on",
			Destination: &anchor,
		},
		&cli.IntFlag{
			Name:        "limit",
			Aliases:     []string{"n"},
			Usage:       "Maximum results",
			Value:       10,
			Destination: &limit,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, indexFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)

	return &cli.Command{
		Name:  "search",
		Usage: "Query documents across the semantic and graph indexes",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			var embedder index.Embedder
			if gemini != nil {
				embedder = gemini
			}
			if query != "" && embedder == nil {
				return goerr.New("gemini-project is required for text queries")
			}

			semantic, err := cfg.newSemantic(ctx, embedder)
			if err != nil {
				return err
			}
			graph, err := cfg.newGraph(ctx)
			if err != nil {
				return err
			}

			// In-process backends are empty after restart; rebuild them
			// from the store before querying.
			uc, err := cfg.newIngest(ctx, s, semantic, graph)
			if err != nil {
				return err
			}
			defer uc.Close()

			resolver, err := cfg.newResolver(s, semantic, graph)
			if err != nil {
				return err
			}

			q := model.SearchQuery{
				Query:       query,
				Department:  model.Department(department),
				Tags:        tags,
				GraphAnchor: anchor,
				Limit:       int(limit),
			}
			if asOf != "" {
				t, err := parseTime(asOf)
				if err != nil {
					return err
				}
				q.AsOf = &t
			}

			results, err := resolver.Search(ctx, q)
			if err != nil {
				return err
			}

			if len(results) == 0 {
				fmt.Fprintf(c.Root().Writer, "No documents matched\n")
				return nil
			}
			for i, hit := range results {
				fmt.Fprintf(c.Root().Writer, "%2d. %s  score=%.3f  reason=%s\n",
					i+1, hit.DocumentID, hit.Score, hit.Reason)
				fmt.Fprintf(c.Root().Writer, "    version %s\n", hit.VersionID)
			}
			return nil
		},
	}
}
