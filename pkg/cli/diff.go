package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/futureready/retain/pkg/model"
	"github.com/urfave/cli/v3"
)

func diffCommand() *cli.Command {
	var (
		cfg  config
		from string
		to   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "from",
			Usage:       "Earlier point in time",
			Destination: &from,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "to",
			Usage:       "Later point in time",
			Destination: &to,
			Required:    true,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "diff",
		Usage: "Compare the knowledge state between two points in time",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			a, err := parseTime(from)
			if err != nil {
				return err
			}
			b, err := parseTime(to)
			if err != nil {
				return err
			}

			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			result := s.Temporal().Diff(a, b)

			w := c.Root().Writer
			printDiffSection(w, "Added", result.Added)
			printDiffSection(w, "Changed", result.Changed)
			printDiffSection(w, "Removed", result.Removed)
			if len(result.Added)+len(result.Changed)+len(result.Removed) == 0 {
				fmt.Fprintf(w, "No changes between %s and %s\n", from, to)
			}
			return nil
		},
	}
}

func printDiffSection(w io.Writer, title string, ids []model.DocumentID) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintf(w, "%s (%d):\n", title, len(ids))
	for _, id := range ids {
		fmt.Fprintf(w, "  %s\n", id)
	}
}
