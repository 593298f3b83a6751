package cli

import (
	"context"
	"fmt"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func historyCommand() *cli.Command {
	var cfg config

	return &cli.Command{
		Name:      "history",
		Usage:     "List all versions of a document, oldest first",
		ArgsUsage: "<doc-id>",
		Flags:     storeFlags(&cfg),
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one document ID is required")
			}
			docID := model.DocumentID(c.Args().First())

			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			versions, err := s.History(ctx, docID)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			for _, v := range versions {
				marker := ""
				if v.Tombstone {
					marker = "  (retracted)"
				}
				fmt.Fprintf(w, "%3d  %s  %s  %s%s\n",
					v.Seq,
					v.UploadTime.Format("2006-01-02 15:04:05"),
					v.Metadata.Uploader,
					v.VersionID,
					marker)
			}
			return nil
		},
	}
}
