package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/futureready/retain/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg       config
		versionID string
		asOf      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "version",
			Usage:       "Show a specific version instead of the head",
			Destination: &versionID,
		},
		&cli.StringFlag{
			Name:        "as-of",
			Usage:       "Show the version that was current at this time",
			Destination: &asOf,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:      "show",
		Usage:     "Show a document version and its metadata",
		ArgsUsage: "<doc-id>",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one document ID is required")
			}
			if versionID != "" && asOf != "" {
				return goerr.New("--version and --as-of are mutually exclusive")
			}
			docID := model.DocumentID(c.Args().First())

			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			var v *model.DocumentVersion
			if asOf != "" {
				at, err := parseTime(asOf)
				if err != nil {
					return err
				}
				v, err = s.Temporal().AsOf(docID, at)
				if err != nil {
					return err
				}
			} else {
				v, err = s.Get(ctx, docID, model.VersionID(versionID))
				if err != nil {
					return err
				}
			}

			w := c.Root().Writer
			fmt.Fprintf(w, "Document:  %s\n", v.DocumentID)
			fmt.Fprintf(w, "Version:   %s (seq %d)\n", v.VersionID, v.Seq)
			fmt.Fprintf(w, "Uploaded:  %s by %s\n", v.UploadTime.Format("2006-01-02 15:04:05 MST"), v.Metadata.Uploader)
			fmt.Fprintf(w, "Dept:      %s\n", v.Metadata.Department)
			fmt.Fprintf(w, "Context:   %s\n", v.Metadata.BusinessContext)
			if len(v.Metadata.Tags) > 0 {
				fmt.Fprintf(w, "Tags:      %s\n", strings.Join(v.Metadata.Tags, ", "))
			}
			if v.Tombstone {
				fmt.Fprintf(w, "\n(retracted)\n")
				return nil
			}

			body, err := s.Body(ctx, v)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%s\n", body)
			return nil
		},
	}
}
