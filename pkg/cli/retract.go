package cli

import (
	"context"
	"fmt"

	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/usecase/ingest"
	"github.com/urfave/cli/v3"
)

func retractCommand() *cli.Command {
	var (
		cfg        config
		docID      string
		uploader   string
		department string
		reason     string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "doc-id",
			Usage:       "Document ID to retract",
			Destination: &docID,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "uploader",
			Aliases:     []string{"u"},
			Usage:       "Email address of the person retracting",
			Sources:     cli.EnvVars("RETAIN_UPLOADER"),
			Destination: &uploader,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "department",
			Usage:       "Department performing the retraction",
			Destination: &department,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "reason",
			Aliases:     []string{"r"},
			Usage:       "Why the document is retracted",
			Destination: &reason,
			Required:    true,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)

	return &cli.Command{
		Name:  "retract",
		Usage: "Retract a document; history stays reconstructable",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			uc := ingest.New(s, nil, nil)
			defer uc.Close()

			v, err := uc.Retract(ctx, model.DocumentID(docID), ingest.MetadataInput{
				Uploader:        uploader,
				Department:      model.Department(department),
				BusinessContext: reason,
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.Root().Writer, "Retracted document %s (version %d)\n", v.DocumentID, v.Seq)
			return nil
		},
	}
}
