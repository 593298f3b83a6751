package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/futureready/retain/pkg/index"
	"github.com/futureready/retain/pkg/model"
	"github.com/futureready/retain/pkg/usecase/ingest"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func ingestCommand() *cli.Command {
	var (
		cfg        config
		filePath   string
		docID      string
		uploader   string
		department string
		bizContext string
		tags       []string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Path to the document body (stdin when omitted)",
			Destination: &filePath,
		},
		&cli.StringFlag{
			Name:        "doc-id",
			Usage:       "Existing document ID to append a new version to",
			Destination: &docID,
		},
		&cli.StringFlag{
			Name:        "uploader",
			Aliases:     []string{"u"},
			Usage:       "Email address of the uploader",
			Sources:     cli.EnvVars("RETAIN_UPLOADER"),
			Destination: &uploader,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "department",
			Usage:       "Owning department (legal, hr, pr, finance, engineering, operations)",
			Destination: &department,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "context",
			Aliases:     []string{"c"},
			Usage:       "Business context: why this document matters",
			Destination: &bizContext,
			Required:    true,
		},
		&cli.StringSliceFlag{
			Name:        "tag",
			Aliases:     []string{"t"},
			Usage:       "Classification tag (repeatable)",
			Destination: &tags,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, indexFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "ingest",
		Usage: "Store a document version with mandatory metadata",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			body, err := readBody(filePath)
			if err != nil {
				return err
			}

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

			semantic, err := cfg.newSemantic(ctx, embedder)
			if err != nil {
				return err
			}
			graph, err := cfg.newGraph(ctx)
			if err != nil {
				return err
			}

			uc, err := cfg.newIngest(ctx, s, semantic, graph)
			if err != nil {
				return err
			}
			defer uc.Close()

			input := ingest.MetadataInput{
				Uploader:        uploader,
				Department:      model.Department(department),
				BusinessContext: bizContext,
				Tags:            tags,
			}

			var v *model.DocumentVersion
			if docID != "" {
				v, err = uc.Update(ctx, model.DocumentID(docID), body, input)
			} else {
				v, err = uc.Ingest(ctx, body, input)
			}
			if err != nil {
				return err
			}
			uc.Wait()

			fmt.Fprintf(c.Root().Writer, "Stored version %d of document %s\n", v.Seq, v.DocumentID)
			fmt.Fprintf(c.Root().Writer, "  version: %s\n", v.VersionID)
			fmt.Fprintf(c.Root().Writer, "  uploaded: %s\n", v.UploadTime.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
}

func readBody(path string) ([]byte, error) {
	if path == "" {
		body, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read document from stdin")
		}
		return body, nil
	}

	body, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read document file", goerr.V("path", path))
	}
	return body, nil
}
