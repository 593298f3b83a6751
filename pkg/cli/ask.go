package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/futureready/retain/pkg/adapter"
	"github.com/futureready/retain/pkg/agent"
	"github.com/futureready/retain/pkg/index"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func askCommand() *cli.Command {
	var (
		cfg       config
		agentName string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "agent",
			Aliases:     []string{"a"},
			Usage:       "Agent to ask (legal, hr, pr)",
			Sources:     cli.EnvVars("RETAIN_AGENT"),
			Destination: &agentName,
			Required:    true,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, indexFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)

	return &cli.Command{
		Name:  "ask",
		Usage: "Interactive session with a department agent",
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

			resolver, err := cfg.newResolver(s, semantic, graph)
			if err != nil {
				return err
			}

			// Without a generation backend the agents answer from the
			// retrieved business contexts instead of refusing.
			var provider adapter.Provider
			var agentOpts []agent.ProfileOption
			if gemini != nil {
				provider = gemini
			} else {
				agentOpts = append(agentOpts, agent.WithLocalFallback())
			}
			runtime := cfg.newRuntime(resolver, provider, s, agentOpts...)

			ag, err := runtime.Get(agentName)
			if err != nil {
				return err
			}

			rl, err := readline.New(fmt.Sprintf("%s> ", ag.Name()))
			if err != nil {
				return goerr.Wrap(err, "failed to open terminal")
			}
			defer rl.Close()

			w := c.Root().Writer
			fmt.Fprintf(w, "Asking the %s agent. Type 'exit' to quit.\n", ag.Name())

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				question := strings.TrimSpace(line)
				if question == "" {
					continue
				}
				if question == "exit" || question == "quit" {
					break
				}

				sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				sp.Suffix = " thinking..."
				sp.Start()
				resp, err := ag.Query(ctx, question)
				sp.Stop()

				if err != nil {
					fmt.Fprintf(w, "error: %v\n", err)
					continue
				}

				fmt.Fprintf(w, "\n%s\n", resp.Answer)
				fmt.Fprintf(w, "\n  confidence: %.2f\n", resp.Confidence)
				if len(resp.Sources) > 0 {
					fmt.Fprintf(w, "  sources:\n")
					for _, id := range resp.Sources {
						fmt.Fprintf(w, "    %s\n", id)
					}
				}
				fmt.Fprintln(w)
			}

			fmt.Fprintf(w, "\nSession ended\n")
			return nil
		},
	}
}
