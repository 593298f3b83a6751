package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/futureready/retain/pkg/alert"
	"github.com/urfave/cli/v3"
)

func monitorCommand() *cli.Command {
	var (
		cfg       config
		policyDir string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego triage policies (optional)",
			Sources:     cli.EnvVars("RETAIN_POLICY_DIR"),
			Destination: &policyDir,
		},
	}
	flags = append(flags, storeFlags(&cfg)...)
	flags = append(flags, searchFlags(&cfg)...)

	return &cli.Command{
		Name:  "monitor",
		Usage: "Run the agent monitor rules and report alerts",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			s, err := cfg.newStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			// Monitor rules only read the store; no retrieval or
			// generation backend is needed.
			resolver, err := cfg.newResolver(s, nil, nil)
			if err != nil {
				return err
			}
			runtime := cfg.newRuntime(resolver, nil, s)

			var policy *alert.TriagePolicy
			if policyDir != "" {
				policy, err = alert.LoadTriagePolicy(ctx, policyDir)
				if err != nil {
					return err
				}
			}
			engine := alert.NewEngine(alert.WithTriagePolicy(policy))

			candidates, err := runtime.MonitorAll(ctx)
			if err != nil {
				return err
			}
			alerts, err := engine.Process(ctx, candidates)
			if err != nil {
				return err
			}

			w := c.Root().Writer
			if len(alerts) == 0 {
				fmt.Fprintf(w, "No alerts\n")
				return nil
			}
			for _, a := range alerts {
				fmt.Fprintf(w, "[%s] %s: %s\n", strings.ToUpper(string(a.Severity)), a.Type, a.Message)
				for _, id := range a.RelatedDocs {
					fmt.Fprintf(w, "    %s\n", id)
				}
			}
			return nil
		},
	}
}
