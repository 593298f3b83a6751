// Package cli wires the command line surface of retain.
package cli

import (
	"context"
	"os"
	"time"

	"github.com/futureready/retain/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	if level := os.Getenv("RETAIN_LOG_LEVEL"); level != "" {
		logging.SetDefault(logging.New(level, os.Stderr))
	}

	cmd := &cli.Command{
		Name:  "retain",
		Usage: "Organizational knowledge retention system",
		Commands: []*cli.Command{
			ingestCommand(),
			retractCommand(),
			searchCommand(),
			showCommand(),
			historyCommand(),
			diffCommand(),
			monitorCommand(),
			askCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}

// parseTime accepts RFC3339 timestamps and bare dates. Bare dates mean
// end of that day, so "as of 2025-03-01" includes the whole day.
func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Add(24*time.Hour - time.Nanosecond), nil
	}
	return time.Time{}, goerr.New("unrecognized timestamp, use RFC3339 or YYYY-MM-DD",
		goerr.V("value", s))
}
