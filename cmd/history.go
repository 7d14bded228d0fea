package main

import (
	"context"

	"github.com/desertthunder/muzictl/internal/formatter"
	"github.com/urfave/cli/v3"
)

// History prints recorded import runs, newest first.
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	db, repo, err := r.openHistory(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := repo.List(map[string]any{
		"provider": cmd.String("provider"),
		"limit":    int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}

	r.logger.Debug("listing import history", "runs", len(runs))
	return formatter.WriteHistory(r.output, runs, format)
}
