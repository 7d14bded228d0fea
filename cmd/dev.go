package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/desertthunder/muzictl/internal/server"
	"github.com/desertthunder/muzictl/internal/services"
	"github.com/urfave/cli/v3"
)

// DevServe runs the simulated import backend until interrupted.
func (r *Runner) DevServe(ctx context.Context, cmd *cli.Command) error {
	sim := server.DefaultSimulatorConfig()
	sim.Pages = int(cmd.Int("pages"))
	sim.TracksPerPage = int(cmd.Int("tracks"))
	sim.Delay = cmd.Duration("delay")
	sim.FailAfter = int(cmd.Int("fail-after"))

	cfg := server.Config{
		Addr:      cmd.String("addr"),
		Simulator: sim,
		Logger:    r.logger,
	}
	if cmd.Bool("require-session") {
		cfg.SessionCookie = services.SessionCookie
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	return server.New(cfg).ListenAndServe(ctx)
}
