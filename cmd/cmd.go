// submodule cmd contains command definitions
package main

import (
	"time"

	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the local database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize the import history database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show which database migrations have been applied",
				Action: r.DatabaseStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Revert the most recent database migration",
				Action: r.DatabaseRollback,
			},
		},
	}
}

// configCommand manages the configuration file.
func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration file helpers",
		Commands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write the example configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "path",
						Usage: "Where to write the file",
						Value: "config.toml",
					},
				},
				Action: r.ConfigInit,
			},
			{
				Name:   "providers",
				Usage:  "List configured import providers",
				Action: r.ConfigProviders,
			},
		},
	}
}

// importFlags are shared by every import subcommand.
func importFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "tui",
			Usage: "Follow progress in the interactive view",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the outcome as JSON instead of drawing progress",
		},
		&cli.StringFlag{
			Name:  "session-curl",
			Usage: "Path to a file holding a browser 'Copy as cURL' command; its session cookie is sent with every request",
		},
		&cli.StringFlag{
			Name:  "on-malformed",
			Usage: "What to do with an undecodable progress message: skip or abort",
			Value: "skip",
		},
	}
}

// importCommand submits imports and follows their progress.
func importCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import listening history",
		Commands: []*cli.Command{
			{
				Name:  "lastfm",
				Usage: "Import scrobbles from a Last.fm account",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "username",
						Aliases:  []string{"u"},
						Usage:    "Last.fm username",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "api-key",
						Usage:    "Last.fm API key",
						Required: true,
						Sources:  cli.EnvVars("LASTFM_API_KEY"),
					},
				}, importFlags()...),
				Action: r.ImportLastFM,
			},
			{
				Name:  "spotify",
				Usage: "Import Spotify extended streaming history JSON files",
				Flags: append([]cli.Flag{
					&cli.StringSliceFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Streaming history JSON file (repeatable, 30 max)",
						Required: true,
					},
				}, importFlags()...),
				Action: r.ImportSpotify,
			},
			{
				Name:  "watch",
				Usage: "Re-open the progress stream of an existing job",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "provider",
						Aliases:  []string{"p"},
						Usage:    "Provider the job belongs to",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "job",
						Aliases:  []string{"j"},
						Usage:    "Job ID returned by the submission",
						Required: true,
					},
				}, importFlags()...),
				Action: r.ImportWatch,
			},
		},
	}
}

// historyCommand lists recorded import runs.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show past import runs",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to show",
				Value: 20,
			},
			&cli.StringFlag{
				Name:  "provider",
				Usage: "Only show runs for this provider",
			},
			&cli.StringFlag{
				Name:  "format",
				Usage: "Output format: table, csv or json",
				Value: "table",
			},
		},
		Action: r.History,
	}
}

// devCommand holds development helpers.
func devCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "dev",
		Usage: "Development helpers",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run a simulated import backend",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address",
						Value: ":1234",
					},
					&cli.IntFlag{
						Name:  "pages",
						Usage: "Pages (or batches) per simulated import",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "tracks",
						Usage: "Tracks imported per page",
						Value: 200,
					},
					&cli.DurationFlag{
						Name:  "delay",
						Usage: "Pause between progress events",
						Value: 250 * time.Millisecond,
					},
					&cli.IntFlag{
						Name:  "fail-after",
						Usage: "End every job with an error after this many pages (0 never fails)",
					},
					&cli.BoolFlag{
						Name:  "require-session",
						Usage: "Reject requests without a session cookie",
					},
				},
				Action: r.DevServe,
			},
		},
	}
}
