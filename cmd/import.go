package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/desertthunder/muzictl/internal/formatter"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/repositories"
	"github.com/desertthunder/muzictl/internal/services"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
	"github.com/desertthunder/muzictl/internal/tasks"
	"github.com/desertthunder/muzictl/internal/ui"
	"github.com/urfave/cli/v3"
)

const tuiLogPath = "./tmp/muzictl-tui.log"

// importOutcome is what --json prints.
type importOutcome struct {
	Provider       string             `json:"provider"`
	JobID          string             `json:"job_id,omitempty"`
	State          string             `json:"state"`
	Percent        int                `json:"percent"`
	TracksImported int                `json:"tracks_imported"`
	Status         string             `json:"status,omitempty"`
	Error          string             `json:"error,omitempty"`
	Success        string             `json:"success,omitempty"`
	Run            *formatter.RunJSON `json:"run,omitempty"`
}

func newImportOutcome(provider string, res *tasks.ImportResult) importOutcome {
	out := importOutcome{Provider: provider, State: models.StateIdle.String()}
	if res == nil {
		return out
	}
	if res.Handle != nil {
		out.JobID = res.Handle.JobID
	}
	out.State = res.UI.State.String()
	out.Percent = res.UI.Percent
	out.TracksImported = res.UI.Tracks
	out.Status = res.UI.PhaseLabel
	out.Error = res.UI.ErrorLabel
	out.Success = res.UI.Success
	if res.Run != nil {
		run := formatter.ToRunJSON(res.Run)
		out.Run = &run
	}
	return out
}

// ImportLastFM submits a Last.fm import and follows it.
func (r *Runner) ImportLastFM(ctx context.Context, cmd *cli.Command) error {
	form := models.NewImportForm(url.Values{
		"lastfm_username": {cmd.String("username")},
		"lastfm_api_key":  {cmd.String("api-key")},
	})
	return r.runImport(ctx, cmd, "lastfm", form, nil)
}

// ImportSpotify uploads streaming history files and follows the import.
func (r *Runner) ImportSpotify(ctx context.Context, cmd *cli.Command) error {
	p, err := r.config.Provider("spotify")
	if err != nil {
		return err
	}

	paths := cmd.StringSlice("file")
	if len(paths) == 0 {
		return fmt.Errorf("%w: at least one --file is required", shared.ErrMissingArgument)
	}
	if len(paths) > services.MaxUploads {
		return fmt.Errorf("%w: %d files given, %d max", shared.ErrInvalidArgument, len(paths), services.MaxUploads)
	}

	uploads := make([]models.Upload, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		uploads = append(uploads, models.Upload{Field: p.UploadField, Filename: filepath.Base(path), Content: f})
	}

	return r.runImport(ctx, cmd, "spotify", models.NewImportForm(nil, uploads...), nil)
}

// ImportWatch follows an existing job without submitting anything.
func (r *Runner) ImportWatch(ctx context.Context, cmd *cli.Command) error {
	handle := &models.JobHandle{JobID: cmd.String("job")}
	return r.runImport(ctx, cmd, cmd.String("provider"), nil, handle)
}

// runImport drives one import in the output mode selected by --json or --tui. A nil handle
// submits form first; otherwise the existing job is watched.
func (r *Runner) runImport(ctx context.Context, cmd *cli.Command, name string, form *models.ImportForm, handle *models.JobHandle) error {
	p, err := r.config.Provider(name)
	if err != nil {
		return err
	}
	policy, err := tasks.ParseMalformedPolicy(cmd.String("on-malformed"))
	if err != nil {
		return err
	}
	session, err := r.session(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if cmd.Bool("tui") {
		fileLogger, err := shared.NewFileLogger(tuiLogPath)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		r.SetLogger(fileLogger)
	}

	engine, closeHistory := r.newEngine(ctx, session, policy)
	defer closeHistory()

	req := tasks.ImportRequest{Provider: p, Form: form}
	follow := func(ctx context.Context, s surface.Surface) (*tasks.ImportResult, error) {
		req.Surface = s
		if handle != nil {
			return engine.Watch(ctx, handle, req)
		}
		return engine.Import(ctx, req)
	}

	switch {
	case cmd.Bool("json"):
		res, err := follow(ctx, surface.Discard)
		if werr := r.writeJSON(newImportOutcome(p.Name, res), true); werr != nil {
			return werr
		}
		return err

	case cmd.Bool("tui"):
		var res *tasks.ImportResult
		_, err := ui.Run(ctx, p.DisplayName+" import", p.PanelPrefix, func(ctx context.Context, s surface.Surface) (models.ProgressUIState, error) {
			var err error
			res, err = follow(ctx, s)
			if res == nil {
				return models.ProgressUIState{}, err
			}
			return res.UI, err
		})
		if res != nil && res.Handle != nil {
			r.logger.Info("import finished", "job_id", res.Handle.JobID, "state", res.UI.State)
		}
		return err

	default:
		term := surface.NewTerminal(p.PanelPrefix, r.output)
		res, err := follow(ctx, term)
		if res != nil && res.Handle != nil && res.UI.State == models.StateDisconnected {
			r.writePlain("Run `muzictl import watch --provider %s --job %s` to check on it again.\n", p.Name, res.Handle.JobID)
		}
		if err == nil {
			err = term.Err()
		}
		return err
	}
}

// session returns the session cookie value from --session-curl or the config.
func (r *Runner) session(cmd *cli.Command) (string, error) {
	if path := cmd.String("session-curl"); path != "" {
		value, err := shared.SessionFromCurlFile(path, services.SessionCookie)
		if err != nil {
			return "", fmt.Errorf("failed to read session from cURL file: %w", err)
		}
		return value, nil
	}
	return r.config.Server.SessionCookie, nil
}

// newEngine builds an import engine for the configured server. Runs are recorded in the history
// database when it can be opened; the returned func closes it.
func (r *Runner) newEngine(ctx context.Context, session string, policy tasks.MalformedPolicy) (*tasks.ImportEngine, func()) {
	initiator := r.initiator
	if initiator == nil {
		initiator = services.NewImportService(r.config.Server.BaseURL, r.httpClient, r.logger).WithSession(session)
	}

	cfg := tasks.EngineConfig{
		Initiator:  initiator,
		BaseURL:    r.config.Server.BaseURL,
		HTTPClient: r.httpClient,
		Header:     tasks.SessionHeader(services.SessionCookie, session),
		Logger:     r.logger,
		Malformed:  policy,
	}

	closeHistory := func() {}
	if db, repo, err := r.openHistory(ctx); err != nil {
		r.logger.Warn("import history disabled", "error", err)
	} else {
		cfg.Recorder = repositories.NewRunRecorder(repo)
		closeHistory = func() { db.Close() }
	}

	return tasks.NewImportEngine(cfg), closeHistory
}
