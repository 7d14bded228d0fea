package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/services"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
)

// RunRecorder persists import runs. Recording failures never change the outcome of an import.
type RunRecorder interface {
	// Begin stores a new run for provider. jobID is empty when submission failed.
	Begin(ctx context.Context, provider, jobID string) (*models.ImportRun, error)
	// Complete stores the final panel state of run.
	Complete(ctx context.Context, run *models.ImportRun, ui models.ProgressUIState) error
}

// ImportRequest describes one user-initiated import.
type ImportRequest struct {
	Provider shared.ProviderConfig
	Form     *models.ImportForm
	Surface  surface.Surface
	Changes  chan<- StateChange
}

// ImportResult is the outcome of [ImportEngine.Import] or [ImportEngine.Watch].
type ImportResult struct {
	Handle *models.JobHandle
	UI     models.ProgressUIState
	Run    *models.ImportRun
}

// EngineConfig holds the collaborators of an [ImportEngine].
type EngineConfig struct {
	Initiator  services.Initiator
	BaseURL    string
	HTTPClient *http.Client
	// Header is sent with every subscription request, e.g. the session cookie.
	Header     http.Header
	Recorder   RunRecorder
	Logger     *log.Logger
	Malformed  MalformedPolicy
	// Transports overrides the transport built for a kind.
	Transports map[shared.TransportKind]Transport
}

// ImportEngine runs the submit → subscribe sequence for a provider.
type ImportEngine struct {
	cfg    EngineConfig
	logger *log.Logger
}

// NewImportEngine creates an engine.
func NewImportEngine(cfg EngineConfig) *ImportEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ImportEngine{cfg: cfg, logger: logger}
}

// Import submits req.Form and follows the job to a terminal state.
//
// A submission failure returns an error matching [shared.ErrJobSubmission] and never opens a
// subscription. Other errors are those of [Subscriber.Run].
func (e *ImportEngine) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if e.cfg.Initiator == nil {
		return nil, fmt.Errorf("%w: engine has no initiator", shared.ErrMissingArgument)
	}
	transport, err := e.transport(req.Provider.Transport)
	if err != nil {
		return nil, err
	}

	if req.Surface == nil {
		req.Surface = surface.Discard
	}

	handle, err := e.cfg.Initiator.Submit(ctx, req.Form, req.Provider, req.Surface)
	if err != nil {
		if errors.Is(err, shared.ErrJobSubmission) {
			ui := submissionFailure(err)
			run := e.begin(ctx, req.Provider.Name, "")
			e.complete(ctx, run, ui)
			return &ImportResult{UI: ui, Run: run}, err
		}
		return nil, err
	}

	return e.follow(ctx, transport, handle, req)
}

// Watch subscribes to an existing job without submitting anything. It is how a user re-checks a
// job after a lost connection.
func (e *ImportEngine) Watch(ctx context.Context, handle *models.JobHandle, req ImportRequest) (*ImportResult, error) {
	transport, err := e.transport(req.Provider.Transport)
	if err != nil {
		return nil, err
	}
	if req.Surface != nil {
		surface.Reset(req.Surface)
	}
	return e.follow(ctx, transport, handle, req)
}

func (e *ImportEngine) follow(ctx context.Context, transport Transport, handle *models.JobHandle, req ImportRequest) (*ImportResult, error) {
	if handle == nil || handle.JobID == "" {
		return nil, fmt.Errorf("%w: job handle has no job id", shared.ErrInvalidArgument)
	}
	run := e.begin(ctx, req.Provider.Name, handle.JobID)

	sub := NewSubscriber(SubscriberConfig{
		Provider:  req.Provider,
		BaseURL:   e.cfg.BaseURL,
		Transport: transport,
		Surface:   req.Surface,
		Form:      req.Form,
		Logger:    e.logger,
		Malformed: e.cfg.Malformed,
		Changes:   req.Changes,
	})

	ui, err := sub.Run(ctx, handle)
	if ui.State.IsTerminal() {
		e.complete(context.WithoutCancel(ctx), run, ui)
	}
	return &ImportResult{Handle: handle, UI: ui, Run: run}, err
}

func (e *ImportEngine) transport(kind shared.TransportKind) (Transport, error) {
	if kind == "" {
		kind = shared.TransportSSE
	}
	if t, ok := e.cfg.Transports[kind]; ok {
		return t, nil
	}
	return NewTransport(kind, e.cfg.HTTPClient, e.cfg.Header)
}

func (e *ImportEngine) begin(ctx context.Context, provider, jobID string) *models.ImportRun {
	if e.cfg.Recorder == nil {
		return nil
	}
	run, err := e.cfg.Recorder.Begin(ctx, provider, jobID)
	if err != nil {
		e.logger.Warn("failed to record import run", "provider", provider, "error", err)
		return nil
	}
	return run
}

func (e *ImportEngine) complete(ctx context.Context, run *models.ImportRun, ui models.ProgressUIState) {
	if e.cfg.Recorder == nil || run == nil {
		return
	}
	if err := e.cfg.Recorder.Complete(ctx, run, ui); err != nil {
		e.logger.Warn("failed to record import outcome", "run", run.ID(), "error", err)
	}
}

func submissionFailure(err error) models.ProgressUIState {
	label := err.Error()
	var subErr *shared.JobSubmissionError
	if errors.As(err, &subErr) {
		label = subErr.Label()
	}
	return models.ProgressUIState{
		State:      models.StateFailed,
		PhaseLabel: failedLabel,
		ErrorLabel: errorLabel(label),
		Terminal:   models.TerminalFailure,
	}
}
