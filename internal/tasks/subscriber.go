package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
)

// MalformedPolicy decides what a subscriber does with a frame that is not a valid event.
type MalformedPolicy int

const (
	// SkipMalformed logs the frame and keeps the subscription open.
	SkipMalformed MalformedPolicy = iota
	// AbortOnMalformed closes the subscription and fails the run.
	AbortOnMalformed
)

// ParseMalformedPolicy maps "skip" or "abort" to a policy. Empty means skip.
func ParseMalformedPolicy(s string) (MalformedPolicy, error) {
	switch s {
	case "", "skip":
		return SkipMalformed, nil
	case "abort":
		return AbortOnMalformed, nil
	default:
		return SkipMalformed, fmt.Errorf("%w: malformed policy %q (want skip or abort)", shared.ErrInvalidArgument, s)
	}
}

// StateChange is published on every state transition.
type StateChange struct {
	JobID string
	From  models.State
	To    models.State
	UI    models.ProgressUIState
}

// SubscriberConfig holds the collaborators of one subscriber. Transport and Provider are required.
type SubscriberConfig struct {
	Provider  shared.ProviderConfig
	BaseURL   string
	Transport Transport
	Surface   surface.Surface
	// Form is reset on completion and released on any other terminal state.
	Form      *models.ImportForm
	Logger    *log.Logger
	Malformed MalformedPolicy
	// Changes receives state transitions; sends never block.
	Changes chan<- StateChange
}

// Subscriber follows the progress channel of a single job and drives a surface from it.
//
// A subscriber is single use: once it reaches a terminal state it ignores further events.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *log.Logger
	surf   surface.Surface

	mu     sync.Mutex
	ui     models.ProgressUIState
	jobID  string
	stream Stream
	closed bool
	err    error
}

// NewSubscriber creates an idle subscriber.
func NewSubscriber(cfg SubscriberConfig) *Subscriber {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	surf := cfg.Surface
	if surf == nil {
		surf = surface.Discard
	}
	return &Subscriber{
		cfg:    cfg,
		logger: shared.WithLogger(logger, "provider", cfg.Provider.Name),
		surf:   surf,
		ui:     models.ProgressUIState{State: models.StateIdle},
	}
}

// State returns the current state.
func (s *Subscriber) State() models.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui.State
}

// UI returns a copy of the current panel state.
func (s *Subscriber) UI() models.ProgressUIState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ui
}

// Err returns the terminal outcome: nil while running or after completion, otherwise an error
// matching [shared.ErrJobReported], [shared.ErrTransportDisconnected] or [shared.ErrMalformedProgress].
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Begin moves an idle subscriber to Subscribing for handle.
func (s *Subscriber) Begin(handle *models.JobHandle) error {
	if handle == nil || handle.JobID == "" {
		return fmt.Errorf("%w: job handle has no job id", shared.ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ui.State != models.StateIdle {
		return fmt.Errorf("%w: subscriber already %s", shared.ErrInvalidArgument, s.ui.State)
	}
	s.jobID = handle.JobID
	s.logger = shared.WithLogger(s.logger, "job_id", handle.JobID)
	s.transition(models.StateSubscribing)
	return nil
}

// Run subscribes to handle's progress channel and processes events until a terminal state or
// until ctx is done.
//
// The returned error is nil on completion. A cancelled context closes the stream, releases the
// form and returns ctx.Err() without a terminal state.
func (s *Subscriber) Run(ctx context.Context, handle *models.JobHandle) (models.ProgressUIState, error) {
	if s.cfg.Transport == nil {
		return s.UI(), fmt.Errorf("%w: subscriber has no transport", shared.ErrMissingArgument)
	}
	if err := s.Begin(handle); err != nil {
		return s.UI(), err
	}

	subURL, err := s.cfg.Provider.SubscriptionURL(s.cfg.BaseURL, handle.JobID)
	if err != nil {
		s.disconnect(err)
		return s.UI(), s.Err()
	}

	s.logger.Debug("opening progress subscription", "url", subURL)
	stream, err := s.cfg.Transport.Open(ctx, subURL)
	if err != nil {
		if ctx.Err() != nil {
			s.cancel()
			return s.UI(), ctx.Err()
		}
		s.disconnect(err)
		return s.UI(), s.Err()
	}
	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	for !s.State().IsTerminal() {
		data, err := stream.Next(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil && s.State().IsTerminal():
				return s.UI(), s.Err()
			case ctx.Err() != nil:
				s.cancel()
				return s.UI(), ctx.Err()
			case errors.Is(err, shared.ErrMalformedProgress):
				s.malformed(err)
			default:
				s.disconnect(err)
			}
			continue
		}
		_ = s.Handle(data)
	}

	return s.UI(), s.Err()
}

// Handle parses one frame and applies it. A malformed frame is handled according to the
// configured [MalformedPolicy] and the parse error is returned.
func (s *Subscriber) Handle(data []byte) error {
	evt, err := models.ParseProgressEvent(data)
	if err != nil {
		s.malformed(err)
		return err
	}
	s.Apply(*evt)
	return nil
}

// Apply folds one event into the panel. Events before [Subscriber.Begin] or after a terminal
// state are ignored.
func (s *Subscriber) Apply(evt models.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.ui.State == models.StateIdle:
		s.logger.Debug("ignoring event before subscription", "status", evt.Status)
		return
	case s.ui.State.IsTerminal():
		s.logger.Debug("ignoring event after terminal state", "state", s.ui.State, "status", evt.Status)
		return
	case evt.Status == models.StatusConnected:
		s.logger.Debug("progress channel connected")
		return
	}

	if s.ui.State == models.StateSubscribing {
		s.transition(models.StateRunning)
	}

	if pct, ok := evt.Percent(); ok {
		s.ui.Percent = pct
		s.ui.PhaseLabel = processingLabel(s.cfg.Provider.UnitLabel, evt.Numerator(), evt.Total())
		s.surf.SetFill(pct)
		s.surf.SetPercentText(surface.PercentText(pct))
		s.surf.SetStatus(s.ui.PhaseLabel)
	}

	if n, ok := evt.Tracks(); ok {
		s.ui.Tracks = n
		s.ui.TracksLabel = tracksLabel(n)
		s.surf.SetTracks(s.ui.TracksLabel)
	}

	switch evt.Status {
	case models.StatusCompleted:
		s.ui.PhaseLabel = completedLabel
		s.ui.Success = successLabel(s.ui.Tracks, s.cfg.Provider.DisplayName)
		s.surf.SetAnimating(false)
		s.surf.SetStatus(s.ui.PhaseLabel)
		s.surf.SetSuccess(s.ui.Success)
		s.closeStream()
		if s.cfg.Form != nil {
			s.cfg.Form.Reset()
		}
		s.transition(models.StateCompleted)
		s.logger.Info("import completed", "tracks", s.ui.Tracks)
	case models.StatusError:
		s.fail(errorLabel(evt.Error), &shared.JobReportedError{JobID: s.jobID, Message: evt.Error})
		s.logger.Error("import failed", "error", evt.Error)
	default:
		s.logger.Debug("progress", "percent", s.ui.Percent, "tracks", s.ui.Tracks, "status", evt.Status)
	}
}

func (s *Subscriber) malformed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ui.State.IsTerminal() {
		return
	}

	if s.cfg.Malformed == AbortOnMalformed {
		s.logger.Error("aborting on malformed progress message", "error", err)
		s.fail(errorLabel(malformedErrorLabel), err)
		return
	}
	s.logger.Warn("skipping malformed progress message", "error", err)
}

// fail moves to Failed. Callers hold s.mu.
func (s *Subscriber) fail(label string, err error) {
	s.ui.PhaseLabel = failedLabel
	s.ui.ErrorLabel = label
	s.surf.SetAnimating(false)
	s.surf.SetStatus(s.ui.PhaseLabel)
	s.surf.SetError(s.ui.ErrorLabel)
	s.closeStream()
	s.err = err
	if s.cfg.Form != nil {
		s.cfg.Form.Release()
	}
	s.transition(models.StateFailed)
}

func (s *Subscriber) disconnect(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ui.State.IsTerminal() {
		return
	}

	s.ui.PhaseLabel = connectionErrorLabel
	s.ui.ErrorLabel = lostConnectionLabel
	s.surf.SetAnimating(false)
	s.surf.SetStatus(s.ui.PhaseLabel)
	s.surf.SetError(s.ui.ErrorLabel)
	s.closeStream()
	s.err = &shared.TransportError{JobID: s.jobID, Err: cause}
	if s.cfg.Form != nil {
		s.cfg.Form.Release()
	}
	s.transition(models.StateDisconnected)
	s.logger.Warn("lost progress stream", "error", cause)
}

func (s *Subscriber) cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeStream()
	if s.cfg.Form != nil {
		s.cfg.Form.Release()
	}
	s.logger.Debug("subscription cancelled", "state", s.ui.State)
}

// closeStream closes the stream at most once. Callers hold s.mu.
func (s *Subscriber) closeStream() {
	if s.closed || s.stream == nil {
		return
	}
	s.closed = true
	if err := s.stream.Close(); err != nil {
		s.logger.Debug("closing progress stream", "error", err)
	}
}

// transition updates the state and publishes the change. Callers hold s.mu.
func (s *Subscriber) transition(to models.State) {
	from := s.ui.State
	s.ui.State = to
	s.ui.Terminal = to.Terminal()
	s.logger.Debug("state transition", "from", from, "to", to)
	s.sendChange(StateChange{JobID: s.jobID, From: from, To: to, UI: s.ui})
}

// sendChange sends a transition through the channel without blocking.
func (s *Subscriber) sendChange(change StateChange) {
	if s.cfg.Changes == nil {
		return
	}
	select {
	case s.cfg.Changes <- change:
	default:
	}
}
