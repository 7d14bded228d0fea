package tasks

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
	tu "github.com/desertthunder/muzictl/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	stream *tu.ScriptedStream
	err    error

	mu     sync.Mutex
	opened []string
}

func (t *scriptedTransport) Open(ctx context.Context, rawURL string) (Stream, error) {
	t.mu.Lock()
	t.opened = append(t.opened, rawURL)
	t.mu.Unlock()
	if t.err != nil {
		return nil, t.err
	}
	return t.stream, nil
}

func (t *scriptedTransport) Opened() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.opened...)
}

func spotify() shared.ProviderConfig {
	return shared.ProviderConfig{
		Name:                  "spotify",
		Endpoint:              "/import/spotify",
		SubscriptionURLPrefix: "/import/spotify/progress?job=",
		DisplayName:           "Spotify",
		UnitLabel:             "batch",
		Encoding:              shared.EncodingMultipart,
		Transport:             shared.TransportSSE,
		PanelPrefix:           "spotify",
	}
}

func lastfm() shared.ProviderConfig {
	return shared.ProviderConfig{
		Name:                  "lastfm",
		Endpoint:              "/import/lastfm",
		SubscriptionURLPrefix: "/import/lastfm/progress?job=",
		DisplayName:           "Last.fm",
		UnitLabel:             "page",
		Encoding:              shared.EncodingURLEncoded,
		Transport:             shared.TransportSSE,
		PanelPrefix:           "lastfm",
	}
}

type fixture struct {
	sub       *Subscriber
	panel     *surface.Panel
	form      *models.ImportForm
	stream    *tu.ScriptedStream
	transport *scriptedTransport
	changes   chan StateChange
}

func newFixture(t *testing.T, provider shared.ProviderConfig, policy MalformedPolicy, frames ...string) *fixture {
	t.Helper()
	stream := tu.NewScriptedStream(frames...)
	f := &fixture{
		panel:     surface.NewPanel(provider.PanelPrefix),
		form:      models.NewImportForm(url.Values{"field": {"value"}}),
		stream:    stream,
		transport: &scriptedTransport{stream: stream},
		changes:   make(chan StateChange, 16),
	}
	require.NoError(t, f.form.Acquire())
	surface.Reset(f.panel)

	f.sub = NewSubscriber(SubscriberConfig{
		Provider:  provider,
		BaseURL:   "http://localhost:1234",
		Transport: f.transport,
		Surface:   f.panel,
		Form:      f.form,
		Malformed: policy,
		Changes:   f.changes,
	})
	return f
}

func (f *fixture) transitions() []models.State {
	var out []models.State
	for {
		select {
		case c := <-f.changes:
			out = append(out, c.To)
		default:
			return out
		}
	}
}

func TestSubscriberRun(t *testing.T) {
	t.Run("abc123 scenario", func(t *testing.T) {
		f := newFixture(t, spotify(), SkipMalformed,
			`{"status":"connected"}`,
			`{"total_pages":10,"completed_pages":4,"tracks_imported":120}`,
		)

		// Pause after the tick to inspect the intermediate panel.
		f.stream.Hang = true
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = f.sub.Run(ctx, &models.JobHandle{JobID: "abc123"})
		}()

		require.Eventually(t, func() bool { return f.sub.UI().Percent == 40 }, time.Second, 5*time.Millisecond)
		snap := f.panel.Snapshot()
		assert.Equal(t, 40, snap.Fill)
		assert.Equal(t, "40%", snap.Percent)
		assert.Equal(t, "Processing batch 4 of 10", snap.Status)
		assert.Equal(t, "120 tracks imported", snap.Tracks)
		assert.Equal(t, models.StateRunning, f.sub.State())
		assert.Equal(t, []string{"http://localhost:1234/import/spotify/progress?job=abc123"}, f.transport.Opened())

		// The terminal event arrives through Handle on the same subscriber.
		require.NoError(t, f.sub.Handle([]byte(`{"status":"completed","tracks_imported":500}`)))
		cancel()
		<-done

		snap = f.panel.Snapshot()
		assert.Equal(t, models.StateCompleted, f.sub.State())
		assert.Equal(t, "Import completed!", snap.Status)
		assert.Equal(t, "Successfully imported 500 tracks from Spotify", snap.Success)
		assert.Equal(t, "500 tracks imported", snap.Tracks)
		assert.Empty(t, snap.Error)
		assert.False(t, snap.Animating)
		assert.Equal(t, 1, f.stream.Closes())
		assert.False(t, f.form.Busy())
		assert.Empty(t, f.form.Fields, "completion resets the form")
		assert.NoError(t, f.sub.Err())
		assert.Equal(t, models.TerminalSuccess, f.sub.UI().Terminal)
	})

	t.Run("completes from the stream", func(t *testing.T) {
		f := newFixture(t, spotify(), SkipMalformed,
			`{"status":"connected"}`,
			`{"total_pages":10,"completed_pages":4,"tracks_imported":120}`,
			`{"total_pages":10,"completed_pages":10,"tracks_imported":1500}`,
			`{"status":"completed","tracks_imported":1500}`,
			`{"total_pages":10,"completed_pages":1}`,
		)

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "abc123"})
		require.NoError(t, err)

		assert.Equal(t, models.StateCompleted, ui.State)
		assert.Equal(t, 100, ui.Percent)
		assert.Equal(t, 1500, ui.Tracks)
		assert.Equal(t, "Successfully imported 1,500 tracks from Spotify", ui.Success)
		assert.Equal(t, 100, f.panel.Snapshot().Fill)
		assert.Equal(t, 4, f.stream.Delivered(), "nothing is read after the terminal event")
		assert.Equal(t, 1, f.stream.Closes())
		assert.Equal(t, []models.State{models.StateSubscribing, models.StateRunning, models.StateCompleted}, f.transitions())
	})

	t.Run("server reported error", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed,
			`{"current_page":2,"total_pages":5,"tracks_imported":400}`,
			`{"status":"error","error":"invalid API key"}`,
		)

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j1"})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrJobReported)
		assert.False(t, errors.Is(err, shared.ErrTransportDisconnected))

		var reported *shared.JobReportedError
		require.ErrorAs(t, err, &reported)
		assert.Equal(t, "invalid API key", reported.Message)
		assert.Equal(t, "j1", reported.JobID)

		snap := f.panel.Snapshot()
		assert.Equal(t, models.StateFailed, ui.State)
		assert.Equal(t, models.TerminalFailure, ui.Terminal)
		assert.Equal(t, "Import failed", snap.Status)
		assert.Equal(t, "Error: invalid API key", snap.Error)
		assert.Equal(t, 40, snap.Fill)
		assert.Empty(t, snap.Success)
		assert.False(t, snap.Animating)
		assert.Equal(t, 1, f.stream.Closes())
		assert.False(t, f.form.Busy())
		assert.Equal(t, "value", f.form.Fields.Get("field"), "a failed run keeps the form values")
	})

	t.Run("server error without details", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed, `{"status":"error"}`)

		_, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j1"})
		assert.ErrorIs(t, err, shared.ErrJobReported)
		assert.Equal(t, "Error: Unknown error", f.panel.Snapshot().Error)
	})

	t.Run("stream ends without terminal event", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed,
			`{"status":"connected"}`,
			`{"current_page":1,"total_pages":3}`,
		)

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j2"})
		require.Error(t, err)
		assert.ErrorIs(t, err, shared.ErrTransportDisconnected)
		assert.False(t, errors.Is(err, shared.ErrJobReported))

		snap := f.panel.Snapshot()
		assert.Equal(t, models.StateDisconnected, ui.State)
		assert.Equal(t, models.TerminalTransportError, ui.Terminal)
		assert.Equal(t, "Connection error", snap.Status)
		assert.Contains(t, snap.Error, "may still be running")
		assert.Equal(t, 33, snap.Fill)
		assert.False(t, snap.Animating)
		assert.Equal(t, 1, f.stream.Closes())
		assert.False(t, f.form.Busy())
	})

	t.Run("subscription refused", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed)
		f.transport.err = &subscriptionError{StatusCode: 404, Status: "Not Found"}

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "gone"})
		assert.ErrorIs(t, err, shared.ErrTransportDisconnected)
		assert.Equal(t, models.StateDisconnected, ui.State)
		assert.Equal(t, 0, f.stream.Closes())
		assert.Equal(t, []models.State{models.StateSubscribing, models.StateDisconnected}, f.transitions())
	})

	t.Run("malformed frames are skipped", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed,
			`not json`,
			`{"total_pages":4,"current_page":-1}`,
			`{"total_pages":4,"completed_pages":2}`,
			`{"status":"completed","tracks_imported":9}`,
		)

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j3"})
		require.NoError(t, err)
		assert.Equal(t, models.StateCompleted, ui.State)
		assert.Equal(t, 50, ui.Percent)
	})

	t.Run("malformed frame aborts", func(t *testing.T) {
		f := newFixture(t, lastfm(), AbortOnMalformed,
			`{"total_pages":4,"completed_pages":1}`,
			`{oops`,
			`{"status":"completed"}`,
		)

		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j4"})
		assert.ErrorIs(t, err, shared.ErrMalformedProgress)
		assert.Equal(t, models.StateFailed, ui.State)
		assert.Equal(t, "Error: malformed progress message", f.panel.Snapshot().Error)
		assert.Equal(t, 2, f.stream.Delivered())
		assert.Equal(t, 1, f.stream.Closes())
	})

	t.Run("malformed stream error follows the policy", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed, `{"total_pages":2,"completed_pages":1}`)
		f.stream.End = &shared.MalformedProgressError{Err: errors.New("binary frame")}
		f.sub.cfg.Malformed = AbortOnMalformed
		ui, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j5"})
		assert.ErrorIs(t, err, shared.ErrMalformedProgress)
		assert.Equal(t, models.StateFailed, ui.State)
	})

	t.Run("context cancellation closes without a terminal state", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed, `{"total_pages":2,"completed_pages":1}`)
		f.stream.Hang = true

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-time.After(20 * time.Millisecond)
			cancel()
		}()

		ui, err := f.sub.Run(ctx, &models.JobHandle{JobID: "j6"})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, models.StateRunning, ui.State)
		assert.Equal(t, 1, f.stream.Closes())
		assert.False(t, f.form.Busy())
		assert.NoError(t, f.sub.Err())
	})

	t.Run("subscriber is single use", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed, `{"status":"completed"}`)

		_, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "j7"})
		require.NoError(t, err)

		_, err = f.sub.Run(context.Background(), &models.JobHandle{JobID: "j8"})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Len(t, f.transport.Opened(), 1)
	})

	t.Run("missing job id", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed)
		_, err := f.sub.Run(context.Background(), &models.JobHandle{})
		assert.ErrorIs(t, err, shared.ErrInvalidArgument)
		assert.Equal(t, models.StateIdle, f.sub.State())
		assert.Empty(t, f.transport.Opened())
	})

	t.Run("job id is escaped", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed, `{"status":"completed"}`)
		_, err := f.sub.Run(context.Background(), &models.JobHandle{JobID: "a b&c"})
		require.NoError(t, err)
		assert.Equal(t, []string{"http://localhost:1234/import/lastfm/progress?job=a+b%26c"}, f.transport.Opened())
	})
}

func TestSubscriberApply(t *testing.T) {
	begin := func(t *testing.T, provider shared.ProviderConfig) *fixture {
		f := newFixture(t, provider, SkipMalformed)
		require.NoError(t, f.sub.Begin(&models.JobHandle{JobID: "job"}))
		return f
	}

	t.Run("completed pages take precedence", func(t *testing.T) {
		f := begin(t, lastfm())
		require.NoError(t, f.sub.Handle([]byte(`{"completed_pages":3,"current_page":1,"total_pages":4}`)))

		assert.Equal(t, 75, f.sub.UI().Percent)
		assert.Equal(t, "75%", f.panel.Snapshot().Percent)
		assert.Equal(t, "Processing page 3 of 4", f.panel.Snapshot().Status)
	})

	t.Run("zero or absent total keeps the previous percentage", func(t *testing.T) {
		f := begin(t, lastfm())
		f.sub.Apply(models.ProgressEvent{TotalPages: models.Int(4), CompletedPages: models.Int(1)})
		require.Equal(t, 25, f.panel.Snapshot().Fill)

		f.sub.Apply(models.ProgressEvent{TotalPages: models.Int(0), CompletedPages: models.Int(3)})
		f.sub.Apply(models.ProgressEvent{CurrentPage: models.Int(3), TracksImported: models.Int(10)})

		snap := f.panel.Snapshot()
		assert.Equal(t, 25, snap.Fill)
		assert.Equal(t, "25%", snap.Percent)
		assert.Equal(t, "Processing page 1 of 4", snap.Status)
		assert.Equal(t, "10 tracks imported", snap.Tracks)
	})

	t.Run("connected is ignored", func(t *testing.T) {
		f := begin(t, lastfm())
		f.sub.Apply(models.ProgressEvent{Status: models.StatusConnected})

		assert.Equal(t, models.StateSubscribing, f.sub.State())
		assert.Equal(t, "Starting import...", f.panel.Snapshot().Status)
	})

	t.Run("unknown statuses are ticks", func(t *testing.T) {
		f := begin(t, lastfm())
		for _, status := range []models.Status{"", "running", "paused", "COMPLETED", "Error"} {
			f.sub.Apply(models.ProgressEvent{Status: status, TotalPages: models.Int(2), CurrentPage: models.Int(1)})
			assert.Equal(t, models.StateRunning, f.sub.State())
		}

		snap := f.panel.Snapshot()
		assert.Empty(t, snap.Error)
		assert.Empty(t, snap.Success)
		assert.True(t, snap.Animating)
		assert.Equal(t, models.TerminalNone, f.sub.UI().Terminal)
	})

	t.Run("completion without tracks uses the last known count", func(t *testing.T) {
		f := begin(t, lastfm())
		f.sub.Apply(models.ProgressEvent{TracksImported: models.Int(2048)})
		f.sub.Apply(models.ProgressEvent{Status: models.StatusCompleted})

		assert.Equal(t, "Successfully imported 2,048 tracks from Last.fm", f.panel.Snapshot().Success)
	})

	t.Run("events after a terminal state are ignored", func(t *testing.T) {
		f := begin(t, lastfm())
		f.sub.Apply(models.ProgressEvent{Status: models.StatusError, Error: "quota"})
		f.sub.Apply(models.ProgressEvent{Status: models.StatusCompleted, TracksImported: models.Int(5)})
		f.sub.Apply(models.ProgressEvent{TotalPages: models.Int(2), CompletedPages: models.Int(2)})

		snap := f.panel.Snapshot()
		assert.Equal(t, models.StateFailed, f.sub.State())
		assert.Empty(t, snap.Success)
		assert.Equal(t, 0, snap.Fill)
	})

	t.Run("events before Begin are ignored", func(t *testing.T) {
		f := newFixture(t, lastfm(), SkipMalformed)
		f.sub.Apply(models.ProgressEvent{TotalPages: models.Int(2), CompletedPages: models.Int(1)})

		assert.Equal(t, models.StateIdle, f.sub.State())
		assert.Equal(t, 0, f.panel.Snapshot().Fill)
	})

	t.Run("Handle returns parse errors", func(t *testing.T) {
		f := begin(t, lastfm())
		err := f.sub.Handle([]byte(`[]`))
		assert.ErrorIs(t, err, shared.ErrMalformedProgress)
		assert.Equal(t, models.StateSubscribing, f.sub.State())
	})

	t.Run("state changes never block", func(t *testing.T) {
		sub := NewSubscriber(SubscriberConfig{
			Provider: lastfm(),
			Changes:  make(chan StateChange),
		})
		require.NoError(t, sub.Begin(&models.JobHandle{JobID: "job"}))
		sub.Apply(models.ProgressEvent{Status: models.StatusCompleted})
		assert.Equal(t, models.StateCompleted, sub.State())
	})
}

func TestParseMalformedPolicy(t *testing.T) {
	for in, want := range map[string]MalformedPolicy{"": SkipMalformed, "skip": SkipMalformed, "abort": AbortOnMalformed} {
		got, err := ParseMalformedPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMalformedPolicy("retry")
	assert.ErrorIs(t, err, shared.ErrInvalidArgument)
}
