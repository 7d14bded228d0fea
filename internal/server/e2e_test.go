package server

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/services"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
	"github.com/desertthunder/muzictl/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func provider(t *testing.T, name string) shared.ProviderConfig {
	t.Helper()
	p, err := shared.DefaultConfig().Provider(name)
	require.NoError(t, err)
	return p
}

func runImport(t *testing.T, baseURL string, req tasks.ImportRequest) (*tasks.ImportResult, error) {
	t.Helper()
	logger := log.New(io.Discard)
	engine := tasks.NewImportEngine(tasks.EngineConfig{
		Initiator: services.NewImportService(baseURL, nil, logger),
		BaseURL:   baseURL,
		Logger:    logger,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return engine.Import(ctx, req)
}

func TestEndToEnd(t *testing.T) {
	t.Run("lastfm over SSE", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 4, TracksPerPage: 250})
		panel := surface.NewPanel("lastfm")
		form := models.NewImportForm(url.Values{"lastfm_username": {"rj"}, "lastfm_api_key": {"key"}})

		res, err := runImport(t, ts.URL, tasks.ImportRequest{
			Provider: provider(t, "lastfm"),
			Form:     form,
			Surface:  panel,
		})
		require.NoError(t, err)

		assert.Equal(t, models.StateCompleted, res.UI.State)
		assert.Equal(t, 1000, res.UI.Tracks)

		snap := panel.Snapshot()
		assert.Equal(t, 100, snap.Fill)
		assert.Equal(t, "100%", snap.Percent)
		assert.Equal(t, "Import completed!", snap.Status)
		assert.Equal(t, "1,000 tracks imported", snap.Tracks)
		assert.Equal(t, "Successfully imported 1,000 tracks from Last.fm", snap.Success)
		assert.False(t, snap.Animating)
		assert.False(t, form.Busy())
	})

	t.Run("spotify over WebSocket", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 3, TracksPerPage: 10})
		p := provider(t, "spotify")
		p.Transport = shared.TransportWebSocket
		p.SubscriptionURLPrefix = "/import/spotify/ws?job="

		panel := surface.NewPanel("spotify")
		form := models.NewImportForm(nil, models.Upload{
			Field:    p.UploadField,
			Filename: "Streaming_History_Audio_2024.json",
			Content:  strings.NewReader(`[{"ts":"2024-01-01T00:00:00Z","ms_played":30000}]`),
		})

		res, err := runImport(t, ts.URL, tasks.ImportRequest{Provider: p, Form: form, Surface: panel})
		require.NoError(t, err)

		assert.Equal(t, models.StateCompleted, res.UI.State)
		assert.Equal(t, "Successfully imported 30 tracks from Spotify", panel.Snapshot().Success)
	})

	t.Run("reported error", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 4, TracksPerPage: 1, FailAfter: 1, FailMessage: "Invalid API key"})
		panel := surface.NewPanel("lastfm")
		form := models.NewImportForm(url.Values{"lastfm_username": {"rj"}, "lastfm_api_key": {"bad"}})

		res, err := runImport(t, ts.URL, tasks.ImportRequest{Provider: provider(t, "lastfm"), Form: form, Surface: panel})
		require.ErrorIs(t, err, shared.ErrJobReported)

		assert.Equal(t, models.StateFailed, res.UI.State)
		assert.Equal(t, "Import failed", panel.Snapshot().Status)
		assert.Equal(t, "Error: Invalid API key", panel.Snapshot().Error)
		assert.Equal(t, "rj", form.Fields.Get("lastfm_username"))
		assert.False(t, form.Busy())
	})

	t.Run("rejected submission", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 1})
		panel := surface.NewPanel("lastfm")
		form := models.NewImportForm(url.Values{"lastfm_username": {"rj"}})

		res, err := runImport(t, ts.URL, tasks.ImportRequest{Provider: provider(t, "lastfm"), Form: form, Surface: panel})
		require.ErrorIs(t, err, shared.ErrJobSubmission)

		assert.Equal(t, models.StateFailed, res.UI.State)
		assert.Equal(t, "Error: Failed to start import: Bad Request", panel.Snapshot().Error)
	})

	t.Run("watching a finished job disconnects", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 1})
		logger := log.New(io.Discard)
		engine := tasks.NewImportEngine(tasks.EngineConfig{BaseURL: ts.URL, Logger: logger})
		panel := surface.NewPanel("lastfm")

		res, err := engine.Watch(context.Background(), &models.JobHandle{JobID: "gone"}, tasks.ImportRequest{
			Provider: provider(t, "lastfm"),
			Surface:  panel,
		})
		require.ErrorIs(t, err, shared.ErrTransportDisconnected)

		assert.Equal(t, models.StateDisconnected, res.UI.State)
		assert.Equal(t, "Connection error", panel.Snapshot().Status)
	})
}
