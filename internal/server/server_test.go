package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, sim SimulatorConfig) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(Config{Simulator: sim, Logger: log.New(io.Discard)})
	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return srv, ts
}

func submitLastFM(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	form := url.Values{"lastfm_username": {"rj"}, "lastfm_api_key": {"key"}}
	resp, err := http.PostForm(ts.URL+"/import/lastfm", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "started", body["status"])
	require.NotEmpty(t, body["job_id"])
	return body["job_id"]
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range files {
		part, err := w.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(part, content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func TestChiRouter(t *testing.T) {
	t.Run("applies middleware in the order added", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewRouter()
		r.Use(tag("first"), tag("second"))
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "pong")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		assert.Equal(t, "pong", rec.Body.String())
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("rejects other methods", func(t *testing.T) {
		r := NewRouter()
		r.Handle(http.MethodPost, "/submit", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/submit", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestRequireSession(t *testing.T) {
	srv := New(Config{SessionCookie: "session", Logger: log.New(io.Discard)})
	defer srv.Close()

	t.Run("missing cookie", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/import/lastfm", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Unauthorized\n", rec.Body.String())
	})

	t.Run("cookie present", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/import/lastfm", strings.NewReader("lastfm_username=rj&lastfm_api_key=k"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.AddCookie(&http.Cookie{Name: "session", Value: "s3cret"})

		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestSimulatorEvents(t *testing.T) {
	t.Run("current page script", func(t *testing.T) {
		sim := NewSimulator(SimulatorConfig{Pages: 3, TracksPerPage: 100}, log.New(io.Discard))
		events := sim.Events(CounterCurrentPage)

		require.Len(t, events, 4)
		for i, evt := range events[:3] {
			assert.Equal(t, i+1, *evt.CurrentPage)
			assert.Nil(t, evt.CompletedPages)
			assert.Equal(t, (i+1)*100, *evt.TracksImported)
		}
		last := events[3]
		assert.Equal(t, models.StatusCompleted, last.Status)
		assert.Equal(t, 300, *last.TracksImported)
	})

	t.Run("completed pages script starts at zero", func(t *testing.T) {
		sim := NewSimulator(SimulatorConfig{Pages: 2, TracksPerPage: 10}, log.New(io.Discard))
		events := sim.Events(CounterCompletedPages)

		require.Len(t, events, 4)
		assert.Equal(t, 0, *events[0].CompletedPages)
		pct, ok := events[0].Percent()
		assert.True(t, ok)
		assert.Equal(t, 0, pct)
		assert.Equal(t, models.StatusCompleted, events[3].Status)
	})

	t.Run("fail after", func(t *testing.T) {
		sim := NewSimulator(SimulatorConfig{Pages: 5, FailAfter: 2, FailMessage: "Invalid API key"}, log.New(io.Discard))
		events := sim.Events(CounterCurrentPage)

		require.Len(t, events, 3)
		assert.Equal(t, models.StatusError, events[2].Status)
		assert.Equal(t, "Invalid API key", events[2].Error)
	})

	t.Run("pages are at least one", func(t *testing.T) {
		sim := NewSimulator(SimulatorConfig{}, log.New(io.Discard))
		assert.Len(t, sim.Events(CounterCurrentPage), 2)
	})
}

func TestSimulatorRun(t *testing.T) {
	t.Run("cancellation removes the job", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create("lastfm")
		sim := NewSimulator(SimulatorConfig{Pages: 5, Delay: time.Hour}, log.New(io.Discard))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			sim.Run(ctx, store, job, CounterCurrentPage)
			close(done)
		}()
		cancel()

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("simulation did not stop")
		}
		assert.Equal(t, 0, store.Len())
	})

	t.Run("retain removes finished jobs", func(t *testing.T) {
		store := NewJobStore()
		job := store.Create("lastfm")
		sim := NewSimulator(SimulatorConfig{Pages: 1, Retain: 10 * time.Millisecond}, log.New(io.Discard))

		sim.Run(context.Background(), store, job, CounterCurrentPage)
		assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	})
}

func TestImportHandlerSubmit(t *testing.T) {
	_, ts := newTestServer(t, SimulatorConfig{Pages: 1})

	t.Run("lastfm returns a job id", func(t *testing.T) {
		submitLastFM(t, ts)
	})

	t.Run("lastfm missing fields", func(t *testing.T) {
		resp, err := http.PostForm(ts.URL+"/import/lastfm", url.Values{"lastfm_username": {"rj"}})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("unknown provider", func(t *testing.T) {
		resp, err := http.PostForm(ts.URL+"/import/deezer", url.Values{})
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("spotify uploads", func(t *testing.T) {
		body, ct := multipartBody(t, "json_files", map[string]string{"Streaming_History_0.json": `[]`})
		resp, err := http.Post(ts.URL+"/import/spotify", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("spotify without files", func(t *testing.T) {
		body, ct := multipartBody(t, "json_files", nil)
		resp, err := http.Post(ts.URL+"/import/spotify", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("spotify invalid json", func(t *testing.T) {
		body, ct := multipartBody(t, "json_files", map[string]string{"broken.json": `[{`})
		resp, err := http.Post(ts.URL+"/import/spotify", ct, body)
		require.NoError(t, err)
		defer resp.Body.Close()

		data, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Contains(t, string(data), "Invalid JSON in broken.json")
	})
}

func TestImportHandlerProgress(t *testing.T) {
	t.Run("streams the whole script and forgets the job", func(t *testing.T) {
		srv, ts := newTestServer(t, SimulatorConfig{Pages: 2, TracksPerPage: 100})
		jobID := submitLastFM(t, ts)

		resp, err := http.Get(ts.URL + "/import/lastfm/progress?job=" + jobID)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
		assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		want := "data: {\"status\":\"connected\"}\n\n" +
			"data: {\"status\":\"running\",\"total_pages\":2,\"current_page\":1,\"tracks_imported\":100}\n\n" +
			"data: {\"status\":\"running\",\"total_pages\":2,\"current_page\":2,\"tracks_imported\":200}\n\n" +
			"data: {\"status\":\"completed\",\"total_pages\":2,\"current_page\":2,\"tracks_imported\":200}\n\n"
		assert.Equal(t, want, string(body))
		assert.Equal(t, 0, srv.Jobs().Len())

		again, err := http.Get(ts.URL + "/import/lastfm/progress?job=" + jobID)
		require.NoError(t, err)
		defer again.Body.Close()
		assert.Equal(t, http.StatusNotFound, again.StatusCode)
	})

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"missing job id", "/import/lastfm/progress", http.StatusBadRequest},
		{"unknown job", "/import/lastfm/progress?job=nope", http.StatusNotFound},
		{"unknown provider", "/import/deezer/progress?job=nope", http.StatusNotFound},
	}
	_, ts := newTestServer(t, SimulatorConfig{Pages: 1})
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Get(ts.URL + tc.path)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}

	t.Run("job belongs to another provider", func(t *testing.T) {
		jobID := submitLastFM(t, ts)
		resp, err := http.Get(ts.URL + "/import/spotify/progress?job=" + jobID)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("one subscriber at a time", func(t *testing.T) {
		srv, ts := newTestServer(t, SimulatorConfig{Pages: 1})
		jobID := submitLastFM(t, ts)
		job, ok := srv.Jobs().Get(jobID)
		require.True(t, ok)
		require.True(t, job.claim())

		resp, err := http.Get(ts.URL + "/import/lastfm/progress?job=" + jobID)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})
}

func TestImportHandlerWebSocket(t *testing.T) {
	t.Run("text frames then a normal close", func(t *testing.T) {
		srv, ts := newTestServer(t, SimulatorConfig{Pages: 1, TracksPerPage: 50})
		jobID := submitLastFM(t, ts)

		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/import/lastfm/ws?job=" + jobID
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		defer conn.Close()

		var frames []string
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
				break
			}
			assert.Equal(t, websocket.TextMessage, kind)
			frames = append(frames, string(data))
		}

		assert.Equal(t, []string{
			`{"status":"connected"}`,
			`{"status":"running","total_pages":1,"current_page":1,"tracks_imported":50}`,
			`{"status":"completed","total_pages":1,"current_page":1,"tracks_imported":50}`,
		}, frames)
		assert.Equal(t, 0, srv.Jobs().Len())
	})

	t.Run("unknown job fails the handshake", func(t *testing.T) {
		_, ts := newTestServer(t, SimulatorConfig{Pages: 1})
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/import/lastfm/ws?job=missing"

		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	r := NewRouter()
	r.Use(RequestID, RequestLogger(logger))
	r.Handle(http.MethodGet, "/teapot", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

	out := buf.String()
	assert.Contains(t, out, "path=/teapot")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "request_id=")
}
