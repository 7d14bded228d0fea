package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	maxFormMemory = 32 << 20
	maxUploads    = 30
	maxUploadSize = 32 << 20
)

// ProviderSpec describes what the backend expects for one provider's submissions.
type ProviderSpec struct {
	Name    string
	Counter Counter
	// RequiredFields must be present in a URL-encoded submission.
	RequiredFields []string
	// UploadField, when set, makes the provider accept multipart JSON uploads under that name.
	UploadField string
}

// DefaultProviders returns the Last.fm and Spotify import endpoints.
func DefaultProviders() []ProviderSpec {
	return []ProviderSpec{
		{Name: "lastfm", Counter: CounterCurrentPage, RequiredFields: []string{"lastfm_username", "lastfm_api_key"}},
		{Name: "spotify", Counter: CounterCompletedPages, UploadField: "json_files"},
	}
}

// ImportHandler serves job submission and progress streaming.
type ImportHandler struct {
	ctx       context.Context
	jobs      *JobStore
	sim       *Simulator
	providers map[string]ProviderSpec
	upgrader  websocket.Upgrader
	logger    *log.Logger
}

// NewImportHandler creates the handler. Simulations stop when ctx is cancelled.
func NewImportHandler(ctx context.Context, jobs *JobStore, sim *Simulator, providers []ProviderSpec, logger *log.Logger) *ImportHandler {
	byName := make(map[string]ProviderSpec, len(providers))
	for _, p := range providers {
		byName[p.Name] = p
	}
	return &ImportHandler{
		ctx:       ctx,
		jobs:      jobs,
		sim:       sim,
		providers: byName,
		upgrader:  websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:    logger,
	}
}

// Routes returns the import endpoints.
func (h *ImportHandler) Routes() []Route {
	return []Route{
		{Method: http.MethodPost, Pattern: "/import/{provider}", Handler: h.submit},
		{Method: http.MethodGet, Pattern: "/import/{provider}/progress", Handler: h.progress},
		{Method: http.MethodGet, Pattern: "/import/{provider}/ws", Handler: h.socket},
	}
}

func (h *ImportHandler) provider(w http.ResponseWriter, r *http.Request) (ProviderSpec, bool) {
	spec, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		http.Error(w, "Unknown provider", http.StatusNotFound)
	}
	return spec, ok
}

func (h *ImportHandler) submit(w http.ResponseWriter, r *http.Request) {
	spec, ok := h.provider(w, r)
	if !ok {
		return
	}

	if spec.UploadField != "" {
		if !h.validateUploads(w, r, spec.UploadField) {
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, field := range spec.RequiredFields {
			if r.FormValue(field) == "" {
				http.Error(w, "Missing required fields", http.StatusBadRequest)
				return
			}
		}
	}

	job := h.jobs.Create(spec.Name)
	go h.sim.Run(h.ctx, h.jobs, job, spec.Counter)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"job_id": job.ID,
		"status": "started",
	})
}

func (h *ImportHandler) validateUploads(w http.ResponseWriter, r *http.Request, field string) bool {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return false
	}

	uploads := r.MultipartForm.File[field]
	if len(uploads) < 1 {
		http.Error(w, "No files uploaded", http.StatusBadRequest)
		return false
	}
	if len(uploads) > maxUploads {
		http.Error(w, fmt.Sprintf("Too many files uploaded (%d max)", maxUploads), http.StatusBadRequest)
		return false
	}

	for _, u := range uploads {
		f, err := u.Open()
		if err != nil {
			http.Error(w, fmt.Sprintf("Error reading %s", u.Filename), http.StatusBadRequest)
			return false
		}
		data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
		f.Close()
		if err != nil || !json.Valid(data) {
			http.Error(w, fmt.Sprintf("Invalid JSON in %s", u.Filename), http.StatusBadRequest)
			return false
		}
	}
	return true
}

// subscribe resolves and claims the job named by the request, writing the error response when
// that is not possible.
func (h *ImportHandler) subscribe(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	spec, ok := h.provider(w, r)
	if !ok {
		return nil, false
	}

	jobID := r.URL.Query().Get("job")
	if jobID == "" {
		http.Error(w, "Missing job ID", http.StatusBadRequest)
		return nil, false
	}

	job, exists := h.jobs.Get(jobID)
	if !exists || job.Provider != spec.Name {
		http.Error(w, "Job not found", http.StatusNotFound)
		return nil, false
	}
	if !job.claim() {
		http.Error(w, "Job already has a subscriber", http.StatusConflict)
		return nil, false
	}
	return job, true
}

// stream writes the connected frame followed by the job's events until a terminal one, which also
// removes the job.
func (h *ImportHandler) stream(ctx context.Context, job *Job, send func([]byte) error) error {
	connected, _ := json.Marshal(models.ProgressEvent{Status: models.StatusConnected})
	if err := send(connected); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt := <-job.updates:
			data, err := json.Marshal(evt)
			if err != nil {
				continue
			}
			if err := send(data); err != nil {
				return err
			}
			if evt.Status.IsTerminal() {
				h.jobs.Remove(job.ID)
				return nil
			}
		}
	}
}

func (h *ImportHandler) progress(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	job, ok := h.subscribe(w, r)
	if !ok {
		return
	}
	defer job.release()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	err := h.stream(r.Context(), job, func(data []byte) error {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		h.logger.Debug("progress stream ended early", "job_id", job.ID, "error", err)
	}
}

func (h *ImportHandler) socket(w http.ResponseWriter, r *http.Request) {
	job, ok := h.subscribe(w, r)
	if !ok {
		return
	}
	defer job.release()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "job_id", job.ID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = h.stream(ctx, job, func(data []byte) error {
		return conn.WriteMessage(websocket.TextMessage, data)
	})
	if err != nil {
		h.logger.Debug("progress socket ended early", "job_id", job.ID, "error", err)
		return
	}
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "import finished"))
}
