package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
	"github.com/desertthunder/muzictl/internal/surface"
)

// SessionCookie is the cookie the import backend authenticates requests with.
const SessionCookie = "session"

const maxHandleBytes = 1 << 20

// ImportService posts import forms to the backend at baseURL.
type ImportService struct {
	baseURL    string
	session    string
	httpClient *http.Client
	logger     *log.Logger
}

// NewImportService creates an import service. A nil client uses [http.DefaultClient] and a nil
// logger discards output.
func NewImportService(baseURL string, client *http.Client, logger *log.Logger) *ImportService {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ImportService{baseURL: baseURL, httpClient: client, logger: logger}
}

// WithSession sets the session cookie sent with every submission.
func (s *ImportService) WithSession(session string) *ImportService {
	s.session = session
	return s
}

// BaseURL returns the backend base URL that relative endpoints are resolved against.
func (s *ImportService) BaseURL() string { return s.baseURL }

// Submit implements [Initiator].
func (s *ImportService) Submit(ctx context.Context, form *models.ImportForm, provider shared.ProviderConfig, surf surface.Surface) (*models.JobHandle, error) {
	if form == nil {
		return nil, fmt.Errorf("%w: form is required", shared.ErrMissingArgument)
	}
	if surf == nil {
		surf = surface.Discard
	}
	if err := form.Acquire(); err != nil {
		return nil, err
	}

	logger := shared.WithLogger(s.logger, "provider", provider.Name)
	surface.Reset(surf)

	handle, err := s.submit(ctx, form, provider)
	if err != nil {
		logger.Error("import submission failed", "error", err)
		showSubmissionFailure(surf, err)
		form.Release()
		return nil, err
	}

	logger.Info("import started", "job_id", handle.JobID)
	return handle, nil
}

func (s *ImportService) submit(ctx context.Context, form *models.ImportForm, provider shared.ProviderConfig) (*models.JobHandle, error) {
	endpoint, err := provider.EndpointURL(s.baseURL)
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: err}
	}

	body, contentType, err := encodeForm(provider.Encoding, form)
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: s.session})
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &shared.JobSubmissionError{StatusCode: resp.StatusCode, Status: statusText(resp)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxHandleBytes))
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	handle, err := models.ParseJobHandle(data)
	if err != nil {
		return nil, &shared.JobSubmissionError{Err: err}
	}
	return handle, nil
}

// statusText returns the server's reason phrase without the numeric code, falling back to the
// standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text != "" {
		return text
	}
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strconv.Itoa(resp.StatusCode)
}

func showSubmissionFailure(surf surface.Surface, err error) {
	label := err.Error()
	var subErr *shared.JobSubmissionError
	if errors.As(err, &subErr) {
		label = subErr.Label()
	}
	surf.SetAnimating(false)
	surf.SetStatus("Import failed")
	surf.SetError("Error: " + label)
}
