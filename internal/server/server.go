// package server contains middleware & handlers for the simulated import backend
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// Route is one method + pattern served by a [Handler].
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
}

// Handler groups the routes of one feature so they can be registered together.
type Handler interface {
	Routes() []Route // Routes returns the method, pattern and handler for each endpoint
}

// Router defines the interface for HTTP routing and middleware management.
type Router interface {
	Use(middleware ...Middleware)                     // Use adds middleware to the router's middleware stack
	Handle(method, path string, handler http.Handler) // Handle registers a handler for the specified method and path
	Handler(handler Handler)                          // Handler registers every route of a [Handler]
	ServeHTTP(w http.ResponseWriter, r *http.Request) // ServeHTTP implements http.Handler for the entire router
}

// Config configures a [Server].
type Config struct {
	Addr string
	// SessionCookie, when set, is required on every import route.
	SessionCookie string
	Simulator     SimulatorConfig
	Providers     []ProviderSpec
	Logger        *log.Logger
}

// Server is the simulated import backend: it accepts submissions, runs a scripted import per job
// and streams its progress over SSE and WebSocket.
type Server struct {
	cfg    Config
	router *ChiRouter
	jobs   *JobStore
	logger *log.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New builds a server and registers its routes.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if len(cfg.Providers) == 0 {
		cfg.Providers = DefaultProviders()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:    cfg,
		router: NewRouter(),
		jobs:   NewJobStore(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	s.router.Use(RequestID, RequestLogger(logger), Recoverer)
	if cfg.SessionCookie != "" {
		s.router.Use(RequireSession(cfg.SessionCookie))
	}

	sim := NewSimulator(cfg.Simulator, logger)
	s.router.Handler(NewImportHandler(ctx, s.jobs, sim, cfg.Providers, logger))
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

// Jobs exposes the job store, mostly for tests.
func (s *Server) Jobs() *JobStore { return s.jobs }

// Close stops every running simulation.
func (s *Server) Close() { s.cancel() }

// ListenAndServe serves on cfg.Addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("simulated import backend listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
