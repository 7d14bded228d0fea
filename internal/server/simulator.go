package server

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/muzictl/internal/models"
)

// Counter names the progress field a provider advances.
type Counter string

const (
	// CounterCurrentPage reports the page being fetched (Last.fm style).
	CounterCurrentPage Counter = "current_page"
	// CounterCompletedPages reports finished batches alongside the current one (Spotify style).
	CounterCompletedPages Counter = "completed_pages"
)

// SimulatorConfig shapes the scripted import every job runs.
type SimulatorConfig struct {
	Pages         int
	TracksPerPage int
	Delay         time.Duration
	// FailAfter ends the job with an error event after that many ticks. Zero never fails.
	FailAfter   int
	FailMessage string
	// Retain keeps a finished job subscribable for this long. Zero keeps it until a subscriber
	// has received its terminal event.
	Retain time.Duration
}

// DefaultSimulatorConfig is what `dev serve` runs with.
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Pages:         10,
		TracksPerPage: 200,
		Delay:         250 * time.Millisecond,
		FailMessage:   "upstream API returned an error",
		Retain:        time.Minute,
	}
}

// Simulator plays a scripted import into a job's update channel.
type Simulator struct {
	cfg    SimulatorConfig
	logger *log.Logger
}

// NewSimulator creates a simulator. Pages below one are treated as one.
func NewSimulator(cfg SimulatorConfig, logger *log.Logger) *Simulator {
	if cfg.Pages < 1 {
		cfg.Pages = 1
	}
	if cfg.TracksPerPage < 0 {
		cfg.TracksPerPage = 0
	}
	if cfg.FailMessage == "" {
		cfg.FailMessage = DefaultSimulatorConfig().FailMessage
	}
	return &Simulator{cfg: cfg, logger: logger}
}

// Events returns the full script for one job advancing counter.
func (s *Simulator) Events(counter Counter) []models.ProgressEvent {
	total := s.cfg.Pages
	events := make([]models.ProgressEvent, 0, total+2)

	if counter == CounterCompletedPages {
		events = append(events, s.tick(counter, 0))
	}
	for page := 1; page <= total; page++ {
		if s.cfg.FailAfter > 0 && page > s.cfg.FailAfter {
			return append(events, models.ProgressEvent{Status: models.StatusError, Error: s.cfg.FailMessage})
		}
		events = append(events, s.tick(counter, page))
	}

	done := s.tick(counter, total)
	done.Status = models.StatusCompleted
	return append(events, done)
}

func (s *Simulator) tick(counter Counter, page int) models.ProgressEvent {
	evt := models.ProgressEvent{
		Status:         "running",
		TotalPages:     models.Int(s.cfg.Pages),
		CurrentPage:    models.Int(page),
		TracksImported: models.Int(page * s.cfg.TracksPerPage),
	}
	if counter == CounterCompletedPages {
		evt.CompletedPages = models.Int(page)
	}
	return evt
}

// Run sends the script for job, pausing cfg.Delay between events, then schedules the job's
// removal from store when cfg.Retain is set.
func (s *Simulator) Run(ctx context.Context, store *JobStore, job *Job, counter Counter) {
	logger := s.logger.With("job_id", job.ID, "provider", job.Provider)
	logger.Info("simulated import started", "pages", s.cfg.Pages)

	for i, evt := range s.Events(counter) {
		if i > 0 && s.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				store.Remove(job.ID)
				return
			case <-time.After(s.cfg.Delay):
			}
		}

		select {
		case job.updates <- evt:
		case <-ctx.Done():
			store.Remove(job.ID)
			return
		}
	}

	logger.Info("simulated import finished")
	if s.cfg.Retain > 0 {
		time.AfterFunc(s.cfg.Retain, func() { store.Remove(job.ID) })
	}
}
