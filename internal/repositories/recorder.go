package repositories

import (
	"context"
	"time"

	"github.com/desertthunder/muzictl/internal/models"
)

// RunRecorder stores import runs as they start and finish. It satisfies tasks.RunRecorder.
type RunRecorder struct {
	runs *ImportRunRepository
	now  func() time.Time
}

// NewRunRecorder creates a recorder backed by repo.
func NewRunRecorder(repo *ImportRunRepository) *RunRecorder {
	return &RunRecorder{runs: repo, now: time.Now}
}

// Begin creates a run in the subscribing state, or idle when there is no job yet.
func (rr *RunRecorder) Begin(ctx context.Context, provider, jobID string) (*models.ImportRun, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	run := models.NewImportRun(0, provider)
	run.SetJobID(jobID)
	if jobID != "" {
		run.SetState(models.StateSubscribing)
	}
	started := rr.now()
	run.SetStartedAt(&started)

	if err := rr.runs.Create(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Complete copies the final panel state into run and saves it.
func (rr *RunRecorder) Complete(ctx context.Context, run *models.ImportRun, ui models.ProgressUIState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.Finish(ui, rr.now())
	return rr.runs.Update(run)
}
