package models

import (
	"fmt"
	"time"
)

var _ Model = (*ImportRun)(nil)

// ImportRun records one import submitted from this client and how it ended.
type ImportRun struct {
	id             string
	sequence       int
	provider       string
	jobID          string
	state          State
	percent        int
	tracksImported int
	errorMessage   string
	startedAt      *time.Time
	finishedAt     *time.Time
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// NewImportRun creates an idle run for provider.
func NewImportRun(sequence int, provider string) *ImportRun {
	now := time.Now()
	return &ImportRun{
		sequence:  sequence,
		provider:  provider,
		state:     StateIdle,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *ImportRun) ID() string                 { return r.id }
func (r *ImportRun) Sequence() int              { return r.sequence }
func (r *ImportRun) Provider() string           { return r.provider }
func (r *ImportRun) JobID() string              { return r.jobID }
func (r *ImportRun) State() State               { return r.state }
func (r *ImportRun) Percent() int               { return r.percent }
func (r *ImportRun) TracksImported() int        { return r.tracksImported }
func (r *ImportRun) ErrorMessage() string       { return r.errorMessage }
func (r *ImportRun) StartedAt() *time.Time      { return r.startedAt }
func (r *ImportRun) FinishedAt() *time.Time     { return r.finishedAt }
func (r *ImportRun) CreatedAt() time.Time       { return r.createdAt }
func (r *ImportRun) UpdatedAt() time.Time       { return r.updatedAt }
func (r *ImportRun) DeletedAt() *time.Time      { return r.deletedAt }
func (r *ImportRun) SetID(id string)            { r.id = id }
func (r *ImportRun) SetSequence(seq int)        { r.sequence = seq }
func (r *ImportRun) SetJobID(jobID string)      { r.jobID = jobID }
func (r *ImportRun) SetState(s State)           { r.state = s }
func (r *ImportRun) SetPercent(p int)           { r.percent = p }
func (r *ImportRun) SetTracksImported(n int)    { r.tracksImported = n }
func (r *ImportRun) SetErrorMessage(m string)   { r.errorMessage = m }
func (r *ImportRun) SetStartedAt(t *time.Time)  { r.startedAt = t }
func (r *ImportRun) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *ImportRun) SetCreatedAt(t time.Time)   { r.createdAt = t }
func (r *ImportRun) SetUpdatedAt(t time.Time)   { r.updatedAt = t }
func (r *ImportRun) SetDeletedAt(t *time.Time)  { r.deletedAt = t }

// Finish copies the final panel state into the run.
func (r *ImportRun) Finish(ui ProgressUIState, at time.Time) {
	r.state = ui.State
	r.percent = ui.Percent
	r.tracksImported = ui.Tracks
	r.errorMessage = ui.ErrorLabel
	r.finishedAt = &at
}

// Duration is the time between start and finish, or zero if either is unknown.
func (r *ImportRun) Duration() time.Duration {
	if r.startedAt == nil || r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(*r.startedAt)
}

// Validate checks required fields and value ranges.
func (r *ImportRun) Validate() error {
	if r.provider == "" {
		return fmt.Errorf("provider is required")
	}
	if r.percent < 0 || r.percent > 100 {
		return fmt.Errorf("percent out of range: %d", r.percent)
	}
	if r.tracksImported < 0 {
		return fmt.Errorf("tracks imported cannot be negative")
	}
	if r.state.IsTerminal() && r.finishedAt == nil {
		return fmt.Errorf("finished_at is required for %s runs", r.state)
	}
	return nil
}
