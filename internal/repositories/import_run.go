package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/muzictl/internal/models"
	"github.com/desertthunder/muzictl/internal/shared"
)

var _ models.Repository[*models.ImportRun] = (*ImportRunRepository)(nil)

const importRunColumns = `
	id, sequence, provider, job_id, state, percent, tracks_imported,
	error_message, started_at, finished_at, created_at, updated_at, deleted_at`

// ImportRunRepository implements models.Repository[*models.ImportRun] for the local import history.
//
// Handles run CRUD operations with soft delete support and provider/state queries.
type ImportRunRepository struct {
	db *sql.DB
}

// NewImportRunRepository creates a new ImportRunRepository with the given database connection
func NewImportRunRepository(db *sql.DB) *ImportRunRepository {
	return &ImportRunRepository{db: db}
}

// Create inserts a new run into the database with generated ID and sequence
func (r *ImportRunRepository) Create(run *models.ImportRun) error {
	sequence, err := NextSequence(r.db, "import_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO import_runs (
			id, sequence, provider, job_id, state, percent, tracks_imported,
			error_message, started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		run.Provider(),
		nullString(run.JobID()),
		run.State().String(),
		run.Percent(),
		run.TracksImported(),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert import run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *ImportRunRepository) Get(id string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE id = ? AND deleted_at IS NULL`
	return r.scan(r.db.QueryRow(query, id))
}

// GetByJobID retrieves the most recent run for a server job
func (r *ImportRunRepository) GetByJobID(jobID string) (*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + `
		FROM import_runs
		WHERE job_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC
		LIMIT 1`
	return r.scan(r.db.QueryRow(query, jobID))
}

// Update modifies an existing run in the database
func (r *ImportRunRepository) Update(run *models.ImportRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	query := `
		UPDATE import_runs
		SET job_id = ?, state = ?, percent = ?, tracks_imported = ?, error_message = ?,
			started_at = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		nullString(run.JobID()),
		run.State().String(),
		run.Percent(),
		run.TracksImported(),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update import run: %w", err)
	}

	return expectOneRow(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *ImportRunRepository) Delete(id string) error {
	query := `
		UPDATE import_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete import run: %w", err)
	}

	return expectOneRow(result, id)
}

// List retrieves runs matching the given criteria, newest first, excluding soft-deleted runs.
//
// Supported criteria: "provider" (string), "state" (string), "job_id" (string), "limit" (int).
func (r *ImportRunRepository) List(criteria map[string]any) ([]*models.ImportRun, error) {
	query := `SELECT ` + importRunColumns + ` FROM import_runs WHERE deleted_at IS NULL`
	args := []any{}

	for _, key := range []string{"provider", "state", "job_id"} {
		if v, ok := criteria[key].(string); ok && v != "" {
			query += " AND " + key + " = ?"
			args = append(args, v)
		}
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query import runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ImportRun
	for rows.Next() {
		run, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scan reads one row into a [models.ImportRun]
func (r *ImportRunRepository) scan(row scanner) (*models.ImportRun, error) {
	var (
		id             string
		sequence       int
		provider       string
		jobID          sql.NullString
		state          string
		percent        int
		tracksImported int
		errorMessage   sql.NullString
		startedAt      sql.NullTime
		finishedAt     sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &provider, &jobID, &state, &percent, &tracksImported,
		&errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan import run: %w", err)
	}

	run := models.NewImportRun(sequence, provider)
	run.SetID(id)
	run.SetJobID(jobID.String)
	run.SetState(models.ParseState(state))
	run.SetPercent(percent)
	run.SetTracksImported(tracksImported)
	run.SetErrorMessage(errorMessage.String)
	run.SetStartedAt(timePtr(startedAt))
	run.SetFinishedAt(timePtr(finishedAt))
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	run.SetDeletedAt(timePtr(deletedAt))

	return run, nil
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
