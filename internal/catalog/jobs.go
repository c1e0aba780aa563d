package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const jobColumns = `job_id, video_id, status, current_stage, progress,
	message, error_code, error_message, created_at_ms, updated_at_ms`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	err := row.Scan(&j.JobID, &j.VideoID, &j.Status, &j.CurrentStage, &j.Progress,
		&j.Message, &j.ErrorCode, &j.ErrorMessage, &j.CreatedAtMs, &j.UpdatedAtMs)
	return j, err
}

func (s *Store) CreateJob(ctx context.Context, j *Job) error {
	now := nowMs()
	j.CreatedAtMs = now
	j.UpdatedAtMs = now
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.JobID, j.VideoID, j.Status, j.CurrentStage, j.Progress,
		j.Message, j.ErrorCode, j.ErrorMessage, j.CreatedAtMs, j.UpdatedAtMs)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}
	return &j, nil
}

// ActiveJobForVideo returns the non-terminal job of an item, if any.
func (s *Store) ActiveJobForVideo(ctx context.Context, videoID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE video_id = ? AND status NOT IN (?, ?, ?)
		 ORDER BY created_at_ms DESC LIMIT 1`,
		videoID, StatusDone, StatusFailed, StatusCancelled)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading active job: %w", err)
	}
	return &j, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, status string, limit int) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at_ms DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// RunningJobs returns every job still in an intermediate stage.
func (s *Store) RunningJobs(ctx context.Context) ([]Job, error) {
	return s.ListJobsNotIn(ctx, []string{StatusDone, StatusFailed, StatusCancelled})
}

func (s *Store) ListJobsNotIn(ctx context.Context, statuses []string) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status NOT IN (`
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		if i > 0 {
			query += ", "
		}
		query += "?"
		args = append(args, st)
	}
	query += `) ORDER BY created_at_ms ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing running jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJobProgress advances a job's stage and progress fraction.
func (s *Store) UpdateJobProgress(ctx context.Context, jobID, status string, stage *string, progress float64, message *string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, current_stage = ?, progress = ?, message = ?, updated_at_ms = ?
		 WHERE job_id = ?`,
		status, stage, progress, message, nowMs(), jobID)
	if err != nil {
		return fmt.Errorf("updating job progress: %w", err)
	}
	return nil
}

// FinishJob moves a job to a terminal status.
func (s *Store) FinishJob(ctx context.Context, jobID, status string, errCode, errMessage *string) error {
	progress := 1.0
	if status != StatusDone {
		// Keep the last reported fraction on failure or cancel.
		row := s.db.QueryRowContext(ctx, `SELECT progress FROM jobs WHERE job_id = ?`, jobID)
		if err := row.Scan(&progress); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("reading job progress: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, progress = ?, error_code = ?, error_message = ?, updated_at_ms = ?
		 WHERE job_id = ?`,
		status, progress, errCode, errMessage, nowMs(), jobID)
	if err != nil {
		return fmt.Errorf("finishing job: %w", err)
	}
	return nil
}

// ClearJobs deletes terminal jobs, returning the number removed.
func (s *Store) ClearJobs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?, ?)`,
		StatusDone, StatusFailed, StatusCancelled)
	if err != nil {
		return 0, fmt.Errorf("clearing jobs: %w", err)
	}
	return res.RowsAffected()
}
