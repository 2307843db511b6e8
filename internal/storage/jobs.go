package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clipnote/api/internal/model"
)

// allowedFrom lists which statuses may precede each transition target.
var allowedFrom = map[model.JobStatus][]model.JobStatus{
	model.JobStatusRunning:  {model.JobStatusQueued},
	model.JobStatusDone:     {model.JobStatusRunning},
	model.JobStatusError:    {model.JobStatusRunning},
	model.JobStatusCanceled: {model.JobStatusQueued, model.JobStatusRunning},
}

// CreateJob inserts a job in status QUEUED.
func (s *DB) CreateJob(ctx context.Context, accountID int64, projectID, kind string) (*model.Job, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (account_id, project_id, type, status, worker_handle, created_at)
         VALUES (?, ?, ?, ?, NULL, ?)`,
		accountID,
		projectID,
		kind,
		model.JobStatusQueued,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &model.Job{
		ID:        id,
		AccountID: accountID,
		ProjectID: projectID,
		Type:      kind,
		Status:    model.JobStatusQueued,
		CreatedAt: now,
	}, nil
}

// AttachWorker records the dispatch handle for a job. The handle is written
// once; an unknown job id is a no-op.
func (s *DB) AttachWorker(ctx context.Context, jobID int64, handle string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET worker_handle = ? WHERE id = ? AND worker_handle IS NULL`,
		handle,
		jobID,
	)
	if err != nil {
		return fmt.Errorf("attach worker: %w", err)
	}
	return nil
}

// Transition moves a job to a new status, enforcing the lifecycle order
// QUEUED -> RUNNING -> terminal (plus QUEUED -> CANCELED). Retransitioning
// into the same terminal status is an idempotent no-op. Attempts to leave a
// terminal status return ErrTerminalStatus.
func (s *DB) Transition(ctx context.Context, jobID int64, status model.JobStatus) error {
	from, ok := allowedFrom[status]
	if !ok {
		return fmt.Errorf("%w: cannot transition into %s", ErrInvalidTransition, status)
	}

	args := make([]any, 0, len(from)+2)
	args = append(args, status, jobID)
	placeholders := ""
	for i, f := range from {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, f)
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE jobs SET status = ? WHERE id = ? AND status IN (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("transition job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// The guarded update matched nothing; classify why.
	current, err := s.jobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	switch {
	case current == status:
		return nil
	case current.Terminal():
		return fmt.Errorf("%w: %s -> %s", ErrTerminalStatus, current, status)
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}
}

func (s *DB) jobStatus(ctx context.Context, jobID int64) (model.JobStatus, error) {
	row := s.db.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, jobID)
	var status model.JobStatus
	if err := row.Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get job status: %w", err)
	}
	return status, nil
}

// RecordResult stores the single result payload of a completed job. The job
// must already be DONE; at most one result may exist per job.
func (s *DB) RecordResult(ctx context.Context, jobID int64, payload json.RawMessage) error {
	status, err := s.jobStatus(ctx, jobID)
	if err != nil {
		return err
	}
	if status != model.JobStatusDone {
		return fmt.Errorf("%w: result requires DONE, job is %s", ErrInvalidTransition, status)
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO results (job_id, payload) VALUES (?, ?)`,
		jobID,
		string(payload),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrResultExists
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// GetJob fetches a job scoped to its owner; a caller never observes another
// account's job.
func (s *DB) GetJob(ctx context.Context, accountID, jobID int64) (*model.Job, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = ? AND account_id = ?`,
		jobID,
		accountID,
	)
	return scanJob(row)
}

// GetJobAnyOwner fetches a job without ownership scoping. Worker-side only;
// the API always goes through GetJob.
func (s *DB) GetJobAnyOwner(ctx context.Context, jobID int64) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, jobID)
	return scanJob(row)
}

// ListJobs returns an account's jobs, optionally filtered to one project.
func (s *DB) ListJobs(ctx context.Context, accountID int64, projectID string) ([]*model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE account_id = ?`
	args := []any{accountID}
	if projectID != "" {
		query += ` AND project_id = ?`
		args = append(args, projectID)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// GetResult fetches a job's result scoped to its owner.
func (s *DB) GetResult(ctx context.Context, accountID, jobID int64) (*model.Result, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT r.id, r.job_id, r.payload FROM results r
         JOIN jobs j ON j.id = r.job_id
         WHERE r.job_id = ? AND j.account_id = ?`,
		jobID,
		accountID,
	)
	var (
		result  model.Result
		payload sql.NullString
	)
	if err := row.Scan(&result.ID, &result.JobID, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if payload.Valid {
		result.Payload = json.RawMessage(payload.String)
	}
	return &result, nil
}

const jobColumns = "id, account_id, project_id, type, status, worker_handle, created_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*model.Job, error) {
	var (
		job        model.Job
		statusStr  string
		handle     sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.AccountID,
		&job.ProjectID,
		&job.Type,
		&statusStr,
		&handle,
		&createdRaw,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = model.JobStatus(statusStr)
	job.WorkerHandle = handle.String
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		job.CreatedAt = created
	}
	return &job, nil
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text;
	// there is no exported errno to match on through database/sql.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
