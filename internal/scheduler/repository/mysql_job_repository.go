package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/channelvault/internal/database"
	apperrors "github.com/allisson/channelvault/internal/errors"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

// MySQLJobRepository handles scheduled job persistence for MySQL. Ids are stored as
// BINARY(16); SKIP LOCKED needs MySQL 8.0 or later.
type MySQLJobRepository struct {
	db *sql.DB
}

// NewMySQLJobRepository creates a new MySQLJobRepository.
func NewMySQLJobRepository(db *sql.DB) *MySQLJobRepository {
	return &MySQLJobRepository{
		db: db,
	}
}

// Create inserts a new scheduled job.
func (r *MySQLJobRepository) Create(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	querier := database.GetTx(ctx, r.db)

	id, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}
	connectionID, err := job.ConnectionID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal connection id")
	}

	query := `INSERT INTO scheduled_jobs (` + jobColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = querier.ExecContext(ctx, query, id, job.Platform, connectionID, job.Operation,
		jsonArg(job.Payload), job.ScheduledTime, job.Status, job.RetryCount, job.MaxRetries, job.Retryable,
		job.ErrorMessage, jsonArg(job.Result), job.PublishedAt, job.ClaimedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create scheduled job")
	}
	return nil
}

// Get retrieves a job by id.
func (r *MySQLJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := jobID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal job id")
	}

	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = ?`

	job, err := scanMySQLJob(querier.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedulerDomain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get scheduled job")
	}
	return job, nil
}

// ListDue returns scheduled jobs whose time has come, oldest first.
func (r *MySQLJobRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = ? AND scheduled_time <= ?
			  ORDER BY scheduled_time ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusScheduled, now, limit)
}

// ListExpired returns in_progress jobs claimed at or before claimedBefore, oldest claim
// first.
func (r *MySQLJobRepository) ListExpired(
	ctx context.Context,
	claimedBefore time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = ? AND claimed_at <= ?
			  ORDER BY claimed_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusInProgress, claimedBefore, limit)
}

// ListRetryable returns failed jobs that still have retries left.
func (r *MySQLJobRepository) ListRetryable(ctx context.Context, limit int) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = ? AND retryable = TRUE AND retry_count < max_retries
			  ORDER BY updated_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusFailed, limit)
}

// Claim atomically moves a job from scheduled to in_progress. MySQL applies single-table
// assignments left to right, so claimed_at takes the new updated_at.
func (r *MySQLJobRepository) Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs SET status = ?, updated_at = ?, claimed_at = updated_at WHERE id = ? AND status = ?`

	return r.transition(ctx, query, jobID, schedulerDomain.JobStatusInProgress, now, schedulerDomain.JobStatusScheduled)
}

// Cancel moves a job from scheduled to cancelled.
func (r *MySQLJobRepository) Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`

	return r.transition(ctx, query, jobID, schedulerDomain.JobStatusCancelled, now, schedulerDomain.JobStatusScheduled)
}

// Requeue moves a retryable failed job back to scheduled and clears its error.
func (r *MySQLJobRepository) Requeue(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs
			  SET status = ?, error_message = NULL, updated_at = ?
			  WHERE id = ? AND status = ? AND retryable = TRUE AND retry_count < max_retries`

	return r.transition(ctx, query, jobID, schedulerDomain.JobStatusScheduled, now, schedulerDomain.JobStatusFailed)
}

// Complete stores the outcome of a publish attempt. Only the holder of the current
// claim, identified by job.ClaimedAt, can write it.
func (r *MySQLJobRepository) Complete(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	querier := database.GetTx(ctx, r.db)

	id, err := job.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal job id")
	}

	query := `UPDATE scheduled_jobs
			  SET status = ?, retry_count = ?, retryable = ?, error_message = ?, result = ?,
			      published_at = ?, updated_at = ?
			  WHERE id = ? AND status = ? AND claimed_at = ?`

	result, err := querier.ExecContext(ctx, query, job.Status, job.RetryCount, job.Retryable, job.ErrorMessage,
		jsonArg(job.Result), job.PublishedAt, job.UpdatedAt, id, schedulerDomain.JobStatusInProgress, job.ClaimedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to complete scheduled job")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return apperrors.Wrap(err, "failed to get rows affected")
	}
	if affected == 0 {
		return schedulerDomain.ErrJobNotClaimed
	}
	return nil
}

// transition runs a status update of the form SET status, updated_at WHERE id AND status.
func (r *MySQLJobRepository) transition(
	ctx context.Context,
	query string,
	jobID uuid.UUID,
	to schedulerDomain.JobStatus,
	now time.Time,
	from schedulerDomain.JobStatus,
) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	id, err := jobID.MarshalBinary()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to marshal job id")
	}

	result, err := querier.ExecContext(ctx, query, to, now, id, from)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update scheduled job status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected > 0, nil
}

func (r *MySQLJobRepository) list(
	ctx context.Context,
	query string,
	args ...any,
) ([]*schedulerDomain.ScheduledJob, error) {
	querier := database.GetTx(ctx, r.db)

	rows, err := querier.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list scheduled jobs")
	}
	defer rows.Close() //nolint:errcheck

	jobs := make([]*schedulerDomain.ScheduledJob, 0)
	for rows.Next() {
		job, err := scanMySQLJob(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan scheduled job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate scheduled jobs")
	}
	return jobs, nil
}

func scanMySQLJob(row rowScanner) (*schedulerDomain.ScheduledJob, error) {
	var job schedulerDomain.ScheduledJob
	var rawID, rawConnectionID, payload, result []byte

	err := row.Scan(&rawID, &job.Platform, &rawConnectionID, &job.Operation, &payload, &job.ScheduledTime,
		&job.Status, &job.RetryCount, &job.MaxRetries, &job.Retryable, &job.ErrorMessage, &result,
		&job.PublishedAt, &job.ClaimedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := job.ID.UnmarshalBinary(rawID); err != nil {
		return nil, err
	}
	if err := job.ConnectionID.UnmarshalBinary(rawConnectionID); err != nil {
		return nil, err
	}
	job.Payload = json.RawMessage(payload)
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return &job, nil
}
