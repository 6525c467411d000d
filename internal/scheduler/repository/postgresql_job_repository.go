// Package repository provides PostgreSQL and MySQL persistence for scheduled jobs.
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

const jobColumns = `id, platform, connection_id, operation, payload, scheduled_time, status,
	retry_count, max_retries, retryable, error_message, result, published_at, claimed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// PostgreSQLJobRepository handles scheduled job persistence for PostgreSQL.
type PostgreSQLJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLJobRepository creates a new PostgreSQLJobRepository.
func NewPostgreSQLJobRepository(db *sql.DB) *PostgreSQLJobRepository {
	return &PostgreSQLJobRepository{
		db: db,
	}
}

// Create inserts a new scheduled job.
func (r *PostgreSQLJobRepository) Create(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO scheduled_jobs (` + jobColumns + `)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	_, err := querier.ExecContext(ctx, query, job.ID, job.Platform, job.ConnectionID, job.Operation,
		jsonArg(job.Payload), job.ScheduledTime, job.Status, job.RetryCount, job.MaxRetries, job.Retryable,
		job.ErrorMessage, jsonArg(job.Result), job.PublishedAt, job.ClaimedAt, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create scheduled job")
	}
	return nil
}

// Get retrieves a job by id.
func (r *PostgreSQLJobRepository) Get(ctx context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`

	job, err := scanPostgreSQLJob(querier.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, schedulerDomain.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get scheduled job")
	}
	return job, nil
}

// ListDue returns scheduled jobs whose time has come, oldest first. Inside a
// transaction the rows stay locked and concurrent sweeps skip them.
func (r *PostgreSQLJobRepository) ListDue(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = $1 AND scheduled_time <= $2
			  ORDER BY scheduled_time ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusScheduled, now, limit)
}

// ListExpired returns in_progress jobs claimed at or before claimedBefore, oldest claim
// first. Inside a transaction the rows stay locked and concurrent sweeps skip them.
func (r *PostgreSQLJobRepository) ListExpired(
	ctx context.Context,
	claimedBefore time.Time,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = $1 AND claimed_at <= $2
			  ORDER BY claimed_at ASC
			  LIMIT $3
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusInProgress, claimedBefore, limit)
}

// ListRetryable returns failed jobs that still have retries left.
func (r *PostgreSQLJobRepository) ListRetryable(
	ctx context.Context,
	limit int,
) ([]*schedulerDomain.ScheduledJob, error) {
	query := `SELECT ` + jobColumns + `
			  FROM scheduled_jobs
			  WHERE status = $1 AND retryable = TRUE AND retry_count < max_retries
			  ORDER BY updated_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	return r.list(ctx, query, schedulerDomain.JobStatusFailed, limit)
}

// Claim atomically moves a job from scheduled to in_progress. It returns false when
// another worker got there first or the job was cancelled.
func (r *PostgreSQLJobRepository) Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs SET status = $1, claimed_at = $2, updated_at = $2 WHERE id = $3 AND status = $4`

	return r.transition(ctx, query, schedulerDomain.JobStatusInProgress, now, jobID, schedulerDomain.JobStatusScheduled)
}

// Cancel moves a job from scheduled to cancelled.
func (r *PostgreSQLJobRepository) Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`

	return r.transition(ctx, query, schedulerDomain.JobStatusCancelled, now, jobID, schedulerDomain.JobStatusScheduled)
}

// Requeue moves a retryable failed job back to scheduled and clears its error.
func (r *PostgreSQLJobRepository) Requeue(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error) {
	query := `UPDATE scheduled_jobs
			  SET status = $1, error_message = NULL, updated_at = $2
			  WHERE id = $3 AND status = $4 AND retryable = TRUE AND retry_count < max_retries`

	return r.transition(ctx, query, schedulerDomain.JobStatusScheduled, now, jobID, schedulerDomain.JobStatusFailed)
}

// Complete stores the outcome of a publish attempt. Only the holder of the current
// claim, identified by job.ClaimedAt, can write it.
func (r *PostgreSQLJobRepository) Complete(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE scheduled_jobs
			  SET status = $1, retry_count = $2, retryable = $3, error_message = $4, result = $5,
			      published_at = $6, updated_at = $7
			  WHERE id = $8 AND status = $9 AND claimed_at = $10`

	result, err := querier.ExecContext(ctx, query, job.Status, job.RetryCount, job.Retryable, job.ErrorMessage,
		jsonArg(job.Result), job.PublishedAt, job.UpdatedAt, job.ID, schedulerDomain.JobStatusInProgress,
		job.ClaimedAt)
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

func (r *PostgreSQLJobRepository) transition(ctx context.Context, query string, args ...any) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	result, err := querier.ExecContext(ctx, query, args...)
	if err != nil {
		return false, apperrors.Wrap(err, "failed to update scheduled job status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, apperrors.Wrap(err, "failed to get rows affected")
	}
	return affected > 0, nil
}

func (r *PostgreSQLJobRepository) list(
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
		job, err := scanPostgreSQLJob(rows)
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

func scanPostgreSQLJob(row rowScanner) (*schedulerDomain.ScheduledJob, error) {
	var job schedulerDomain.ScheduledJob
	var payload, result []byte

	err := row.Scan(&job.ID, &job.Platform, &job.ConnectionID, &job.Operation, &payload, &job.ScheduledTime,
		&job.Status, &job.RetryCount, &job.MaxRetries, &job.Retryable, &job.ErrorMessage, &result,
		&job.PublishedAt, &job.ClaimedAt, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	job.Payload = json.RawMessage(payload)
	if len(result) > 0 {
		job.Result = json.RawMessage(result)
	}
	return &job, nil
}

// jsonArg passes JSON as text. Both drivers send []byte as binary, which JSON
// columns reject.
func jsonArg(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
