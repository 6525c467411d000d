// Package usecase implements the publishing scheduler: scheduling and cancelling jobs,
// claiming due jobs, publishing them through the gate and the provider adapters, and
// the bounded retry pass.
package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	connectionDomain "github.com/allisson/channelvault/internal/connection/domain"
	cryptoDomain "github.com/allisson/channelvault/internal/crypto/domain"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

// JobRepository defines persistence operations for scheduled jobs. Implementations
// must support transaction-aware operations via context propagation.
type JobRepository interface {
	Create(ctx context.Context, job *schedulerDomain.ScheduledJob) error

	// Get returns ErrJobNotFound when the job does not exist.
	Get(ctx context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error)

	// ListDue returns scheduled jobs with ScheduledTime <= now, locking them when
	// called inside a transaction.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*schedulerDomain.ScheduledJob, error)

	// ListExpired returns in_progress jobs claimed at or before claimedBefore, locking
	// them when called inside a transaction.
	ListExpired(ctx context.Context, claimedBefore time.Time, limit int) ([]*schedulerDomain.ScheduledJob, error)

	// ListRetryable returns failed jobs with Retryable set and retries left.
	ListRetryable(ctx context.Context, limit int) ([]*schedulerDomain.ScheduledJob, error)

	// Claim moves scheduled -> in_progress and stamps claimed_at, returning false if the
	// job was not scheduled.
	Claim(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)

	// Cancel moves scheduled -> cancelled, returning false if the job was not scheduled.
	Cancel(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)

	// Requeue moves a retryable failed job back to scheduled.
	Requeue(ctx context.Context, jobID uuid.UUID, now time.Time) (bool, error)

	// Complete writes the outcome of an in_progress job whose claimed_at still equals
	// job.ClaimedAt. Returns ErrJobNotClaimed otherwise.
	Complete(ctx context.Context, job *schedulerDomain.ScheduledJob) error
}

// ConnectionStore is the part of the Connection Store the scheduler depends on.
type ConnectionStore interface {
	Get(ctx context.Context, connectionID uuid.UUID) (*connectionDomain.Connection, error)
	Role(ctx context.Context, conn *connectionDomain.Connection) (string, error)
	Credentials(ctx context.Context, conn *connectionDomain.Connection) (*cryptoDomain.TokenPayload, error)
}

// OperationGate authorizes an operation for a role and a connection's scope keys.
type OperationGate interface {
	AssertAllowed(role, operation string) error
	CheckScopes(provider, operation string, granted []string) error
	ResolveOperation(provider, operation string) (string, error)
}

// Publisher is a provider's content API.
type Publisher interface {
	// Publish sends job.Payload with credentials and returns a summary of the
	// provider's response.
	Publish(
		ctx context.Context,
		credentials *cryptoDomain.TokenPayload,
		job *schedulerDomain.ScheduledJob,
	) (json.RawMessage, error)
}

// UseCase is the scheduler.
type UseCase interface {
	// ScheduleJob validates the input against its connection and stores a scheduled job.
	ScheduleJob(ctx context.Context, input *schedulerDomain.ScheduleJobInput) (*schedulerDomain.ScheduledJob, error)

	// CancelJob cancels a job that has not started. It returns false otherwise.
	CancelJob(ctx context.Context, jobID uuid.UUID) (bool, error)

	GetJobStatus(ctx context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error)

	// PollDue first fails claims older than LeaseTimeout as retryable, then claims up
	// to BatchSize due jobs. Every returned job is in_progress and owned by the caller.
	PollDue(ctx context.Context) ([]*schedulerDomain.ScheduledJob, error)

	// Publish runs one claimed job and records its outcome. It returns the publish
	// failure, if any.
	Publish(ctx context.Context, job *schedulerDomain.ScheduledJob) error

	// ProcessDue claims due jobs and publishes them concurrently. It returns how many
	// jobs were attempted.
	ProcessDue(ctx context.Context) (int, error)

	// RetryPass requeues failed jobs with retries left and publishes them again. It
	// returns how many jobs were requeued.
	RetryPass(ctx context.Context) (int, error)

	// Start runs the sweep on Interval and the retry pass on RetrySchedule until ctx
	// is done.
	Start(ctx context.Context) error
}
