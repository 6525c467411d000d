// Package domain defines scheduled publishing jobs and their state machine.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is used when a job is scheduled without its own retry budget.
const DefaultMaxRetries = 3

// JobStatus represents where a job is in its lifecycle.
type JobStatus string

const (
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusPublished  JobStatus = "published"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ScheduledJob is one piece of content to publish at ScheduledTime through a connection.
//
// A job moves scheduled -> in_progress when a worker claims it, then to published or
// failed. A claim older than the lease timeout is expired into a retryable failure.
// Failed jobs return to scheduled only through a retry pass, and only while Retryable
// is set and RetryCount is below MaxRetries.
type ScheduledJob struct {
	ID            uuid.UUID
	Platform      string
	ConnectionID  uuid.UUID
	Operation     string
	Payload       json.RawMessage
	ScheduledTime time.Time
	Status        JobStatus
	RetryCount    int
	MaxRetries    int
	Retryable     bool
	ErrorMessage  *string
	Result        json.RawMessage
	PublishedAt   *time.Time
	ClaimedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDue reports whether the job is waiting and its time has come.
func (j *ScheduledJob) IsDue(now time.Time) bool {
	return j.Status == JobStatusScheduled && !j.ScheduledTime.After(now)
}

// MarkClaimed records that a worker took the job at at.
func (j *ScheduledJob) MarkClaimed(at time.Time) {
	j.Status = JobStatusInProgress
	j.ClaimedAt = &at
	j.UpdatedAt = at
}

// ClaimExpired reports whether the job has been in progress for longer than lease.
func (j *ScheduledJob) ClaimExpired(now time.Time, lease time.Duration) bool {
	if j.Status != JobStatusInProgress || j.ClaimedAt == nil {
		return false
	}
	return !j.ClaimedAt.Add(lease).After(now)
}

// CanCancel reports whether the job may still be cancelled.
func (j *ScheduledJob) CanCancel() bool {
	return j.Status == JobStatusScheduled
}

// CanRetry reports whether a retry pass may pick the job up.
func (j *ScheduledJob) CanRetry() bool {
	return j.Status == JobStatusFailed && j.Retryable && j.RetryCount < j.MaxRetries
}

// IsTerminal reports whether the job will never run again.
func (j *ScheduledJob) IsTerminal() bool {
	switch j.Status {
	case JobStatusPublished, JobStatusCancelled:
		return true
	case JobStatusFailed:
		return !j.CanRetry()
	default:
		return false
	}
}

// MarkPublished records a successful publish.
func (j *ScheduledJob) MarkPublished(result json.RawMessage, at time.Time) {
	j.Status = JobStatusPublished
	j.Result = result
	j.PublishedAt = &at
	j.ErrorMessage = nil
	j.Retryable = false
	j.UpdatedAt = at
}

// MarkFailed records a failed attempt. A retryable failure consumes one retry, never
// past MaxRetries; a terminal one leaves RetryCount alone and stops further retries.
func (j *ScheduledJob) MarkFailed(message string, retryable bool, at time.Time) {
	j.Status = JobStatusFailed
	j.ErrorMessage = &message
	j.Retryable = retryable
	if retryable && j.RetryCount < j.MaxRetries {
		j.RetryCount++
	}
	j.UpdatedAt = at
}

// ResetForRetry moves a failed job back to scheduled and clears its error.
func (j *ScheduledJob) ResetForRetry(at time.Time) {
	j.Status = JobStatusScheduled
	j.ErrorMessage = nil
	j.UpdatedAt = at
}
