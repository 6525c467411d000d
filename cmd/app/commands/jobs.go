package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
	schedulerUseCase "github.com/allisson/channelvault/internal/scheduler/usecase"
)

// ScheduleJobParams holds the flags of schedule-job.
type ScheduleJobParams struct {
	Platform      string
	ConnectionID  string
	Operation     string
	Payload       string
	ScheduledTime string
	MaxRetries    int
}

// jobOutput is the JSON shape of a job on the command line.
type jobOutput struct {
	ID            uuid.UUID       `json:"id"`
	Platform      string          `json:"platform"`
	ConnectionID  uuid.UUID       `json:"connection_id"`
	Operation     string          `json:"operation"`
	ScheduledTime time.Time       `json:"scheduled_time"`
	Status        string          `json:"status"`
	RetryCount    int             `json:"retry_count"`
	MaxRetries    int             `json:"max_retries"`
	Retryable     bool            `json:"retryable"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Result        json.RawMessage `json:"result,omitempty"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
}

func newJobOutput(job *schedulerDomain.ScheduledJob) *jobOutput {
	out := &jobOutput{
		ID:            job.ID,
		Platform:      job.Platform,
		ConnectionID:  job.ConnectionID,
		Operation:     job.Operation,
		ScheduledTime: job.ScheduledTime,
		Status:        string(job.Status),
		RetryCount:    job.RetryCount,
		MaxRetries:    job.MaxRetries,
		Retryable:     job.Retryable,
		ErrorMessage:  job.ErrorMessage,
		PublishedAt:   job.PublishedAt,
	}
	if len(job.Result) > 0 {
		out.Result = job.Result
	}
	return out
}

func printJob(w io.Writer, job *jobOutput) {
	_, _ = fmt.Fprintf(w, "  ID:           %s\n", job.ID)
	_, _ = fmt.Fprintf(w, "  Platform:     %s\n", job.Platform)
	_, _ = fmt.Fprintf(w, "  Operation:    %s\n", job.Operation)
	_, _ = fmt.Fprintf(w, "  Scheduled at: %s\n", job.ScheduledTime.Format(time.RFC3339))
	_, _ = fmt.Fprintf(w, "  Status:       %s\n", job.Status)
	_, _ = fmt.Fprintf(w, "  Retries:      %d/%d\n", job.RetryCount, job.MaxRetries)
	if job.ErrorMessage != nil {
		_, _ = fmt.Fprintf(w, "  Error:        %s (retryable=%t)\n", *job.ErrorMessage, job.Retryable)
	}
	if job.PublishedAt != nil {
		_, _ = fmt.Fprintf(w, "  Published at: %s\n", job.PublishedAt.Format(time.RFC3339))
	}
}

// RunScheduleJob schedules content for publishing through a stored connection. An
// empty scheduled time means now; an empty operation means the platform default.
func RunScheduleJob(
	ctx context.Context,
	useCase schedulerUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	params ScheduleJobParams,
	format string,
) error {
	connectionID, err := uuid.Parse(params.ConnectionID)
	if err != nil {
		return fmt.Errorf("invalid connection ID format: %w", err)
	}

	scheduledTime := time.Now().UTC()
	if params.ScheduledTime != "" {
		scheduledTime, err = time.Parse(time.RFC3339, params.ScheduledTime)
		if err != nil {
			return fmt.Errorf("invalid scheduled time, expected RFC3339: %w", err)
		}
	}

	job, err := useCase.ScheduleJob(ctx, &schedulerDomain.ScheduleJobInput{
		Platform:      params.Platform,
		ConnectionID:  connectionID,
		Operation:     params.Operation,
		Payload:       json.RawMessage(params.Payload),
		ScheduledTime: scheduledTime,
		MaxRetries:    params.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job: %w", err)
	}

	out := newJobOutput(job)
	err = writeOutput(writer, format, out, func(w io.Writer) {
		_, _ = fmt.Fprintln(w, "Job scheduled successfully:")
		printJob(w, out)
	})
	if err != nil {
		return err
	}

	logger.Info("job scheduled",
		slog.String("job_id", job.ID.String()),
		slog.String("platform", job.Platform),
		slog.String("operation", job.Operation),
	)
	return nil
}

// RunCancelJob cancels a job that has not started yet.
func RunCancelJob(
	ctx context.Context,
	useCase schedulerUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
	jobID string,
) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job ID format: %w", err)
	}

	cancelled, err := useCase.CancelJob(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	if cancelled {
		_, _ = fmt.Fprintf(writer, "Job %s cancelled\n", id)
	} else {
		_, _ = fmt.Fprintf(writer, "Job %s has already started or finished and was not cancelled\n", id)
	}
	logger.Info("cancel job", slog.String("job_id", id.String()), slog.Bool("cancelled", cancelled))
	return nil
}

// RunJobStatus prints the current state of a job.
func RunJobStatus(
	ctx context.Context,
	useCase schedulerUseCase.UseCase,
	writer io.Writer,
	jobID, format string,
) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("invalid job ID format: %w", err)
	}

	job, err := useCase.GetJobStatus(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get job: %w", err)
	}

	out := newJobOutput(job)
	return writeOutput(writer, format, out, func(w io.Writer) {
		printJob(w, out)
	})
}

// RunSweep runs a single sweep of due jobs and exits. Useful when the scheduler is
// driven by an external cron instead of the worker.
func RunSweep(
	ctx context.Context,
	useCase schedulerUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
) error {
	attempted, err := useCase.ProcessDue(ctx)
	if err != nil {
		return fmt.Errorf("failed to process due jobs: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Attempted %d due job(s)\n", attempted)
	logger.Info("sweep completed", slog.Int("attempted", attempted))
	return nil
}

// RunRetryFailed requeues failed jobs with retries left and publishes them again.
func RunRetryFailed(
	ctx context.Context,
	useCase schedulerUseCase.UseCase,
	logger *slog.Logger,
	writer io.Writer,
) error {
	requeued, err := useCase.RetryPass(ctx)
	if err != nil {
		return fmt.Errorf("failed to retry jobs: %w", err)
	}

	_, _ = fmt.Fprintf(writer, "Requeued %d failed job(s)\n", requeued)
	logger.Info("retry pass completed", slog.Int("requeued", requeued))
	return nil
}
