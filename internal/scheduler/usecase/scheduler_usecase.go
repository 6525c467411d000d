package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/allisson/channelvault/internal/database"
	"github.com/allisson/channelvault/internal/errors"
	"github.com/allisson/channelvault/internal/metrics"
	schedulerDomain "github.com/allisson/channelvault/internal/scheduler/domain"
)

// Config holds scheduler timing and concurrency settings.
type Config struct {
	Interval       time.Duration
	BatchSize      int
	Workers        int
	MaxRetries     int
	RetrySchedule  string
	PublishTimeout time.Duration
	// LeaseTimeout is how long a claim may stay in_progress without an outcome. It is
	// raised to PublishTimeout plus a minute when shorter.
	LeaseTimeout time.Duration
}

// SchedulerUseCase implements UseCase.
type SchedulerUseCase struct {
	config      Config
	txManager   database.TxManager
	jobRepo     JobRepository
	connections ConnectionStore
	gate        OperationGate
	publishers  map[string]Publisher
	metrics     metrics.BusinessMetrics
	logger      *slog.Logger
}

// NewSchedulerUseCase creates a SchedulerUseCase. publishers is keyed by platform.
// A nil metrics records nothing.
func NewSchedulerUseCase(
	config Config,
	txManager database.TxManager,
	jobRepo JobRepository,
	connections ConnectionStore,
	gate OperationGate,
	publishers map[string]Publisher,
	m metrics.BusinessMetrics,
	logger *slog.Logger,
) *SchedulerUseCase {
	if config.Interval <= 0 {
		config.Interval = 30 * time.Second
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = schedulerDomain.DefaultMaxRetries
	}
	if config.PublishTimeout <= 0 {
		config.PublishTimeout = 45 * time.Second
	}
	if config.LeaseTimeout <= config.PublishTimeout {
		config.LeaseTimeout = config.PublishTimeout + time.Minute
	}
	if m == nil {
		m = metrics.NewNoOpBusinessMetrics()
	}
	return &SchedulerUseCase{
		config:      config,
		txManager:   txManager,
		jobRepo:     jobRepo,
		connections: connections,
		gate:        gate,
		publishers:  publishers,
		metrics:     m,
		logger:      logger,
	}
}

// ScheduleJob implements UseCase.
func (uc *SchedulerUseCase) ScheduleJob(
	ctx context.Context,
	input *schedulerDomain.ScheduleJobInput,
) (*schedulerDomain.ScheduledJob, error) {
	start := time.Now()
	job, err := uc.scheduleJob(ctx, input)
	uc.record(ctx, "job_schedule", start, metrics.StatusOf(err))
	return job, err
}

func (uc *SchedulerUseCase) scheduleJob(
	ctx context.Context,
	input *schedulerDomain.ScheduleJobInput,
) (*schedulerDomain.ScheduledJob, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	platform := strings.ToLower(strings.TrimSpace(input.Platform))
	conn, err := uc.connections.Get(ctx, input.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.Provider != platform {
		return nil, fmt.Errorf("%w: job platform %s, connection provider %s",
			schedulerDomain.ErrPlatformMismatch, platform, conn.Provider)
	}

	operation, err := uc.gate.ResolveOperation(platform, input.Operation)
	if err != nil {
		return nil, errors.Wrap(schedulerDomain.ErrInvalidJob, err.Error())
	}

	maxRetries := input.MaxRetries
	if maxRetries == 0 {
		maxRetries = uc.config.MaxRetries
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, "failed to generate job id")
	}

	now := time.Now().UTC()
	job := &schedulerDomain.ScheduledJob{
		ID:            id,
		Platform:      platform,
		ConnectionID:  conn.ID,
		Operation:     operation,
		Payload:       input.Payload,
		ScheduledTime: input.ScheduledTime.UTC(),
		Status:        schedulerDomain.JobStatusScheduled,
		MaxRetries:    maxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if uc.logger != nil {
		uc.logger.Info("job scheduled",
			slog.String("job_id", job.ID.String()),
			slog.String("platform", job.Platform),
			slog.String("operation", job.Operation),
			slog.Time("scheduled_time", job.ScheduledTime),
		)
	}
	return job, nil
}

// CancelJob implements UseCase.
func (uc *SchedulerUseCase) CancelJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	start := time.Now()
	cancelled, err := uc.jobRepo.Cancel(ctx, jobID, time.Now().UTC())
	uc.record(ctx, "job_cancel", start, metrics.StatusOf(err))
	return cancelled, err
}

// GetJobStatus implements UseCase.
func (uc *SchedulerUseCase) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*schedulerDomain.ScheduledJob, error) {
	return uc.jobRepo.Get(ctx, jobID)
}

// PollDue implements UseCase. Claims happen in one short transaction; nothing stays
// locked while jobs are published.
func (uc *SchedulerUseCase) PollDue(ctx context.Context) ([]*schedulerDomain.ScheduledJob, error) {
	var claimed []*schedulerDomain.ScheduledJob

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		claimed = nil
		// Both drivers store microseconds; Complete matches claimed_at exactly.
		now := time.Now().UTC().Truncate(time.Microsecond)

		if err := uc.expireClaims(ctx, now); err != nil {
			return err
		}

		jobs, err := uc.jobRepo.ListDue(ctx, now, uc.config.BatchSize)
		if err != nil {
			return err
		}

		for _, job := range jobs {
			ok, err := uc.jobRepo.Claim(ctx, job.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			job.MarkClaimed(now)
			claimed = append(claimed, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// expireClaims fails jobs whose claim outlived the lease, consuming one retry. The
// retry pass picks them up again while retries remain.
func (uc *SchedulerUseCase) expireClaims(ctx context.Context, now time.Time) error {
	jobs, err := uc.jobRepo.ListExpired(ctx, now.Add(-uc.config.LeaseTimeout), uc.config.BatchSize)
	if err != nil {
		return err
	}

	for _, job := range jobs {
		job.MarkFailed(schedulerDomain.ErrClaimExpired.Error(), true, now)
		if err := uc.jobRepo.Complete(ctx, job); err != nil {
			if errors.Is(err, schedulerDomain.ErrJobNotClaimed) {
				continue
			}
			return err
		}
		uc.record(ctx, "job_claim_expired", now, "retryable")
		if uc.logger != nil {
			uc.logger.Warn("claim expired",
				slog.String("job_id", job.ID.String()),
				slog.String("platform", job.Platform),
				slog.Int("retry_count", job.RetryCount),
				slog.Time("claimed_at", *job.ClaimedAt),
			)
		}
	}
	return nil
}

// Publish implements UseCase.
func (uc *SchedulerUseCase) Publish(ctx context.Context, job *schedulerDomain.ScheduledJob) error {
	start := time.Now()
	result, publishErr := uc.attempt(ctx, job)

	now := time.Now().UTC()
	status := "published"
	if publishErr == nil {
		job.MarkPublished(result, now)
	} else {
		retryable := !IsTerminal(publishErr)
		job.MarkFailed(publishErr.Error(), retryable, now)
		status = "failed"
		if retryable {
			status = "retryable"
		}
	}
	uc.record(ctx, "job_publish", start, status)

	// The outcome is written even when ctx is done so the claim is always released.
	if err := uc.jobRepo.Complete(context.WithoutCancel(ctx), job); err != nil {
		if publishErr != nil {
			return fmt.Errorf("%w (failed to record outcome: %w)", publishErr, err)
		}
		return err
	}
	return publishErr
}

// attempt runs the publish path. Authorization is checked before any credential is
// decrypted or refreshed, so a denied job never reaches the provider.
func (uc *SchedulerUseCase) attempt(
	ctx context.Context,
	job *schedulerDomain.ScheduledJob,
) (json.RawMessage, error) {
	conn, err := uc.connections.Get(ctx, job.ConnectionID)
	if err != nil {
		return nil, err
	}
	if conn.Provider != job.Platform {
		return nil, fmt.Errorf("%w: job platform %s, connection provider %s",
			schedulerDomain.ErrPlatformMismatch, job.Platform, conn.Provider)
	}

	operation, err := uc.gate.ResolveOperation(job.Platform, job.Operation)
	if err != nil {
		return nil, err
	}
	job.Operation = operation

	role, err := uc.connections.Role(ctx, conn)
	if err != nil {
		return nil, err
	}
	if err := uc.gate.AssertAllowed(role, operation); err != nil {
		return nil, err
	}
	if err := uc.gate.CheckScopes(conn.Provider, operation, conn.ScopeKeys); err != nil {
		return nil, err
	}

	publisher, ok := uc.publishers[job.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schedulerDomain.ErrNoPublisher, job.Platform)
	}

	credentials, err := uc.connections.Credentials(ctx, conn)
	if err != nil {
		return nil, err
	}

	publishCtx, cancel := context.WithTimeout(ctx, uc.config.PublishTimeout)
	defer cancel()

	return publisher.Publish(publishCtx, credentials, job)
}

// ProcessDue implements UseCase.
func (uc *SchedulerUseCase) ProcessDue(ctx context.Context) (int, error) {
	jobs, err := uc.PollDue(ctx)
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}

	if uc.logger != nil {
		uc.logger.Info("publishing due jobs", slog.Int("count", len(jobs)))
	}

	var g errgroup.Group
	g.SetLimit(uc.config.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			if err := uc.Publish(ctx, job); err != nil && uc.logger != nil {
				uc.logger.Error("failed to publish job",
					slog.String("job_id", job.ID.String()),
					slog.String("platform", job.Platform),
					slog.Int("retry_count", job.RetryCount),
					slog.Bool("retryable", job.Retryable),
					slog.Any("error", err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	return len(jobs), nil
}

// RetryPass implements UseCase.
func (uc *SchedulerUseCase) RetryPass(ctx context.Context) (int, error) {
	var requeued int

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		requeued = 0
		now := time.Now().UTC()

		jobs, err := uc.jobRepo.ListRetryable(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			ok, err := uc.jobRepo.Requeue(ctx, job.ID, now)
			if err != nil {
				return err
			}
			if ok {
				requeued++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if requeued == 0 {
		return 0, nil
	}

	if uc.logger != nil {
		uc.logger.Info("requeued failed jobs", slog.Int("count", requeued))
	}

	if _, err := uc.ProcessDue(ctx); err != nil {
		return requeued, err
	}
	return requeued, nil
}

// Start implements UseCase.
func (uc *SchedulerUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting scheduler",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
			slog.Int("workers", uc.config.Workers),
			slog.String("retry_schedule", uc.config.RetrySchedule),
		)
	}

	retries := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if uc.config.RetrySchedule != "" {
		_, err := retries.AddFunc(uc.config.RetrySchedule, func() {
			if _, err := uc.RetryPass(ctx); err != nil && uc.logger != nil {
				uc.logger.Error("retry pass failed", slog.Any("error", err))
			}
		})
		if err != nil {
			return fmt.Errorf("%w: invalid retry schedule %q: %v",
				errors.ErrConfiguration, uc.config.RetrySchedule, err)
		}
	}
	retries.Start()
	defer func() { <-retries.Stop().Done() }()

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping scheduler")
			}
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.ProcessDue(ctx); err != nil && uc.logger != nil {
				uc.logger.Error("failed to process due jobs", slog.Any("error", err))
			}
		}
	}
}

func (uc *SchedulerUseCase) record(ctx context.Context, operation string, start time.Time, status string) {
	uc.metrics.RecordOperation(ctx, metrics.DomainScheduler, operation, status)
	uc.metrics.RecordDuration(ctx, metrics.DomainScheduler, operation, time.Since(start), status)
}
