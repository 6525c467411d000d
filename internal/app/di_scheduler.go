package app

import (
	"fmt"
	"log/slog"

	"github.com/allisson/channelvault/internal/provider"
	schedulerRepository "github.com/allisson/channelvault/internal/scheduler/repository"
	schedulerUsecase "github.com/allisson/channelvault/internal/scheduler/usecase"
)

// JobRepository returns the scheduled job repository based on database driver.
func (c *Container) JobRepository() (schedulerUsecase.JobRepository, error) {
	var err error
	c.jobRepoInit.Do(func() {
		c.jobRepo, err = c.initJobRepository()
		if err != nil {
			c.initErrors["jobRepo"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["jobRepo"]; exists {
		return nil, storedErr
	}
	return c.jobRepo, nil
}

// Publishers returns the content publishers keyed by platform.
func (c *Container) Publishers() (map[string]schedulerUsecase.Publisher, error) {
	var err error
	c.publishersInit.Do(func() {
		c.publishers, err = c.initPublishers()
		if err != nil {
			c.initErrors["publishers"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["publishers"]; exists {
		return nil, storedErr
	}
	return c.publishers, nil
}

// SchedulerUseCase returns the publishing scheduler.
func (c *Container) SchedulerUseCase() (schedulerUsecase.UseCase, error) {
	var err error
	c.schedulerUseCaseInit.Do(func() {
		c.schedulerUseCase, err = c.initSchedulerUseCase()
		if err != nil {
			c.initErrors["schedulerUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["schedulerUseCase"]; exists {
		return nil, storedErr
	}
	return c.schedulerUseCase, nil
}

func (c *Container) initJobRepository() (schedulerUsecase.JobRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for job repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return schedulerRepository.NewPostgreSQLJobRepository(db), nil
	case "mysql":
		return schedulerRepository.NewMySQLJobRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initPublishers skips providers without a publish endpoint. Their jobs fail terminally.
func (c *Container) initPublishers() (map[string]schedulerUsecase.Publisher, error) {
	limiters := c.Limiters()
	publishers := make(map[string]schedulerUsecase.Publisher, len(c.config.PolicyProviders))

	for _, name := range c.config.PolicyProviders {
		cfg := c.ProviderConfig(name)
		if cfg.PublishURL == "" {
			c.Logger().Warn("no publish endpoint configured", slog.String("provider", name))
			continue
		}
		publisher, err := provider.NewHTTPPublisher(cfg, nil, limiters[name])
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher for %s: %w", name, err)
		}
		publishers[name] = publisher
	}
	return publishers, nil
}

func (c *Container) initSchedulerUseCase() (schedulerUsecase.UseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for scheduler use case: %w", err)
	}
	jobRepo, err := c.JobRepository()
	if err != nil {
		return nil, err
	}
	connections, err := c.ConnectionUseCase()
	if err != nil {
		return nil, err
	}
	gate, err := c.Gate()
	if err != nil {
		return nil, err
	}
	publishers, err := c.Publishers()
	if err != nil {
		return nil, err
	}
	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, err
	}

	return schedulerUsecase.NewSchedulerUseCase(
		schedulerUsecase.Config{
			Interval:       c.config.SchedulerInterval,
			BatchSize:      c.config.SchedulerBatchSize,
			Workers:        c.config.SchedulerWorkers,
			MaxRetries:     c.config.SchedulerMaxRetries,
			RetrySchedule:  c.config.SchedulerRetrySchedule,
			PublishTimeout: c.config.PublishTimeout,
			LeaseTimeout:   c.config.SchedulerLeaseTimeout,
		},
		txManager,
		jobRepo,
		connections,
		gate,
		publishers,
		businessMetrics,
		c.Logger(),
	), nil
}
