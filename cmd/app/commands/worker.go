package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/allisson/channelvault/internal/app"
	"github.com/allisson/channelvault/internal/config"
)

// RunWorker starts the publishing scheduler and the operational HTTP server with
// graceful shutdown support. Blocks until receiving SIGINT/SIGTERM or until either
// component fails. On shutdown, the scheduler stops claiming jobs and the HTTP server
// is stopped within DBConnMaxLifetime.
func RunWorker(ctx context.Context, version string) error {
	cfg := config.Load()

	gin.SetMode(cfg.GetGinMode())

	container := app.NewContainer(cfg)

	logger := container.Logger()
	logger.Info("starting worker", slog.String("version", version))

	defer closeContainer(container, logger)

	// Resolving the scheduler initializes the vault, the policy gate and the stores
	scheduler, err := container.SchedulerUseCase()
	if err != nil {
		return fmt.Errorf("failed to initialize scheduler: %w", err)
	}

	server, err := container.HTTPServer()
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	workerErr := make(chan error, 2)
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			workerErr <- fmt.Errorf("scheduler error: %w", err)
		}
	}()
	go func() {
		if err := server.Start(ctx); err != nil {
			workerErr <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var errs []error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-workerErr:
		logger.Error("worker error, initiating shutdown", slog.Any("error", err))
		errs = append(errs, err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}

	// In-flight publishes finish before the container closes the database
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", shutdownCtx.Err()))
	}

	return errors.Join(errs...)
}
