package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/channelvault/cmd/app/commands"
	"github.com/allisson/channelvault/internal/app"
	"github.com/allisson/channelvault/internal/config"
)

func jobIDFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Job ID (UUID format)",
	}
}

func getJobCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "schedule-job",
			Usage: "Schedule content for publishing through a connection",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "platform",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Target platform (youtube, linkedin)",
				},
				&cli.StringFlag{
					Name:     "connection-id",
					Aliases:  []string{"c"},
					Required: true,
					Usage:    "Connection ID (UUID format)",
				},
				&cli.StringFlag{
					Name:    "operation",
					Aliases: []string{"o"},
					Usage:   "Provider operation; empty uses the platform default",
				},
				&cli.StringFlag{
					Name:     "payload",
					Required: true,
					Usage:    "Content payload as JSON",
				},
				&cli.StringFlag{
					Name:    "at",
					Aliases: []string{"t"},
					Usage:   "Scheduled time in RFC3339; empty means now",
				},
				&cli.IntFlag{
					Name:  "max-retries",
					Value: 0,
					Usage: "Retry budget; 0 uses SCHEDULER_MAX_RETRIES",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SchedulerUseCase()
				if err != nil {
					return err
				}

				return commands.RunScheduleJob(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.ScheduleJobParams{
						Platform:      cmd.String("platform"),
						ConnectionID:  cmd.String("connection-id"),
						Operation:     cmd.String("operation"),
						Payload:       cmd.String("payload"),
						ScheduledTime: cmd.String("at"),
						MaxRetries:    int(cmd.Int("max-retries")),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "cancel-job",
			Usage: "Cancel a job that has not started",
			Flags: []cli.Flag{jobIDFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SchedulerUseCase()
				if err != nil {
					return err
				}

				return commands.RunCancelJob(ctx, useCase, container.Logger(), commands.DefaultIO().Writer, cmd.String("id"))
			},
		},
		{
			Name:  "job-status",
			Usage: "Show the state of a job",
			Flags: []cli.Flag{jobIDFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SchedulerUseCase()
				if err != nil {
					return err
				}

				return commands.RunJobStatus(
					ctx,
					useCase,
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "run-sweep",
			Usage: "Publish due jobs once and exit",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SchedulerUseCase()
				if err != nil {
					return err
				}

				return commands.RunSweep(ctx, useCase, container.Logger(), commands.DefaultIO().Writer)
			},
		},
		{
			Name:  "retry-failed",
			Usage: "Requeue failed jobs with retries left and publish them",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.SchedulerUseCase()
				if err != nil {
					return err
				}

				return commands.RunRetryFailed(ctx, useCase, container.Logger(), commands.DefaultIO().Writer)
			},
		},
	}
}
