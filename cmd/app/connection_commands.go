package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/channelvault/cmd/app/commands"
	"github.com/allisson/channelvault/internal/app"
	"github.com/allisson/channelvault/internal/config"
)

func brandUserFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "brand",
			Aliases:  []string{"b"},
			Required: true,
			Usage:    "Brand ID",
		},
		&cli.StringFlag{
			Name:     "user",
			Aliases:  []string{"u"},
			Required: true,
			Usage:    "User ID",
		},
	}
}

func getConnectionCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-connection",
			Usage: "Store an OAuth connection from tokens obtained out of band",
			Flags: append(brandUserFlags(),
				&cli.StringFlag{
					Name:     "provider",
					Aliases:  []string{"p"},
					Required: true,
					Usage:    "Provider name (youtube, linkedin)",
				},
				&cli.StringFlag{
					Name:     "account",
					Required: true,
					Usage:    "Provider account ID of the OAuth identity",
				},
				&cli.StringFlag{
					Name:     "access-token",
					Required: true,
					Usage:    "OAuth access token",
				},
				&cli.StringFlag{
					Name:  "refresh-token",
					Usage: "OAuth refresh token",
				},
				&cli.StringFlag{
					Name:  "token-type",
					Value: "Bearer",
					Usage: "OAuth token type",
				},
				&cli.DurationFlag{
					Name:  "expires-in",
					Usage: "Access token lifetime (e.g., 1h)",
				},
				&cli.StringFlag{
					Name:  "scopes",
					Usage: "Comma separated raw provider scopes granted by the user",
				},
				formatFlag(),
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ConnectionUseCase()
				if err != nil {
					return err
				}

				return commands.RunCreateConnection(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					commands.CreateConnectionParams{
						BrandID:        cmd.String("brand"),
						UserID:         cmd.String("user"),
						Provider:       cmd.String("provider"),
						OAuthAccountID: cmd.String("account"),
						AccessToken:    cmd.String("access-token"),
						RefreshToken:   cmd.String("refresh-token"),
						TokenType:      cmd.String("token-type"),
						ExpiresIn:      cmd.Duration("expires-in"),
						Scopes:         cmd.String("scopes"),
					},
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-connections",
			Usage: "List the active connections of a brand user",
			Flags: append(brandUserFlags(), formatFlag()),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ConnectionUseCase()
				if err != nil {
					return err
				}

				return commands.RunListConnections(
					ctx,
					useCase,
					commands.DefaultIO().Writer,
					cmd.String("brand"),
					cmd.String("user"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "revoke-connection",
			Usage: "Revoke a connection",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "id",
					Aliases:  []string{"i"},
					Required: true,
					Usage:    "Connection ID (UUID format)",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ConnectionUseCase()
				if err != nil {
					return err
				}

				return commands.RunRevokeConnection(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
				)
			},
		},
		{
			Name:  "add-brand-member",
			Usage: "Grant a user a role in a brand",
			Flags: append(brandUserFlags(),
				&cli.StringFlag{
					Name:     "role",
					Aliases:  []string{"r"},
					Required: true,
					Usage:    "Role (viewer, uploader, editor, admin, owner)",
				},
			),
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				useCase, err := container.ConnectionUseCase()
				if err != nil {
					return err
				}

				return commands.RunAddBrandMember(
					ctx,
					useCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("brand"),
					cmd.String("user"),
					cmd.String("role"),
				)
			},
		},
	}
}
