package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/invsync/cmd/app/commands"
	"github.com/allisson/invsync/internal/app"
	"github.com/allisson/invsync/internal/config"
)

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: 'text' or 'json'",
	}
}

func idFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "id",
		Aliases:  []string{"i"},
		Required: true,
		Usage:    "Operation ID (UUID)",
	}
}

func getQueueCommands() []*cli.Command {
	listAction := func(deadLettered bool) cli.ActionFunc {
		return func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.Load()
			container := app.NewContainer(cfg)
			defer func() { _ = container.Shutdown(ctx) }()

			queueUseCase, err := container.QueueUseCase()
			if err != nil {
				return err
			}

			return commands.RunListOperations(
				ctx,
				queueUseCase,
				container.Logger(),
				commands.DefaultIO().Writer,
				deadLettered,
				cmd.String("format"),
			)
		}
	}

	return []*cli.Command{
		{
			Name:   "list-operations",
			Usage:  "List queued operations waiting for replay in FIFO order",
			Flags:  []cli.Flag{formatFlag()},
			Action: listAction(false),
		},
		{
			Name:   "list-dead-letters",
			Usage:  "List operations that exhausted their replay attempts",
			Flags:  []cli.Flag{formatFlag()},
			Action: listAction(true),
		},
		{
			Name:  "retry-operation",
			Usage: "Return a dead-lettered operation to the queue with a fresh attempt budget",
			Flags: []cli.Flag{idFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.RunRetryOperation(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "discard-operation",
			Usage: "Remove a queued operation and revert its optimistic changes",
			Flags: []cli.Flag{idFlag(), formatFlag()},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.RunDiscardOperation(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("id"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "clear-queue",
			Usage: "Drop every queued operation, dead letters included",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "force",
					Value: false,
					Usage: "Skip the confirmation prompt",
				},
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.RunClearQueue(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO(),
					cmd.Bool("force"),
				)
			},
		},
		{
			Name:  "export-dead-letters",
			Usage: "Archive dead-lettered operations to a bucket",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     "bucket",
					Aliases:  []string{"b"},
					Required: true,
					Usage:    "Bucket URL (e.g., file:///var/lib/invsync/exports)",
				},
				&cli.StringFlag{
					Name:    "kms-key-uri",
					Aliases: []string{"k"},
					Usage:   "Seal the export with this KMS key (gcpkms://, awskms://, azurekeyvault://, hashivault://, base64key://)",
				},
				&cli.StringFlag{
					Name:  "key",
					Usage: "Object key (defaults to dead-letters/<timestamp>.json)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg := config.Load()
				container := app.NewContainer(cfg)
				defer func() { _ = container.Shutdown(ctx) }()

				queueUseCase, err := container.QueueUseCase()
				if err != nil {
					return err
				}

				return commands.ExportDeadLetters(
					ctx,
					queueUseCase,
					container.Logger(),
					commands.DefaultIO().Writer,
					cmd.String("bucket"),
					cmd.String("kms-key-uri"),
					cmd.String("key"),
					cmd.String("format"),
				)
			},
		},
	}
}
