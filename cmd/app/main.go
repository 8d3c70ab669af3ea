// Package main runs one of the saga services, selected by subcommand.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/andreasstove999/ecommerce-system/internal/app"
	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/db"
	"github.com/andreasstove999/ecommerce-system/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := &cli.Command{
		Name:  "ecommerce",
		Usage: "Order fulfillment saga services",
		Commands: []*cli.Command{
			service(config.ServiceOrders, "Serve the orders API and track order state", app.RunOrders),
			service(config.ServiceInventory, "Reserve and settle stock for orders", app.RunInventory),
			service(config.ServicePayments, "Serve the mock payments API", app.RunPayments),
			service(config.ServiceNotificationsRelay, "Queue notifications for finished orders", app.RunNotificationsRelay),
			service(config.ServiceNotificationsWorker, "Deliver queued notifications", app.RunNotificationsWorker),
			{
				Name:  "migrate",
				Usage: "Run database migrations",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "schema",
						Aliases: []string{"s"},
						Value:   db.Schemas,
						Usage:   "Migration sets to apply (orders, inventory, payments)",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					cfg := config.Load("migrate")
					logger, err := logging.New(cfg.ServiceName, cfg.ServiceEnv, cfg.LogLevel)
					if err != nil {
						return fmt.Errorf("init logger: %w", err)
					}
					defer func() { _ = logger.Sync() }()
					return app.Migrate(cfg, logger, cmd.StringSlice("schema")...)
				},
			},
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func service(name, usage string, run func(context.Context, *config.Config) error) *cli.Command {
	return &cli.Command{
		Name:  name,
		Usage: usage,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(ctx, config.Load(name))
		},
	}
}
