package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "lpctl",
		Usage: "Raydium AMM v4 liquidity client",
		Description: `Add and remove liquidity on a Raydium AMM v4 pool described by the
cached market and pool snapshots.

Every operation is simulated before it is submitted. Pass --dry-run to stop
after simulation.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			// Liquidity operations
			addCommand(),
			removeCommand(),
			addRemoveCommand(),
			walletCommand(),
			// Live pool inspection
			{
				Name:  "pool",
				Usage: "Live pool inspection commands",
				Subcommands: []*cli.Command{
					poolStateCommand(),
					poolBalanceCommand(),
				},
			},
			// Snapshot cache inspection
			{
				Name:  "cache",
				Usage: "Cached market and pool snapshot commands",
				Subcommands: []*cli.Command{
					cacheMarketCommand(),
					cachePoolCommand(),
				},
			},
			// Operation journal
			{
				Name:  "ops",
				Usage: "Operation journal commands",
				Subcommands: []*cli.Command{
					listOperationsCommand(),
					getOperationCommand(),
				},
			},
			// Temporal workflows
			{
				Name:  "workflow",
				Usage: "Run liquidity operations as Temporal workflows",
				Subcommands: []*cli.Command{
					runWorkflowCommand(),
					workflowResultCommand(),
				},
			},
			// NATS operation events
			{
				Name:  "events",
				Usage: "Operation event stream commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading configuration",
				Value: cli.NewStringSlice(".env"),
			},
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Server URL for health checks",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
