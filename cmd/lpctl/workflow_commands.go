package main

import (
	"fmt"
	"os"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/logging"
	"github.com/brojonat/lpctl/service/temporal"
	"github.com/urfave/cli/v2"
)

const (
	defaultSettleWait = 15 * time.Second
	defaultTaskQueue  = "lpctl-liquidity"
)

func runWorkflowCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run a liquidity operation on the worker and wait for the report",
		Description: `Starts LiquidityWorkflow: snapshot the position, execute the operation,
wait for the chain to settle, and snapshot again.

Examples:
  lpctl workflow run --type add --add-amount 5 --slippage 0.01
  lpctl workflow run --type add_remove --add-amount 5 --remove-amount 2 --dry-run`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "type",
				Usage:    "add, remove or add_remove",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "pool",
				Usage: "Pool id; must match the worker's cached pool",
			},
			&cli.Uint64Flag{
				Name:  "add-amount",
				Usage: "Deposit amount in whole units",
			},
			&cli.Uint64Flag{
				Name:  "remove-amount",
				Usage: "Withdraw amount in whole units",
			},
			&cli.Float64Flag{
				Name:  "slippage",
				Usage: "Slippage tolerance as a fraction in [0, 1]",
				Value: 0.01,
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Build and simulate only",
			},
			&cli.DurationFlag{
				Name:    "settle-wait",
				Usage:   "Wait before the second snapshot",
				EnvVars: []string{"WAIT_AFTER_TRANSACTION"},
				Value:   defaultSettleWait,
			},
			&cli.StringFlag{
				Name:    "task-queue",
				Usage:   "Temporal task queue",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   defaultTaskQueue,
			},
		},
		Action: func(c *cli.Context) error {
			input, err := workflowInput(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			result, err := tc.RunLiquidityWorkflow(c.Context, input)
			if err != nil {
				return err
			}
			return printWorkflowResult(c, result)
		},
	}
}

func workflowResultCommand() *cli.Command {
	return &cli.Command{
		Name:      "result",
		Usage:     "Wait for a started workflow and print its report",
		ArgsUsage: "<workflow-id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: workflow id")
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			result, err := tc.GetLiquidityWorkflowResult(c.Context, c.Args().First())
			if err != nil {
				return err
			}
			return printWorkflowResult(c, result)
		},
	}
}

func workflowInput(c *cli.Context) (temporal.LiquidityWorkflowInput, error) {
	input := temporal.LiquidityWorkflowInput{
		Type:         liquidity.OperationType(c.String("type")),
		PoolID:       c.String("pool"),
		AddAmount:    c.Uint64("add-amount"),
		RemoveAmount: c.Uint64("remove-amount"),
		Slippage:     c.Float64("slippage"),
		DryRun:       c.Bool("dry-run"),
		SettleWait:   c.Duration("settle-wait"),
	}
	switch input.Type {
	case liquidity.OpAdd, liquidity.OpRemove, liquidity.OpAddRemove:
	default:
		return input, fmt.Errorf("--type must be add, remove or add_remove, got %q", input.Type)
	}
	return input, nil
}

func printWorkflowResult(c *cli.Context, result *temporal.LiquidityWorkflowResult) error {
	if c.Bool("json") {
		return outputJSON(result)
	}
	printReport(os.Stdout, &operationReport{
		Operation:  result.Operation,
		Before:     result.Before,
		After:      result.After,
		Delta:      result.Delta,
		Shortfalls: result.Shortfalls,
	})
	if result.Error != nil {
		fmt.Fprintf(os.Stderr, "warning: %s\n", *result.Error)
	}
	return nil
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	host := c.String("temporal-host")
	if host == "" {
		host = "localhost:7233" // Default value
	}
	namespace := c.String("temporal-namespace")
	if namespace == "" {
		namespace = "default" // Default value
	}
	taskQueue := c.String("task-queue")
	if taskQueue == "" {
		taskQueue = defaultTaskQueue
	}
	return temporal.NewClient(host, namespace, taskQueue, nil, logging.Discard())
}
