package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/brojonat/lpctl/service/app"
	"github.com/brojonat/lpctl/service/config"
	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/logging"
	"github.com/urfave/cli/v2"
)

// liquidityRunner is the part of liquidity.Service the operation commands use.
type liquidityRunner interface {
	AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error)
	RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error)
	AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error)
	Snapshot(ctx context.Context, poolID string) (*liquidity.Position, error)
}

// operationParams are the parsed flags of add, remove and add-remove.
type operationParams struct {
	Type         liquidity.OperationType
	PoolID       string
	AddAmount    uint64
	RemoveAmount uint64
	Slippage     float64
	DryRun       bool
	Wait         bool
	SettleWait   time.Duration
}

// operationReport is what the operation commands print.
type operationReport struct {
	Operation  *liquidity.Operation     `json:"operation"`
	Before     *liquidity.Position      `json:"before,omitempty"`
	After      *liquidity.Position      `json:"after,omitempty"`
	Delta      *liquidity.PositionDelta `json:"delta,omitempty"`
	Shortfalls []string                 `json:"shortfalls,omitempty"`
}

func commonOperationFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "pool",
			Usage: "Pool id; must match the cached pool (defaults to it)",
		},
		&cli.Float64Flag{
			Name:  "slippage",
			Usage: "Slippage tolerance as a fraction in [0, 1]",
			Value: 0.01,
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Build and simulate only; never submit",
		},
		&cli.BoolFlag{
			Name:  "wait",
			Usage: "After a submission, wait WAIT_AFTER_TRANSACTION and print the position change",
		},
	}
}

func addCommand() *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "Deposit liquidity into the pool",
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "Amount in whole units, scaled by the pool's decimal multiplier",
				Required: true,
			},
		}, commonOperationFlags()...),
		Action: func(c *cli.Context) error {
			return runOperationCommand(c, operationParams{
				Type:      liquidity.OpAdd,
				AddAmount: c.Uint64("amount"),
			})
		},
	}
}

func removeCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Withdraw liquidity from the pool",
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:     "amount",
				Aliases:  []string{"a"},
				Usage:    "LP amount in whole units, scaled by the pool's decimal multiplier",
				Required: true,
			},
		}, commonOperationFlags()...),
		Action: func(c *cli.Context) error {
			return runOperationCommand(c, operationParams{
				Type:         liquidity.OpRemove,
				RemoveAmount: c.Uint64("amount"),
			})
		},
	}
}

func addRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:  "add-remove",
		Usage: "Deposit then withdraw in a single transaction",
		Flags: append([]cli.Flag{
			&cli.Uint64Flag{
				Name:     "add-amount",
				Usage:    "Deposit amount in whole units",
				Required: true,
			},
			&cli.Uint64Flag{
				Name:     "remove-amount",
				Usage:    "Withdraw amount in whole units",
				Required: true,
			},
		}, commonOperationFlags()...),
		Action: func(c *cli.Context) error {
			return runOperationCommand(c, operationParams{
				Type:         liquidity.OpAddRemove,
				AddAmount:    c.Uint64("add-amount"),
				RemoveAmount: c.Uint64("remove-amount"),
			})
		},
	}
}

func runOperationCommand(c *cli.Context, params operationParams) error {
	a, err := loadApp(c)
	if err != nil {
		return err
	}
	defer a.Close()

	params.PoolID = c.String("pool")
	params.Slippage = c.Float64("slippage")
	params.DryRun = c.Bool("dry-run")
	params.Wait = c.Bool("wait")
	params.SettleWait = a.Config.WaitAfterTransaction

	report, err := executeOperation(c.Context, a.Service, params)
	if err != nil {
		return err
	}

	if c.Bool("json") {
		return outputJSON(report)
	}
	printReport(os.Stdout, report)
	return nil
}

// executeOperation runs one operation. With Wait set it snapshots the
// position before, and after the settle wait when a signature was obtained.
func executeOperation(ctx context.Context, svc liquidityRunner, params operationParams) (*operationReport, error) {
	report := &operationReport{}

	if params.Wait && !params.DryRun {
		before, err := svc.Snapshot(ctx, params.PoolID)
		if err != nil {
			return nil, fmt.Errorf("snapshot before operation: %w", err)
		}
		report.Before = before
	}

	var (
		op  *liquidity.Operation
		err error
	)
	switch params.Type {
	case liquidity.OpAdd:
		op, err = svc.AddLiquidity(ctx, liquidity.AddRequest{
			PoolID: params.PoolID, Amount: params.AddAmount, Slippage: params.Slippage, DryRun: params.DryRun,
		})
	case liquidity.OpRemove:
		op, err = svc.RemoveLiquidity(ctx, liquidity.RemoveRequest{
			PoolID: params.PoolID, Amount: params.RemoveAmount, Slippage: params.Slippage, DryRun: params.DryRun,
		})
	case liquidity.OpAddRemove:
		op, err = svc.AddRemoveLiquidity(ctx, liquidity.AddRemoveRequest{
			PoolID: params.PoolID, AddAmount: params.AddAmount, RemoveAmount: params.RemoveAmount,
			Slippage: params.Slippage, DryRun: params.DryRun,
		})
	default:
		return nil, fmt.Errorf("unknown operation type %q", params.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", params.Type, err)
	}
	report.Operation = op

	if report.Before == nil || op.Signature == "" {
		return report, nil
	}

	if params.SettleWait > 0 {
		select {
		case <-time.After(params.SettleWait):
		case <-ctx.Done():
			return report, ctx.Err()
		}
	}

	after, err := svc.Snapshot(ctx, params.PoolID)
	if err != nil {
		// The operation landed; report it even though the second read failed.
		fmt.Fprintf(os.Stderr, "warning: snapshot after operation failed: %v\n", err)
		return report, nil
	}
	delta := liquidity.Compare(report.Before, after)
	report.After = after
	report.Delta = &delta
	report.Shortfalls = liquidity.Shortfalls(op, delta)
	return report, nil
}

func printReport(w io.Writer, r *operationReport) {
	op := r.Operation
	if op == nil {
		return
	}
	fmt.Fprintf(w, "Operation:   %s (%s)\n", op.ID, op.Type)
	fmt.Fprintf(w, "Pool:        %s\n", op.PoolID)
	fmt.Fprintf(w, "Market:      %s\n", op.MarketID)
	if op.AddAmount > 0 {
		fmt.Fprintf(w, "Add:         %d (scaled %d)\n", op.AddAmount, op.AddScaled)
	}
	if op.RemoveAmount > 0 {
		fmt.Fprintf(w, "Remove:      %d (scaled %d)\n", op.RemoveAmount, op.RemoveScaled)
	}
	fmt.Fprintf(w, "Slippage:    %g\n", op.Slippage)
	fmt.Fprintf(w, "Instructions: %d\n", op.Instructions)
	fmt.Fprintf(w, "Outcome:     %s\n", op.Outcome())

	if op.SimulationOK {
		fmt.Fprintf(w, "Simulation:  ok")
		if op.UnitsConsumed != nil {
			fmt.Fprintf(w, " (%d compute units)", *op.UnitsConsumed)
		}
		fmt.Fprintln(w)
	} else if op.SimulationError != "" {
		fmt.Fprintf(w, "Simulation:  failed: %s\n", op.SimulationError)
		for _, line := range op.SimulationLogs {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
	if op.Signature != "" {
		fmt.Fprintf(w, "Signature:   %s\n", op.Signature)
	}
	if op.SubmitError != "" {
		fmt.Fprintf(w, "Submit:      failed: %s\n", op.SubmitError)
	}

	if r.Delta != nil {
		fmt.Fprintf(w, "\nPosition change\n")
		fmt.Fprintf(w, "  User LP:    %d -> %d (%+d)\n", r.Before.UserLP, r.After.UserLP, r.Delta.UserLP)
		fmt.Fprintf(w, "  Pool LP:    %d -> %d (%+d)\n", r.Before.LPTotal, r.After.LPTotal, r.Delta.LPTotal)
		fmt.Fprintf(w, "  Coin vault: %d -> %d (%+d)\n", r.Before.CoinVault, r.After.CoinVault, r.Delta.CoinVault)
		fmt.Fprintf(w, "  Pc vault:   %d -> %d (%+d)\n", r.Before.PcVault, r.After.PcVault, r.Delta.PcVault)
	}
	for _, s := range r.Shortfalls {
		fmt.Fprintf(w, "warning: %s\n", s)
	}
}

// loadConfig loads dotenv files named by --env-file and then the environment.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if err := config.LoadDotEnv(c.StringSlice("env-file")...); err != nil {
		return nil, err
	}
	return config.Load()
}

// loadApp wires the liquidity stack with a text logger for terminal use.
func loadApp(c *cli.Context) (*app.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.LogLevel, "text")
	return app.New(c.Context, cfg, nil, logger)
}
