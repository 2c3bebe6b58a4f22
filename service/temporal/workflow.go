package temporal

import (
	"fmt"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

var a *Activities // for type-safe activity invocation

// LiquidityWorkflow snapshots the pool, executes one liquidity operation
// and snapshots again.
//
// Activities are never retried: a retried submission could land twice.
// A failed second snapshot does not fail the workflow because the
// operation has already happened; the result carries the error instead.
func LiquidityWorkflow(ctx workflow.Context, input LiquidityWorkflowInput) (*LiquidityWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("LiquidityWorkflow started", "type", input.Type, "pool", input.PoolID, "dry_run", input.DryRun)

	result := &LiquidityWorkflowResult{}

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	// Step 1: Snapshot before
	snapshotInput := SnapshotPoolInput{PoolID: input.PoolID}
	var before *liquidity.Position
	err := workflow.ExecuteActivity(ctx, a.SnapshotPool, snapshotInput).Get(ctx, &before)
	if err != nil {
		errMsg := fmt.Sprintf("failed to snapshot pool: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to snapshot pool: %w", err)
	}
	result.Before = before

	// Step 2: Execute
	var op *liquidity.Operation
	err = workflow.ExecuteActivity(ctx, a.ExecuteLiquidity, input).Get(ctx, &op)
	if err != nil {
		errMsg := fmt.Sprintf("failed to execute liquidity operation: %v", err)
		result.Error = &errMsg
		return result, fmt.Errorf("failed to execute liquidity operation: %w", err)
	}
	result.Operation = op

	logger.Info("liquidity operation finished", "id", op.ID, "outcome", op.Outcome())

	// Step 3: Let the chain settle, then snapshot after
	if op.Signature != "" && input.SettleWait > 0 {
		if err := workflow.Sleep(ctx, input.SettleWait); err != nil {
			return result, err
		}
	}

	var after *liquidity.Position
	err = workflow.ExecuteActivity(ctx, a.SnapshotPool, snapshotInput).Get(ctx, &after)
	if err != nil {
		logger.Warn("failed to snapshot pool after operation", "error", err)
		errMsg := fmt.Sprintf("failed to snapshot pool after operation: %v", err)
		result.Error = &errMsg
		return result, nil
	}
	result.After = after

	delta := liquidity.Compare(before, after)
	result.Delta = &delta
	result.Shortfalls = liquidity.Shortfalls(op, delta)

	logger.Info("LiquidityWorkflow completed",
		"id", op.ID,
		"lp_delta", delta.LPTotal,
		"user_lp_delta", delta.UserLP,
		"shortfalls", len(result.Shortfalls),
	)

	return result, nil
}
