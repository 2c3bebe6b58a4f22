package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/metrics"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// ValidationErrorType marks activity failures caused by the request itself.
const ValidationErrorType = "ValidationError"

// LiquidityWorkflowInput describes one liquidity operation run as a workflow.
type LiquidityWorkflowInput struct {
	Type         liquidity.OperationType `json:"type"`
	PoolID       string                  `json:"pool_id,omitempty"`
	AddAmount    uint64                  `json:"add_amount,omitempty"`
	RemoveAmount uint64                  `json:"remove_amount,omitempty"`
	Slippage     float64                 `json:"slippage"`
	DryRun       bool                    `json:"dry_run"`
	// SettleWait is slept after a landed transaction before the second
	// snapshot, so the RPC node reflects the new balances.
	SettleWait time.Duration `json:"settle_wait"`
}

// LiquidityWorkflowResult contains the operation and the observed position change.
type LiquidityWorkflowResult struct {
	Operation  *liquidity.Operation     `json:"operation"`
	Before     *liquidity.Position      `json:"before"`
	After      *liquidity.Position      `json:"after,omitempty"`
	Delta      *liquidity.PositionDelta `json:"delta,omitempty"`
	Shortfalls []string                 `json:"shortfalls,omitempty"`
	Error      *string                  `json:"error,omitempty"`
}

// SnapshotPoolInput contains parameters for the SnapshotPool activity.
type SnapshotPoolInput struct {
	PoolID string `json:"pool_id,omitempty"`
}

// LiquidityService is the part of liquidity.Service the activities need.
// This allows for easy mocking in tests.
type LiquidityService interface {
	AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error)
	RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error)
	AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error)
	Snapshot(ctx context.Context, poolID string) (*liquidity.Position, error)
}

// Activities holds the dependencies needed by Temporal activities.
// Following go-kit pattern, all dependencies are explicit.
type Activities struct {
	service LiquidityService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewActivities creates a new Activities instance with explicit dependencies.
// If metrics is nil, no metrics will be recorded.
func NewActivities(service LiquidityService, m *metrics.Metrics, logger *slog.Logger) *Activities {
	if logger == nil {
		logger = slog.Default()
	}
	return &Activities{
		service: service,
		metrics: m,
		logger:  logger,
	}
}

// SnapshotPool reads pool balances and the owner's LP holding.
func (a *Activities) SnapshotPool(ctx context.Context, input SnapshotPoolInput) (*liquidity.Position, error) {
	start := time.Now()
	status := "success"
	defer func() {
		a.metrics.RecordActivityDuration("SnapshotPool", status, time.Since(start).Seconds())
	}()

	pos, err := a.service.Snapshot(ctx, input.PoolID)
	if err != nil {
		status = "error"
		a.logger.ErrorContext(ctx, "failed to snapshot pool",
			"pool", input.PoolID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to snapshot pool: %w", err)
	}

	a.logger.InfoContext(ctx, "snapshotted pool",
		"pool", pos.PoolID,
		"lp_total", pos.LPTotal,
		"user_lp", pos.UserLP,
	)
	return pos, nil
}

// ExecuteLiquidity runs the requested operation once. Validation failures
// are returned as non-retryable application errors.
func (a *Activities) ExecuteLiquidity(ctx context.Context, input LiquidityWorkflowInput) (*liquidity.Operation, error) {
	start := time.Now()
	status := "success"
	defer func() {
		a.metrics.RecordActivityDuration("ExecuteLiquidity", status, time.Since(start).Seconds())
	}()

	a.logger.DebugContext(ctx, "executing liquidity operation",
		"type", string(input.Type),
		"pool", input.PoolID,
		"dry_run", input.DryRun,
	)

	var (
		op  *liquidity.Operation
		err error
	)
	switch input.Type {
	case liquidity.OpAdd:
		op, err = a.service.AddLiquidity(ctx, liquidity.AddRequest{
			PoolID: input.PoolID, Amount: input.AddAmount, Slippage: input.Slippage, DryRun: input.DryRun,
		})
	case liquidity.OpRemove:
		op, err = a.service.RemoveLiquidity(ctx, liquidity.RemoveRequest{
			PoolID: input.PoolID, Amount: input.RemoveAmount, Slippage: input.Slippage, DryRun: input.DryRun,
		})
	case liquidity.OpAddRemove:
		op, err = a.service.AddRemoveLiquidity(ctx, liquidity.AddRemoveRequest{
			PoolID: input.PoolID, AddAmount: input.AddAmount, RemoveAmount: input.RemoveAmount,
			Slippage: input.Slippage, DryRun: input.DryRun,
		})
	default:
		status = "error"
		return nil, temporalsdk.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown operation type %q", input.Type), ValidationErrorType, nil)
	}
	if err != nil {
		status = "error"
		a.logger.ErrorContext(ctx, "liquidity operation failed",
			"type", string(input.Type),
			"error", err,
		)
		if liquidity.IsValidation(err) {
			return nil, temporalsdk.NewNonRetryableApplicationError(err.Error(), ValidationErrorType, err)
		}
		return nil, fmt.Errorf("failed to execute %s: %w", input.Type, err)
	}

	a.logger.InfoContext(ctx, "liquidity operation executed",
		"id", op.ID,
		"outcome", op.Outcome(),
		"signature", op.Signature,
	)
	return op, nil
}
