package temporal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	temporalsdk "go.temporal.io/sdk/temporal"
)

// MockService is a testify mock of LiquidityService.
type MockService struct {
	mock.Mock
}

func (m *MockService) AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liquidity.Operation), args.Error(1)
}

func (m *MockService) RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liquidity.Operation), args.Error(1)
}

func (m *MockService) AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liquidity.Operation), args.Error(1)
}

func (m *MockService) Snapshot(ctx context.Context, poolID string) (*liquidity.Position, error) {
	args := m.Called(ctx, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*liquidity.Position), args.Error(1)
}

func newTestActivities(svc LiquidityService) *Activities {
	return NewActivities(svc, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestExecuteLiquidity_RoutesByType(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	acts := newTestActivities(svc)

	svc.On("AddLiquidity", ctx, liquidity.AddRequest{PoolID: testPool, Amount: 2, Slippage: 0.01, DryRun: true}).
		Return(&liquidity.Operation{ID: "add"}, nil)
	svc.On("RemoveLiquidity", ctx, liquidity.RemoveRequest{Amount: 3, Slippage: 0.02}).
		Return(&liquidity.Operation{ID: "remove"}, nil)
	svc.On("AddRemoveLiquidity", ctx, liquidity.AddRemoveRequest{AddAmount: 4, RemoveAmount: 5, Slippage: 0.03}).
		Return(&liquidity.Operation{ID: "both"}, nil)

	op, err := acts.ExecuteLiquidity(ctx, LiquidityWorkflowInput{Type: liquidity.OpAdd, PoolID: testPool, AddAmount: 2, Slippage: 0.01, DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, "add", op.ID)

	op, err = acts.ExecuteLiquidity(ctx, LiquidityWorkflowInput{Type: liquidity.OpRemove, RemoveAmount: 3, Slippage: 0.02})
	require.NoError(t, err)
	assert.Equal(t, "remove", op.ID)

	op, err = acts.ExecuteLiquidity(ctx, LiquidityWorkflowInput{Type: liquidity.OpAddRemove, AddAmount: 4, RemoveAmount: 5, Slippage: 0.03})
	require.NoError(t, err)
	assert.Equal(t, "both", op.ID)

	svc.AssertExpectations(t)
}

func TestExecuteLiquidity_ValidationIsNonRetryable(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	acts := newTestActivities(svc)

	svc.On("AddLiquidity", ctx, mock.Anything).Return(nil, liquidity.ErrAmountZero)

	_, err := acts.ExecuteLiquidity(ctx, LiquidityWorkflowInput{Type: liquidity.OpAdd})
	require.Error(t, err)

	var appErr *temporalsdk.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
	assert.Equal(t, ValidationErrorType, appErr.Type())
}

func TestExecuteLiquidity_OtherErrorsWrapped(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	acts := newTestActivities(svc)

	cause := errors.New("blockhash unavailable")
	svc.On("RemoveLiquidity", ctx, mock.Anything).Return(nil, cause)

	_, err := acts.ExecuteLiquidity(ctx, LiquidityWorkflowInput{Type: liquidity.OpRemove, RemoveAmount: 1})
	require.ErrorIs(t, err, cause)
}

func TestExecuteLiquidity_UnknownType(t *testing.T) {
	acts := newTestActivities(new(MockService))

	_, err := acts.ExecuteLiquidity(context.Background(), LiquidityWorkflowInput{Type: "swap"})
	var appErr *temporalsdk.ApplicationError
	require.ErrorAs(t, err, &appErr)
	assert.True(t, appErr.NonRetryable())
}

func TestSnapshotPool(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	acts := newTestActivities(svc)

	svc.On("Snapshot", ctx, testPool).Return(&liquidity.Position{PoolID: testPool, UserLP: 7}, nil)
	svc.On("Snapshot", ctx, "").Return(nil, errors.New("cache file not found"))

	pos, err := acts.SnapshotPool(ctx, SnapshotPoolInput{PoolID: testPool})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), pos.UserLP)

	_, err = acts.SnapshotPool(ctx, SnapshotPoolInput{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to snapshot pool")
}

func TestWorkflowID(t *testing.T) {
	id := WorkflowID(LiquidityWorkflowInput{Type: liquidity.OpAddRemove})
	assert.Contains(t, id, "liquidity-add_remove-")
	assert.NotEqual(t, id, WorkflowID(LiquidityWorkflowInput{Type: liquidity.OpAddRemove}))
}
