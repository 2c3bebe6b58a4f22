package db

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	poolA = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	poolB = "6UmmUiYoBjSrhakAobJw8BvkmJtDVxaeBtbt7rxWo1mg"
)

func newOperation(id, pool string, createdAt time.Time) *liquidity.Operation {
	units := uint64(42_000)
	return &liquidity.Operation{
		ID:             id,
		Type:           liquidity.OpAdd,
		PoolID:         pool,
		MarketID:       "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT",
		AddAmount:      3,
		AddScaled:      3_000_000,
		Multiplier:     1_000_000,
		Slippage:       0.01,
		DryRun:         true,
		Instructions:   2,
		Stage:          solana.StageSkippedDryRun,
		SimulationOK:   true,
		SimulationLogs: []string{"Program log: deposit"},
		UnitsConsumed:  &units,
		CreatedAt:      createdAt,
	}
}

func TestRecordAndGetOperation(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	t.Run("dry run round trip", func(t *testing.T) {
		op := newOperation("op-dry", poolA, now)
		require.NoError(t, store.RecordOperation(ctx, op))

		got, err := store.GetOperation(ctx, "op-dry")
		require.NoError(t, err)
		assert.Equal(t, op, got)
		assert.Equal(t, liquidity.OutcomeDryRun, got.Outcome())
	})

	t.Run("large amounts survive", func(t *testing.T) {
		op := newOperation("op-big", poolA, now)
		op.Type = liquidity.OpRemove
		op.RemoveScaled = math.MaxUint64
		op.DryRun = false
		op.SubmitError = "confirmation timed out"
		op.UnitsConsumed = nil
		require.NoError(t, store.RecordOperation(ctx, op))

		got, err := store.GetOperation(ctx, "op-big")
		require.NoError(t, err)
		assert.Equal(t, uint64(math.MaxUint64), got.RemoveScaled)
		assert.Nil(t, got.UnitsConsumed)
		assert.Equal(t, liquidity.OutcomeSubmitFailed, got.Outcome())
	})

	t.Run("duplicate id fails", func(t *testing.T) {
		err := store.RecordOperation(ctx, newOperation("op-dry", poolA, now))
		require.Error(t, err)
	})

	t.Run("missing id", func(t *testing.T) {
		_, err := store.GetOperation(ctx, "nope")
		require.ErrorIs(t, err, ErrOperationNotFound)
	})
}

func TestListOperations(t *testing.T) {
	SkipIfNoTestDB(t)

	store := NewTestStore(t)
	defer store.Close()
	defer store.Cleanup(t)

	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 4; i++ {
		pool := poolA
		if i%2 == 1 {
			pool = poolB
		}
		op := newOperation(fmt.Sprintf("op-%d", i), pool, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.RecordOperation(ctx, op))
	}

	all, err := store.ListOperations(ctx, ListOperationsParams{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "op-3", all[0].ID, "most recent first")

	onlyA, err := store.ListOperations(ctx, ListOperationsParams{PoolID: poolA})
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, "op-2", onlyA[0].ID)
	assert.Equal(t, "op-0", onlyA[1].ID)

	page, err := store.ListOperations(ctx, ListOperationsParams{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "op-2", page[0].ID)
}

func TestStoreSatisfiesJournal(t *testing.T) {
	var _ liquidity.Journal = (*Store)(nil)
}
