package liquidity

import (
	"context"
	"errors"
	"math"
	"testing"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func instructionTag(t *testing.T, ix solanago.Instruction) byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	return data[0]
}

func TestCompose_AddThenRemove(t *testing.T) {
	b := &fakeBuilder{deposits: 5, withdraw: 1}
	c := NewComposer(NewAdapter(b, nil), discardLogger())
	pool := solanago.MustPublicKeyFromBase58(testPoolID)

	add := &Intent{PoolID: pool, Amount: 3, Slippage: 0.01}
	remove := &Intent{PoolID: pool, Amount: 2, Slippage: 0.01}
	tx, err := c.Compose(context.Background(), 1_000, add, remove)
	require.NoError(t, err)

	require.Len(t, tx.Instructions, 6)
	for i := 0; i < 5; i++ {
		assert.Equal(t, byte('d'), instructionTag(t, tx.Instructions[i]))
	}
	assert.Equal(t, byte('w'), instructionTag(t, tx.Instructions[5]))

	require.Len(t, tx.Parts, 2)
	assert.Equal(t, Deposit, tx.Parts[0].Kind)
	assert.Equal(t, uint64(3_000), tx.Parts[0].ScaledAmount)
	assert.Equal(t, 5, tx.Parts[0].Instructions)
	assert.Equal(t, Withdraw, tx.Parts[1].Kind)
	assert.Equal(t, uint64(2_000), tx.Parts[1].ScaledAmount)
	assert.Equal(t, 1, tx.Parts[1].Instructions)
}

func TestCompose_DoesNotMutateIntents(t *testing.T) {
	c := NewComposer(NewAdapter(&fakeBuilder{deposits: 1, withdraw: 1}, nil), nil)
	add := &Intent{Kind: Withdraw, Amount: 1}
	before := *add

	_, err := c.Compose(context.Background(), 10, add, nil)
	require.NoError(t, err)
	assert.Equal(t, before, *add)
}

func TestCompose_OverflowBeforeBuilder(t *testing.T) {
	b := &fakeBuilder{deposits: 1, withdraw: 1}
	c := NewComposer(NewAdapter(b, nil), discardLogger())

	_, err := c.Compose(context.Background(), 2, &Intent{Amount: math.MaxUint64}, nil)
	require.ErrorIs(t, err, ErrMultiplicationOverflow)
	assert.Zero(t, b.calls())
}

func TestCompose_InvalidRemoveStopsValidAdd(t *testing.T) {
	b := &fakeBuilder{deposits: 1, withdraw: 1}
	c := NewComposer(NewAdapter(b, nil), discardLogger())

	_, err := c.Compose(context.Background(), 10, &Intent{Amount: 1}, &Intent{Amount: 0})
	require.ErrorIs(t, err, ErrAmountZero)
	assert.Zero(t, b.calls(), "no instructions are built when any intent is invalid")
}

func TestCompose_BuilderFailureDiscardsEverything(t *testing.T) {
	cause := errors.New("rpc unavailable")
	b := &fakeBuilder{deposits: 2, err: map[string]error{"withdraw": cause}}
	c := NewComposer(NewAdapter(b, nil), discardLogger())

	tx, err := c.Compose(context.Background(), 10, &Intent{Amount: 1}, &Intent{Amount: 1})
	require.ErrorIs(t, err, cause)
	assert.Nil(t, tx)
}

func TestCompose_NothingRequested(t *testing.T) {
	c := NewComposer(NewAdapter(&fakeBuilder{}, nil), nil)
	_, err := c.Compose(context.Background(), 10, nil, nil)
	require.ErrorIs(t, err, ErrNoOperation)
}
