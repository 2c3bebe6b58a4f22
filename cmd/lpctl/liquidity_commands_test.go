package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	op        *liquidity.Operation
	err       error
	snapshots []*liquidity.Position
	snapErr   []error
	snapCalls int

	lastAdd       liquidity.AddRequest
	lastRemove    liquidity.RemoveRequest
	lastAddRemove liquidity.AddRemoveRequest
}

func (f *fakeRunner) AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error) {
	f.lastAdd = req
	return f.op, f.err
}

func (f *fakeRunner) RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error) {
	f.lastRemove = req
	return f.op, f.err
}

func (f *fakeRunner) AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error) {
	f.lastAddRemove = req
	return f.op, f.err
}

func (f *fakeRunner) Snapshot(ctx context.Context, poolID string) (*liquidity.Position, error) {
	i := f.snapCalls
	f.snapCalls++
	var err error
	if i < len(f.snapErr) {
		err = f.snapErr[i]
	}
	if err != nil {
		return nil, err
	}
	return f.snapshots[i], nil
}

func TestExecuteOperation_DryRunSkipsSnapshots(t *testing.T) {
	r := &fakeRunner{op: &liquidity.Operation{ID: "op", DryRun: true}}

	report, err := executeOperation(context.Background(), r, operationParams{
		Type: liquidity.OpAdd, AddAmount: 3, Slippage: 0.02, DryRun: true, Wait: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "op", report.Operation.ID)
	assert.Nil(t, report.Before)
	assert.Zero(t, r.snapCalls)
	assert.Equal(t, liquidity.AddRequest{Amount: 3, Slippage: 0.02, DryRun: true}, r.lastAdd)
}

func TestExecuteOperation_WaitReportsDelta(t *testing.T) {
	r := &fakeRunner{
		op: &liquidity.Operation{ID: "op", Type: liquidity.OpRemove, RemoveScaled: 100, Slippage: 0.01, Signature: "sig"},
		snapshots: []*liquidity.Position{
			{LPTotal: 1000, CoinVault: 500, PcVault: 500, UserLP: 100},
			{LPTotal: 900, CoinVault: 450, PcVault: 450, UserLP: 0},
		},
	}

	report, err := executeOperation(context.Background(), r, operationParams{
		Type: liquidity.OpRemove, PoolID: "pool", RemoveAmount: 1, Slippage: 0.01, Wait: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, r.snapCalls)
	assert.Equal(t, "pool", r.lastRemove.PoolID)
	require.NotNil(t, report.Delta)
	assert.Equal(t, int64(-100), report.Delta.LPTotal)
	assert.Equal(t, int64(-100), report.Delta.UserLP)
	assert.Empty(t, report.Shortfalls)

	var buf bytes.Buffer
	printReport(&buf, report)
	assert.Contains(t, buf.String(), "Signature:   sig")
	assert.Contains(t, buf.String(), "User LP:    100 -> 0 (-100)")
}

func TestExecuteOperation_NoSignatureSkipsSecondSnapshot(t *testing.T) {
	r := &fakeRunner{
		op:        &liquidity.Operation{ID: "op", SubmitError: "send rejected"},
		snapshots: []*liquidity.Position{{LPTotal: 1}},
	}

	report, err := executeOperation(context.Background(), r, operationParams{
		Type: liquidity.OpAddRemove, AddAmount: 2, RemoveAmount: 1, Wait: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.snapCalls)
	assert.Nil(t, report.Delta)
	assert.Equal(t, uint64(2), r.lastAddRemove.AddAmount)
	assert.Equal(t, uint64(1), r.lastAddRemove.RemoveAmount)
}

func TestExecuteOperation_SecondSnapshotFailureStillReports(t *testing.T) {
	r := &fakeRunner{
		op:        &liquidity.Operation{ID: "op", Signature: "sig"},
		snapshots: []*liquidity.Position{{LPTotal: 1}, nil},
		snapErr:   []error{nil, errors.New("rpc down")},
	}

	report, err := executeOperation(context.Background(), r, operationParams{Type: liquidity.OpAdd, AddAmount: 1, Wait: true})
	require.NoError(t, err)
	assert.Equal(t, "sig", report.Operation.Signature)
	assert.Nil(t, report.After)
}

func TestExecuteOperation_ErrorsWrapped(t *testing.T) {
	r := &fakeRunner{err: liquidity.ErrAmountZero}

	_, err := executeOperation(context.Background(), r, operationParams{Type: liquidity.OpAdd})
	require.ErrorIs(t, err, liquidity.ErrAmountZero)

	_, err = executeOperation(context.Background(), r, operationParams{Type: "swap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation type")
}

func TestPrintReport_SimulationFailure(t *testing.T) {
	var buf bytes.Buffer
	printReport(&buf, &operationReport{Operation: &liquidity.Operation{
		ID:              "op",
		SimulationError: "custom program error: 0x1e",
		SimulationLogs:  []string{"Program log: exceeds desired slippage limit"},
	}})

	out := buf.String()
	assert.Contains(t, out, "Outcome:     submit_failed")
	assert.Contains(t, out, "custom program error: 0x1e")
	assert.Contains(t, out, "exceeds desired slippage limit")
}
