package liquidity

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/raydium"
	"github.com/brojonat/lpctl/service/solana"
	solanago "github.com/gagliardetto/solana-go"
)

const (
	testPoolID   = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"
	testMarketID = "9wFFyRfZBsuAha4YcuxcXLKwMxJR43S7fPfQLusDBzvT"
	testLPMint   = "8HoQnePLqPj4M7PUDzfw8e3Ymdwgc7NLGnaTUapubyvu"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBuilder returns a fixed number of marker instructions per command
// kind. The first data byte is 'd' or 'w', the second is the index.
type fakeBuilder struct {
	mu       sync.Mutex
	deposits int
	withdraw int
	err      map[string]error
	commands []raydium.Command
}

func (f *fakeBuilder) Build(ctx context.Context, cmd raydium.Command) ([]solanago.Instruction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)

	var tag byte
	var n int
	switch cmd.(type) {
	case raydium.DepositCommand:
		tag, n = 'd', f.deposits
		if err := f.err["deposit"]; err != nil {
			return nil, err
		}
	case raydium.WithdrawCommand:
		tag, n = 'w', f.withdraw
		if err := f.err["withdraw"]; err != nil {
			return nil, err
		}
	}
	out := make([]solanago.Instruction, n)
	for i := range out {
		out[i] = solanago.NewInstruction(solanago.SystemProgramID, nil, []byte{tag, byte(i)})
	}
	return out, nil
}

func (f *fakeBuilder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

type fakeCache struct {
	market *cache.Market
	pool   *cache.Pool
	err    error
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		market: &cache.Market{MarketID: testMarketID},
		pool:   &cache.Pool{AmmID: testPoolID, MarketID: testMarketID, LPMint: testLPMint},
	}
}

func (f *fakeCache) Resolve(ctx context.Context) (*cache.Market, *cache.Pool, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.market, f.pool, nil
}

type fakeInspector struct {
	state    *solana.PoolState
	stateErr error
	userLP   uint64
	fetches  int
}

func newFakeInspector() *fakeInspector {
	return &fakeInspector{
		state: &solana.PoolState{
			PoolID:           solanago.MustPublicKeyFromBase58(testPoolID),
			LPMint:           solanago.MustPublicKeyFromBase58(testLPMint),
			LPTotal:          5_000_000,
			CoinVaultBalance: 1_000_000,
			PcVaultBalance:   2_000_000,
			SysDecimalValue:  1_000_000,
		},
		userLP: 42,
	}
}

func (f *fakeInspector) FetchPoolState(ctx context.Context, poolID solanago.PublicKey) (*solana.PoolState, error) {
	f.fetches++
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakeInspector) FetchTokenBalance(ctx context.Context, owner, mint solanago.PublicKey) (uint64, error) {
	return f.userLP, nil
}

type fakeExecutor struct {
	result *solana.PipelineResult
	err    error
	ixs    []solanago.Instruction
	dryRun bool
	calls  int
}

func (f *fakeExecutor) Process(ctx context.Context, ixs []solanago.Instruction, dryRun bool) (*solana.PipelineResult, error) {
	f.calls++
	f.ixs = ixs
	f.dryRun = dryRun
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	if dryRun {
		return &solana.PipelineResult{DryRun: true, Final: solana.StageSkippedDryRun}, nil
	}
	sig := solanago.Signature{1}
	return &solana.PipelineResult{Final: solana.StageSubmitted, Signature: &sig}, nil
}

type recordingJournal struct {
	ops []*Operation
	err error
}

func (r *recordingJournal) RecordOperation(ctx context.Context, op *Operation) error {
	r.ops = append(r.ops, op)
	return r.err
}

func (r *recordingJournal) PublishOperation(ctx context.Context, op *Operation) error {
	r.ops = append(r.ops, op)
	return r.err
}
