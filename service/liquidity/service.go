package liquidity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/brojonat/lpctl/service/solana"
	solanago "github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
)

var (
	ErrPoolMismatch   = errors.New("requested pool is not the cached pool")
	ErrInvalidPoolID  = errors.New("invalid pool id")
	ErrZeroMultiplier = errors.New("pool reports a zero decimal multiplier")
)

// CacheResolver supplies the market and pool snapshots.
type CacheResolver interface {
	Resolve(ctx context.Context) (*cache.Market, *cache.Pool, error)
}

// PoolInspector reads live balances.
type PoolInspector interface {
	FetchPoolState(ctx context.Context, poolID solanago.PublicKey) (*solana.PoolState, error)
	FetchTokenBalance(ctx context.Context, owner, mint solanago.PublicKey) (uint64, error)
}

// Executor runs instructions through simulation and, unless dryRun,
// submission.
type Executor interface {
	Process(ctx context.Context, ixs []solanago.Instruction, dryRun bool) (*solana.PipelineResult, error)
}

// Journal persists completed operations.
type Journal interface {
	RecordOperation(ctx context.Context, op *Operation) error
}

// Notifier announces completed operations.
type Notifier interface {
	PublishOperation(ctx context.Context, op *Operation) error
}

// AddRequest deposits Amount whole pc units into the cached pool.
// PoolID is optional; when set it must equal the cached pool id.
type AddRequest struct {
	PoolID   string  `json:"pool_id,omitempty"`
	Amount   uint64  `json:"amount"`
	Slippage float64 `json:"slippage"`
	DryRun   bool    `json:"dry_run"`
}

// RemoveRequest burns Amount whole LP units from the cached pool.
type RemoveRequest struct {
	PoolID   string  `json:"pool_id,omitempty"`
	Amount   uint64  `json:"amount"`
	Slippage float64 `json:"slippage"`
	DryRun   bool    `json:"dry_run"`
}

// AddRemoveRequest deposits and withdraws in a single transaction.
type AddRemoveRequest struct {
	PoolID       string  `json:"pool_id,omitempty"`
	AddAmount    uint64  `json:"add_amount"`
	RemoveAmount uint64  `json:"remove_amount"`
	Slippage     float64 `json:"slippage"`
	DryRun       bool    `json:"dry_run"`
}

// IsValidation reports whether err was caused by the caller's input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrAmountZero) ||
		errors.Is(err, ErrSlippageOutOfRange) ||
		errors.Is(err, ErrMultiplicationOverflow) ||
		errors.Is(err, ErrNoOperation) ||
		errors.Is(err, ErrInvalidPoolID)
}

// Service runs liquidity operations end to end: resolve the cached pool,
// scale and build, then hand the transaction to the executor.
type Service struct {
	cache     CacheResolver
	inspector PoolInspector
	composer  *Composer
	executor  Executor
	owner     solanago.PublicKey
	journal   Journal
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires a Service. owner is the wallet whose LP balance is
// reported by Snapshot.
func NewService(
	resolver CacheResolver,
	inspector PoolInspector,
	composer *Composer,
	executor Executor,
	owner solanago.PublicKey,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cache:     resolver,
		inspector: inspector,
		composer:  composer,
		executor:  executor,
		owner:     owner,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// WithJournal records every completed operation to j. Journal failures
// are logged and never fail the operation.
func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

// WithNotifier publishes every completed operation to n on a best-effort
// basis.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// Owner returns the wallet the service acts for.
func (s *Service) Owner() solanago.PublicKey {
	return s.owner
}

// AddLiquidity deposits into the cached pool.
func (s *Service) AddLiquidity(ctx context.Context, req AddRequest) (*Operation, error) {
	if err := CheckIntent(req.Amount, req.Slippage); err != nil {
		return nil, err
	}
	add := &Intent{Amount: req.Amount, Slippage: req.Slippage}
	return s.run(ctx, OpAdd, req.PoolID, add, nil, req.DryRun)
}

// RemoveLiquidity withdraws from the cached pool.
func (s *Service) RemoveLiquidity(ctx context.Context, req RemoveRequest) (*Operation, error) {
	if err := CheckIntent(req.Amount, req.Slippage); err != nil {
		return nil, err
	}
	remove := &Intent{Amount: req.Amount, Slippage: req.Slippage}
	return s.run(ctx, OpRemove, req.PoolID, nil, remove, req.DryRun)
}

// AddRemoveLiquidity deposits and withdraws atomically. Both legs share
// the slippage tolerance; the deposit's instructions come first.
func (s *Service) AddRemoveLiquidity(ctx context.Context, req AddRemoveRequest) (*Operation, error) {
	if err := CheckIntent(req.AddAmount, req.Slippage); err != nil {
		return nil, fmt.Errorf("add: %w", err)
	}
	if err := CheckIntent(req.RemoveAmount, req.Slippage); err != nil {
		return nil, fmt.Errorf("remove: %w", err)
	}
	add := &Intent{Amount: req.AddAmount, Slippage: req.Slippage}
	remove := &Intent{Amount: req.RemoveAmount, Slippage: req.Slippage}
	return s.run(ctx, OpAddRemove, req.PoolID, add, remove, req.DryRun)
}

func (s *Service) run(ctx context.Context, opType OperationType, requested string, add, remove *Intent, dryRun bool) (*Operation, error) {
	logger := s.logger.With("operation", string(opType), "dry_run", dryRun)

	market, pool, poolID, err := s.resolve(ctx, requested)
	if err != nil {
		s.metrics.RecordOperation(string(opType), "error")
		return nil, err
	}

	state, err := s.inspector.FetchPoolState(ctx, poolID)
	if err != nil {
		s.metrics.RecordOperation(string(opType), "error")
		return nil, fmt.Errorf("fetch pool state: %w", err)
	}
	if state.SysDecimalValue == 0 {
		s.metrics.RecordOperation(string(opType), "error")
		return nil, fmt.Errorf("pool %s: %w", poolID, ErrZeroMultiplier)
	}

	if add != nil {
		add.PoolID = poolID
	}
	if remove != nil {
		remove.PoolID = poolID
	}
	composed, err := s.composer.Compose(ctx, state.SysDecimalValue, add, remove)
	if err != nil {
		s.metrics.RecordOperation(string(opType), "error")
		return nil, err
	}
	s.metrics.RecordInstructions(string(opType), len(composed.Instructions))

	result, err := s.executor.Process(ctx, composed.Instructions, dryRun)
	if err != nil {
		s.metrics.RecordOperation(string(opType), "error")
		return nil, err
	}

	op := &Operation{
		ID:           uuid.New().String(),
		Type:         opType,
		PoolID:       pool.AmmID,
		MarketID:     market.MarketID,
		Multiplier:   state.SysDecimalValue,
		Instructions: len(composed.Instructions),
		CreatedAt:    s.now().UTC(),
	}
	for _, part := range composed.Parts {
		op.Slippage = part.Slippage
		switch part.Kind {
		case Deposit:
			op.AddAmount = part.RawAmount
			op.AddScaled = part.ScaledAmount
		case Withdraw:
			op.RemoveAmount = part.RawAmount
			op.RemoveScaled = part.ScaledAmount
		}
	}
	op.applyResult(result)

	s.metrics.RecordOperation(string(opType), op.Outcome())
	logger.InfoContext(ctx, "liquidity operation finished",
		"id", op.ID,
		"pool", op.PoolID,
		"outcome", op.Outcome(),
		"instructions", op.Instructions,
		"simulation_error", op.SimulationError,
		"signature", op.Signature,
		"submit_error", op.SubmitError,
	)

	s.report(ctx, op)
	return op, nil
}

// resolve loads the snapshots and checks requested against the cached
// pool id when requested is non-empty.
func (s *Service) resolve(ctx context.Context, requested string) (*cache.Market, *cache.Pool, solanago.PublicKey, error) {
	if requested != "" {
		if _, err := solanago.PublicKeyFromBase58(requested); err != nil {
			return nil, nil, solanago.PublicKey{}, fmt.Errorf("%w %q: %v", ErrInvalidPoolID, requested, err)
		}
	}

	market, pool, err := s.cache.Resolve(ctx)
	s.metrics.RecordCacheResolution("pool", err)
	if err != nil {
		return nil, nil, solanago.PublicKey{}, err
	}
	if requested != "" && requested != pool.AmmID {
		return nil, nil, solanago.PublicKey{}, fmt.Errorf("%w: requested %s, cached %s", ErrPoolMismatch, requested, pool.AmmID)
	}
	key, err := pool.AmmKey()
	if err != nil {
		return nil, nil, solanago.PublicKey{}, &cache.Error{Op: "resolve pool", Err: fmt.Errorf("%w: %v", cache.ErrMalformed, err)}
	}
	return market, pool, key, nil
}

func (s *Service) report(ctx context.Context, op *Operation) {
	if s.journal != nil {
		if err := s.journal.RecordOperation(ctx, op); err != nil {
			s.logger.WarnContext(ctx, "failed to journal operation", "id", op.ID, "error", err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.PublishOperation(ctx, op); err != nil {
			s.logger.WarnContext(ctx, "failed to publish operation", "id", op.ID, "error", err)
		}
	}
}

// PoolState returns the live state of the cached pool.
func (s *Service) PoolState(ctx context.Context, requested string) (*solana.PoolState, error) {
	_, _, poolID, err := s.resolve(ctx, requested)
	if err != nil {
		return nil, err
	}
	return s.inspector.FetchPoolState(ctx, poolID)
}

// Snapshot reads the cached pool's balances together with the owner's LP
// holding.
func (s *Service) Snapshot(ctx context.Context, requested string) (*Position, error) {
	state, err := s.PoolState(ctx, requested)
	if err != nil {
		return nil, err
	}
	userLP, err := s.inspector.FetchTokenBalance(ctx, s.owner, state.LPMint)
	if err != nil {
		return nil, fmt.Errorf("fetch lp balance: %w", err)
	}
	return &Position{
		PoolID:    state.PoolID.String(),
		LPTotal:   state.LPTotal,
		CoinVault: state.CoinVaultBalance,
		PcVault:   state.PcVaultBalance,
		UserLP:    userLP,
		TakenAt:   s.now().UTC(),
	}, nil
}
