package liquidity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/lpctl/service/raydium"
	solanago "github.com/gagliardetto/solana-go"
)

// ErrNoInstructions is returned when the builder produced nothing for a
// request. An empty build is never treated as a successful no-op.
var ErrNoInstructions = errors.New("instruction builder returned no instructions")

// InstructionBuilder turns an AMM command into chain instructions.
type InstructionBuilder interface {
	Build(ctx context.Context, cmd raydium.Command) ([]solanago.Instruction, error)
}

// InstructionSet is the ordered output of one build.
type InstructionSet []solanago.Instruction

// DelegationError wraps a failure reported by the instruction builder.
type DelegationError struct {
	Kind   Kind
	PoolID solanago.PublicKey
	Err    error
}

func (e *DelegationError) Error() string {
	return fmt.Sprintf("build %s instructions for pool %s: %v", e.Kind, e.PoolID, e.Err)
}

func (e *DelegationError) Unwrap() error {
	return e.Err
}

// Adapter maps validated domain values onto builder commands.
type Adapter struct {
	builder InstructionBuilder
	logger  *slog.Logger
}

// NewAdapter creates an Adapter around builder.
func NewAdapter(builder InstructionBuilder, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{builder: builder, logger: logger}
}

// Build requests the instructions for a scaled amount.
//
// Deposits always quote on the pc side with user accounts left for the
// builder to derive. Withdrawals pass slippage as an on/off gate: any
// tolerance above zero enables the builder's minimum-out limit.
func (a *Adapter) Build(ctx context.Context, kind Kind, poolID solanago.PublicKey, scaled uint64, slippage float64) (InstructionSet, error) {
	var cmd raydium.Command
	switch kind {
	case Deposit:
		cmd = raydium.DepositCommand{
			PoolID:          poolID,
			Amount:          scaled,
			BaseCoin:        false,
			AnotherMinLimit: false,
		}
	case Withdraw:
		cmd = raydium.WithdrawCommand{
			PoolID:        poolID,
			Amount:        scaled,
			SlippageLimit: slippage > 0,
		}
	default:
		return nil, fmt.Errorf("unknown liquidity kind %s", kind)
	}

	ixs, err := a.builder.Build(ctx, cmd)
	if err != nil {
		return nil, &DelegationError{Kind: kind, PoolID: poolID, Err: err}
	}
	if len(ixs) == 0 {
		return nil, fmt.Errorf("%s for pool %s: %w", kind, poolID, ErrNoInstructions)
	}

	a.logger.DebugContext(ctx, "built instructions",
		"kind", kind.String(),
		"pool", poolID.String(),
		"amount", scaled,
		"count", len(ixs),
	)
	return InstructionSet(ixs), nil
}
