package liquidity

import (
	"context"
	"errors"
	"log/slog"

	solanago "github.com/gagliardetto/solana-go"
)

// ErrNoOperation is returned when neither an add nor a remove was requested.
var ErrNoOperation = errors.New("no liquidity operation requested")

// Part describes one intent's contribution to a composed transaction.
type Part struct {
	Kind         Kind
	PoolID       solanago.PublicKey
	RawAmount    uint64
	ScaledAmount uint64
	Slippage     float64
	Instructions int
}

// ComposedTransaction is the ordered instruction list for one atomic
// submission, plus what each intent contributed to it.
type ComposedTransaction struct {
	Instructions []solanago.Instruction
	Parts        []Part
}

// Composer validates intents and concatenates their instruction sets.
type Composer struct {
	adapter *Adapter
	logger  *slog.Logger
}

// NewComposer creates a Composer.
func NewComposer(adapter *Adapter, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{adapter: adapter, logger: logger}
}

// Compose builds add and/or remove into a single instruction sequence, add
// first. Every intent is validated and scaled before the builder is called,
// and any failure discards the whole composition.
func (c *Composer) Compose(ctx context.Context, multiplier uint64, add, remove *Intent) (*ComposedTransaction, error) {
	intents := make([]Intent, 0, 2)
	if add != nil {
		in := *add
		in.Kind = Deposit
		intents = append(intents, in)
	}
	if remove != nil {
		in := *remove
		in.Kind = Withdraw
		intents = append(intents, in)
	}
	if len(intents) == 0 {
		return nil, ErrNoOperation
	}

	parts := make([]Part, len(intents))
	for i, in := range intents {
		scaled, err := ScaleAmount(in.Amount, in.Slippage, multiplier)
		if err != nil {
			return nil, err
		}
		parts[i] = Part{
			Kind:         in.Kind,
			PoolID:       in.PoolID,
			RawAmount:    in.Amount,
			ScaledAmount: scaled,
			Slippage:     in.Slippage,
		}
	}

	var ixs []solanago.Instruction
	for i := range parts {
		set, err := c.adapter.Build(ctx, parts[i].Kind, parts[i].PoolID, parts[i].ScaledAmount, parts[i].Slippage)
		if err != nil {
			return nil, err
		}
		parts[i].Instructions = len(set)
		ixs = append(ixs, set...)
	}

	c.logger.InfoContext(ctx, "composed liquidity transaction",
		"parts", len(parts),
		"instructions", len(ixs),
	)
	return &ComposedTransaction{Instructions: ixs, Parts: parts}, nil
}
