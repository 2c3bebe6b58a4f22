package liquidity

import (
	"errors"
	"fmt"
	"math/bits"
	"strconv"

	sdkmath "cosmossdk.io/math"
	solanago "github.com/gagliardetto/solana-go"
)

var (
	ErrAmountZero             = errors.New("amount must be greater than zero")
	ErrSlippageOutOfRange     = errors.New("slippage must be within [0, 1]")
	ErrMultiplicationOverflow = errors.New("scaled amount overflows u64")
)

// Kind is the direction of a liquidity operation.
type Kind int

const (
	Deposit Kind = iota
	Withdraw
)

func (k Kind) String() string {
	switch k {
	case Deposit:
		return "deposit"
	case Withdraw:
		return "withdraw"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Intent is a request to add or remove liquidity. Amount is in whole
// units, before decimal scaling.
type Intent struct {
	Kind     Kind
	PoolID   solanago.PublicKey
	Amount   uint64
	Slippage float64
}

// CheckIntent validates the amount and slippage of an intent without scaling.
func CheckIntent(amount uint64, slippage float64) error {
	if amount == 0 {
		return ErrAmountZero
	}
	// Written as a negated range check so NaN is rejected too.
	if !(slippage >= 0 && slippage <= 1) {
		return fmt.Errorf("%w: got %v", ErrSlippageOutOfRange, slippage)
	}
	return nil
}

// ScaleAmount validates raw and slippage, then returns raw * multiplier.
// Checks run in order: zero amount, slippage range, overflow.
func ScaleAmount(raw uint64, slippage float64, multiplier uint64) (uint64, error) {
	if err := CheckIntent(raw, slippage); err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(raw, multiplier)
	if hi != 0 {
		return 0, fmt.Errorf("%w: %d * %d", ErrMultiplicationOverflow, raw, multiplier)
	}
	return lo, nil
}

// MinExpected returns floor(amount * (1 - slippage)), the smallest outcome
// an operation should produce under the given tolerance.
func MinExpected(amount uint64, slippage float64) (uint64, error) {
	if !(slippage >= 0 && slippage <= 1) {
		return 0, fmt.Errorf("%w: got %v", ErrSlippageOutOfRange, slippage)
	}
	tolerance, err := sdkmath.LegacyNewDecFromStr(strconv.FormatFloat(slippage, 'f', 18, 64))
	if err != nil {
		return 0, fmt.Errorf("parse slippage: %w", err)
	}
	factor := sdkmath.LegacyOneDec().Sub(tolerance)
	out := sdkmath.LegacyNewDecFromInt(sdkmath.NewIntFromUint64(amount)).Mul(factor).TruncateInt()
	return out.Uint64(), nil
}
