package liquidity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScaleAmount(t *testing.T) {
	tests := []struct {
		name       string
		raw        uint64
		slippage   float64
		multiplier uint64
		want       uint64
		wantErr    error
	}{
		{"one unit at six decimals", 1, 0.01, 1_000_000, 1_000_000, nil},
		{"zero slippage", 25, 0, 1_000, 25_000, nil},
		{"full slippage", 25, 1, 1_000, 25_000, nil},
		{"multiplier one", math.MaxUint64, 0.5, 1, math.MaxUint64, nil},
		{"zero amount", 0, 0.01, 1_000_000, 0, ErrAmountZero},
		{"zero amount wins over bad slippage", 0, 7, 1_000_000, 0, ErrAmountZero},
		{"negative slippage", 1, -0.01, 10, 0, ErrSlippageOutOfRange},
		{"slippage above one", 1, 1.01, 10, 0, ErrSlippageOutOfRange},
		{"nan slippage", 1, math.NaN(), 10, 0, ErrSlippageOutOfRange},
		{"overflow", math.MaxUint64, 0.01, 2, 0, ErrMultiplicationOverflow},
		{"bad slippage wins over overflow", math.MaxUint64, 2, 2, 0, ErrSlippageOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ScaleAmount(tt.raw, tt.slippage, tt.multiplier)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinExpected(t *testing.T) {
	tests := []struct {
		amount   uint64
		slippage float64
		want     uint64
	}{
		{1000, 0.01, 990},
		{1000, 0, 1000},
		{1000, 1, 0},
		{7, 0.5, 3},
	}
	for _, tt := range tests {
		got, err := MinExpected(tt.amount, tt.slippage)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "amount=%d slippage=%v", tt.amount, tt.slippage)
	}

	_, err := MinExpected(1000, 1.5)
	require.ErrorIs(t, err, ErrSlippageOutOfRange)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "deposit", Deposit.String())
	assert.Equal(t, "withdraw", Withdraw.String())
	assert.Equal(t, "kind(9)", Kind(9).String())
}
