package raydium

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

const bpsDenominator = 10_000

var errEmptyReserve = errors.New("pool reserve is empty")

// proportional returns amount * numerator / denominator, rounding up when
// roundUp is set. Intermediate products are computed without overflow.
func proportional(amount, numerator, denominator uint64, roundUp bool) (uint64, error) {
	if denominator == 0 {
		return 0, errEmptyReserve
	}
	num := sdkmath.NewIntFromUint64(amount).Mul(sdkmath.NewIntFromUint64(numerator))
	den := sdkmath.NewIntFromUint64(denominator)
	out := num.Quo(den)
	if roundUp && !num.Mod(den).IsZero() {
		out = out.AddRaw(1)
	}
	if !out.IsUint64() {
		return 0, fmt.Errorf("%d * %d / %d does not fit in u64", amount, numerator, denominator)
	}
	return out.Uint64(), nil
}

// withSlippage widens amount by bps basis points, upward for maximums and
// downward for minimums.
func withSlippage(amount, bps uint64, up bool) (uint64, error) {
	factor := uint64(bpsDenominator) + bps
	if !up {
		if bps > bpsDenominator {
			return 0, nil
		}
		factor = bpsDenominator - bps
	}
	return proportional(amount, factor, bpsDenominator, up)
}

// reservesWithoutPnl returns vault balances net of PnL the pool owes itself.
func reservesWithoutPnl(info *AmmInfo, coinVault, pcVault uint64) (uint64, uint64) {
	coin, pc := uint64(0), uint64(0)
	if coinVault > info.StateData.NeedTakePnlCoin {
		coin = coinVault - info.StateData.NeedTakePnlCoin
	}
	if pcVault > info.StateData.NeedTakePnlPc {
		pc = pcVault - info.StateData.NeedTakePnlPc
	}
	return coin, pc
}
