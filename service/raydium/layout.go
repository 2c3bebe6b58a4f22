package raydium

import (
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	// AmmInfoSize is the on-chain size of a v4 AMM state account.
	AmmInfoSize = 752

	// MarketStateSize is the size of an OpenBook market account, including
	// its 5-byte head and 7-byte tail padding.
	MarketStateSize = 388
)

// Fees mirrors the fee section of the AMM state.
type Fees struct {
	MinSeparateNumerator   uint64
	MinSeparateDenominator uint64
	TradeFeeNumerator      uint64
	TradeFeeDenominator    uint64
	PnlNumerator           uint64
	PnlDenominator         uint64
	SwapFeeNumerator       uint64
	SwapFeeDenominator     uint64
}

// StateData holds the accumulated PnL and swap counters of the pool.
type StateData struct {
	NeedTakePnlCoin     uint64
	NeedTakePnlPc       uint64
	TotalPnlPc          uint64
	TotalPnlCoin        uint64
	PoolOpenTime        uint64
	Padding             [2]uint64
	OrderbookToInitTime uint64
	SwapCoinInAmount    bin.Uint128
	SwapPcOutAmount     bin.Uint128
	SwapAccPcFee        uint64
	SwapPcInAmount      bin.Uint128
	SwapCoinOutAmount   bin.Uint128
	SwapAccCoinFee      uint64
}

// AmmInfo is the decoded state of a v4 AMM pool account.
type AmmInfo struct {
	Status             uint64
	Nonce              uint64
	OrderNum           uint64
	Depth              uint64
	CoinDecimals       uint64
	PcDecimals         uint64
	State              uint64
	ResetFlag          uint64
	MinSize            uint64
	VolMaxCutRatio     uint64
	AmountWave         uint64
	CoinLotSize        uint64
	PcLotSize          uint64
	MinPriceMultiplier uint64
	MaxPriceMultiplier uint64
	SysDecimalValue    uint64
	Fees               Fees
	StateData          StateData
	CoinVault          solana.PublicKey
	PcVault            solana.PublicKey
	CoinVaultMint      solana.PublicKey
	PcVaultMint        solana.PublicKey
	LpMint             solana.PublicKey
	OpenOrders         solana.PublicKey
	Market             solana.PublicKey
	MarketProgram      solana.PublicKey
	TargetOrders       solana.PublicKey
	Padding1           [8]uint64
	AmmOwner           solana.PublicKey
	LpAmount           uint64
	ClientOrderID      uint64
	RecentEpoch        uint64
	Padding2           uint64
}

// MarketState is the subset of an OpenBook market account the AMM
// instructions need. Field order follows the on-chain layout.
type MarketState struct {
	Head                   [5]byte
	AccountFlags           uint64
	OwnAddress             solana.PublicKey
	VaultSignerNonce       uint64
	BaseMint               solana.PublicKey
	QuoteMint              solana.PublicKey
	BaseVault              solana.PublicKey
	BaseDepositsTotal      uint64
	BaseFeesAccrued        uint64
	QuoteVault             solana.PublicKey
	QuoteDepositsTotal     uint64
	QuoteFeesAccrued       uint64
	QuoteDustThreshold     uint64
	RequestQueue           solana.PublicKey
	EventQueue             solana.PublicKey
	Bids                   solana.PublicKey
	Asks                   solana.PublicKey
	BaseLotSize            uint64
	QuoteLotSize           uint64
	FeeRateBps             uint64
	ReferrerRebatesAccrued uint64
	Tail                   [7]byte
}

// DecodeAmmInfo decodes raw AMM account data.
func DecodeAmmInfo(data []byte) (*AmmInfo, error) {
	if len(data) < AmmInfoSize {
		return nil, fmt.Errorf("amm account too short: got %d bytes, want %d", len(data), AmmInfoSize)
	}
	var info AmmInfo
	if err := bin.NewBinDecoder(data).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode amm info: %w", err)
	}
	return &info, nil
}

// DecodeMarketState decodes raw OpenBook market account data.
func DecodeMarketState(data []byte) (*MarketState, error) {
	if len(data) < MarketStateSize {
		return nil, fmt.Errorf("market account too short: got %d bytes, want %d", len(data), MarketStateSize)
	}
	var m MarketState
	if err := bin.NewBinDecoder(data).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode market state: %w", err)
	}
	return &m, nil
}

// VaultSigner derives the market's vault signer from its nonce.
func (m *MarketState) VaultSigner(market, marketProgram solana.PublicKey) (solana.PublicKey, error) {
	nonce := make([]byte, 8)
	for i := 0; i < 8; i++ {
		nonce[i] = byte(m.VaultSignerNonce >> (8 * i))
	}
	return solana.CreateProgramAddress([][]byte{market.Bytes(), nonce}, marketProgram)
}
