package cache

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Market identifies the order book a pool trades against.
type Market struct {
	MarketID     string `json:"marketId"`
	RequestQueue string `json:"requestQueue"`
	EventQueue   string `json:"eventQueue"`
	Bids         string `json:"bids"`
	Asks         string `json:"asks"`
	BaseVault    string `json:"baseVault"`
	QuoteVault   string `json:"quoteVault"`
	BaseMint     string `json:"baseMint"`
	// The upstream snapshot spells this key without the trailing "t".
	QuoteMint string `json:"quoteMin"`
}

// Pool identifies an AMM pool and the accounts it owns.
type Pool struct {
	ProgramID        string `json:"programId"`
	AmmID            string `json:"ammId"`
	AmmAuthority     string `json:"ammAuthority"`
	AmmOpenOrders    string `json:"ammOpenOrders"`
	LPMint           string `json:"lpMint"`
	CoinMint         string `json:"coinMint"`
	PcMint           string `json:"pcMint"`
	CoinVault        string `json:"coinVault"`
	PcVault          string `json:"pcVault"`
	WithdrawQueue    string `json:"withdrawQueue"`
	AmmTargetOrders  string `json:"ammTargetOrders"`
	PoolTempLP       string `json:"poolTempLp"`
	MarketProgramID  string `json:"marketProgramId"`
	MarketID         string `json:"marketId"`
	AmmConfigID      string `json:"ammConfigId"`
	FeeDestinationID string `json:"feeDestinationId"`
}

// AmmKey parses the pool id.
func (p *Pool) AmmKey() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(p.AmmID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("pool ammId %q: %w", p.AmmID, err)
	}
	return key, nil
}

// LPMintKey parses the LP mint.
func (p *Pool) LPMintKey() (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(p.LPMint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("pool lpMint %q: %w", p.LPMint, err)
	}
	return key, nil
}

func (m *Market) validate() error {
	if m.MarketID == "" {
		return fmt.Errorf("%w: market record has no marketId", ErrMalformed)
	}
	return nil
}

func (p *Pool) validate() error {
	if p.AmmID == "" {
		return fmt.Errorf("%w: pool record has no ammId", ErrMalformed)
	}
	if p.MarketID == "" {
		return fmt.Errorf("%w: pool record has no marketId", ErrMalformed)
	}
	return nil
}
