package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/brojonat/lpctl/service/raydium"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
)

// ErrAccountNotFound is returned when a queried account does not exist.
var ErrAccountNotFound = errors.New("account not found")

// Inspector reads pool and token balances. Every call goes to the chain;
// nothing is cached.
type Inspector struct {
	rpc    RPCClient
	logger *slog.Logger
}

// NewInspector creates an Inspector.
func NewInspector(rpcClient RPCClient, logger *slog.Logger) *Inspector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Inspector{rpc: rpcClient, logger: logger}
}

// FetchPoolState reads the AMM account and both vault balances.
func (i *Inspector) FetchPoolState(ctx context.Context, poolID solana.PublicKey) (*PoolState, error) {
	data, err := i.accountData(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", poolID, err)
	}
	amm, err := raydium.DecodeAmmInfo(data)
	if err != nil {
		return nil, fmt.Errorf("pool %s: %w", poolID, err)
	}

	coin, err := i.FetchTokenAccountBalance(ctx, amm.CoinVault)
	if err != nil {
		return nil, fmt.Errorf("coin vault: %w", err)
	}
	pc, err := i.FetchTokenAccountBalance(ctx, amm.PcVault)
	if err != nil {
		return nil, fmt.Errorf("pc vault: %w", err)
	}

	state := &PoolState{
		PoolID:           poolID,
		LPMint:           amm.LpMint,
		CoinMint:         amm.CoinVaultMint,
		PcMint:           amm.PcVaultMint,
		LPTotal:          amm.LpAmount,
		CoinVaultBalance: coin,
		PcVaultBalance:   pc,
		SysDecimalValue:  amm.SysDecimalValue,
		CoinDecimals:     amm.CoinDecimals,
		PcDecimals:       amm.PcDecimals,
		Amm:              amm,
	}
	i.logger.DebugContext(ctx, "fetched pool state",
		"pool", poolID.String(),
		"lp_total", state.LPTotal,
		"coin_vault", state.CoinVaultBalance,
		"pc_vault", state.PcVaultBalance,
	)
	return state, nil
}

// FetchTokenBalance returns the amount held in owner's associated token
// account for mint. A missing account holds zero.
func (i *Inspector) FetchTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (uint64, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return 0, fmt.Errorf("derive associated token account: %w", err)
	}
	amount, err := i.FetchTokenAccountBalance(ctx, ata)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	return amount, err
}

// FetchTokenAccountBalance returns the amount held by a token account.
func (i *Inspector) FetchTokenAccountBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	data, err := i.accountData(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("fetch token account %s: %w", account, err)
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return 0, fmt.Errorf("decode token account %s: %w", account, err)
	}
	return acc.Amount, nil
}

func (i *Inspector) accountData(ctx context.Context, account solana.PublicKey) ([]byte, error) {
	res, err := i.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	if res == nil || res.Value == nil {
		return nil, ErrAccountNotFound
	}
	data := res.GetBinary()
	if len(data) == 0 {
		return nil, ErrAccountNotFound
	}
	return data, nil
}
