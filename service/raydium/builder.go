package raydium

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	// MainnetAmmProgramID is the v4 AMM program on mainnet-beta.
	MainnetAmmProgramID = solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	// DevnetAmmProgramID is the v4 AMM program on devnet.
	DevnetAmmProgramID = solana.MustPublicKeyFromBase58("HWy1jotHpo6UqeQxx49dpYYdQB8wj9Qk9MdxwjLvDHB8")

	ErrAccountNotFound = errors.New("account not found")
)

// AmmProgramID returns the default AMM program for a network name.
func AmmProgramID(network string) solana.PublicKey {
	if network == "mainnet" {
		return MainnetAmmProgramID
	}
	return DevnetAmmProgramID
}

// AccountFetcher is the read access the builder needs.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
}

// Command is a liquidity command understood by the builder.
type Command interface {
	pool() solana.PublicKey
}

// DepositCommand adds liquidity. Amount is denominated on the base side
// selected by BaseCoin (coin when true, pc otherwise). Nil user accounts are
// derived as associated token accounts of the owner.
type DepositCommand struct {
	PoolID          solana.PublicKey
	Amount          uint64
	BaseCoin        bool
	AnotherMinLimit bool
	UserCoin        *solana.PublicKey
	UserPc          *solana.PublicKey
	UserLp          *solana.PublicKey
}

func (c DepositCommand) pool() solana.PublicKey { return c.PoolID }

// WithdrawCommand burns Amount LP tokens. When SlippageLimit is set the
// instruction carries minimum coin and pc amounts derived from the builder's
// configured tolerance.
type WithdrawCommand struct {
	PoolID        solana.PublicKey
	Amount        uint64
	SlippageLimit bool
	UserLp        *solana.PublicKey
	UserCoin      *solana.PublicKey
	UserPc        *solana.PublicKey
}

func (c WithdrawCommand) pool() solana.PublicKey { return c.PoolID }

// Builder derives accounts and encodes AMM deposit and withdraw instructions.
type Builder struct {
	rpc         AccountFetcher
	programID   solana.PublicKey
	owner       solana.PublicKey
	slippageBps uint64
	logger      *slog.Logger
}

// NewBuilder creates a Builder acting on behalf of owner, who also pays for
// any associated token accounts it creates.
func NewBuilder(rpcClient AccountFetcher, programID, owner solana.PublicKey, slippageBps uint64, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		rpc:         rpcClient,
		programID:   programID,
		owner:       owner,
		slippageBps: slippageBps,
		logger:      logger,
	}
}

// ProgramID returns the AMM program the builder targets.
func (b *Builder) ProgramID() solana.PublicKey {
	return b.programID
}

// Build returns the ordered instructions for cmd.
func (b *Builder) Build(ctx context.Context, cmd Command) ([]solana.Instruction, error) {
	keys, err := b.loadPool(ctx, cmd.pool())
	if err != nil {
		return nil, err
	}

	switch c := cmd.(type) {
	case DepositCommand:
		return b.deposit(keys, c)
	case WithdrawCommand:
		return b.withdraw(keys, c)
	default:
		return nil, fmt.Errorf("unsupported command %T", cmd)
	}
}

type poolKeys struct {
	id          solana.PublicKey
	info        *AmmInfo
	market      *MarketState
	authority   solana.PublicKey
	vaultSigner solana.PublicKey
	coinReserve uint64
	pcReserve   uint64
}

func (b *Builder) loadPool(ctx context.Context, poolID solana.PublicKey) (*poolKeys, error) {
	data, owner, err := b.fetch(ctx, poolID)
	if err != nil {
		return nil, fmt.Errorf("fetch pool %s: %w", poolID, err)
	}
	if !owner.Equals(b.programID) {
		return nil, fmt.Errorf("pool %s is owned by %s, not amm program %s", poolID, owner, b.programID)
	}
	info, err := DecodeAmmInfo(data)
	if err != nil {
		return nil, err
	}

	marketData, _, err := b.fetch(ctx, info.Market)
	if err != nil {
		return nil, fmt.Errorf("fetch market %s: %w", info.Market, err)
	}
	market, err := DecodeMarketState(marketData)
	if err != nil {
		return nil, err
	}

	authority, err := solana.CreateProgramAddress([][]byte{[]byte("amm authority"), {byte(info.Nonce)}}, b.programID)
	if err != nil {
		return nil, fmt.Errorf("derive amm authority: %w", err)
	}
	vaultSigner, err := market.VaultSigner(info.Market, info.MarketProgram)
	if err != nil {
		return nil, fmt.Errorf("derive vault signer: %w", err)
	}

	coinVault, err := b.tokenAmount(ctx, info.CoinVault)
	if err != nil {
		return nil, err
	}
	pcVault, err := b.tokenAmount(ctx, info.PcVault)
	if err != nil {
		return nil, err
	}
	coinReserve, pcReserve := reservesWithoutPnl(info, coinVault, pcVault)

	b.logger.DebugContext(ctx, "loaded pool keys",
		"pool", poolID.String(),
		"market", info.Market.String(),
		"coin_reserve", coinReserve,
		"pc_reserve", pcReserve,
		"lp_supply", info.LpAmount,
	)

	return &poolKeys{
		id:          poolID,
		info:        info,
		market:      market,
		authority:   authority,
		vaultSigner: vaultSigner,
		coinReserve: coinReserve,
		pcReserve:   pcReserve,
	}, nil
}

func (b *Builder) fetch(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, error) {
	res, err := b.rpc.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, solana.PublicKey{}, err
	}
	if res == nil || res.Value == nil {
		return nil, solana.PublicKey{}, ErrAccountNotFound
	}
	return res.GetBinary(), res.Value.Owner, nil
}

func (b *Builder) tokenAmount(ctx context.Context, account solana.PublicKey) (uint64, error) {
	data, _, err := b.fetch(ctx, account)
	if err != nil {
		return 0, fmt.Errorf("fetch token account %s: %w", account, err)
	}
	var acc token.Account
	if err := bin.NewBinDecoder(data).Decode(&acc); err != nil {
		return 0, fmt.Errorf("decode token account %s: %w", account, err)
	}
	return acc.Amount, nil
}

func (b *Builder) deposit(keys *poolKeys, c DepositCommand) ([]solana.Instruction, error) {
	var (
		data    DepositData
		another uint64
		err     error
	)
	if c.BaseCoin {
		another, err = proportional(c.Amount, keys.pcReserve, keys.coinReserve, true)
		if err != nil {
			return nil, fmt.Errorf("compute pc amount: %w", err)
		}
		maxPc, err := withSlippage(another, b.slippageBps, true)
		if err != nil {
			return nil, err
		}
		data = DepositData{MaxCoinAmount: c.Amount, MaxPcAmount: maxPc, BaseSide: BaseSideCoin}
	} else {
		another, err = proportional(c.Amount, keys.coinReserve, keys.pcReserve, true)
		if err != nil {
			return nil, fmt.Errorf("compute coin amount: %w", err)
		}
		maxCoin, err := withSlippage(another, b.slippageBps, true)
		if err != nil {
			return nil, err
		}
		data = DepositData{MaxCoinAmount: maxCoin, MaxPcAmount: c.Amount, BaseSide: BaseSidePc}
	}
	if c.AnotherMinLimit {
		minOther, err := withSlippage(another, b.slippageBps, false)
		if err != nil {
			return nil, err
		}
		data.OtherAmountMin = &minOther
	}

	var ixs []solana.Instruction
	userCoin, err := b.userAccount(c.UserCoin, keys.info.CoinVaultMint)
	if err != nil {
		return nil, err
	}
	userPc, err := b.userAccount(c.UserPc, keys.info.PcVaultMint)
	if err != nil {
		return nil, err
	}
	var userLp solana.PublicKey
	if c.UserLp != nil {
		userLp = *c.UserLp
	} else {
		create, ata, err := NewCreateATAIdempotentInstruction(b.owner, b.owner, keys.info.LpMint)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, create)
		userLp = ata
	}

	ix, err := NewDepositInstruction(b.programID, data, DepositAccounts{
		Amm:          keys.id,
		Authority:    keys.authority,
		OpenOrders:   keys.info.OpenOrders,
		TargetOrders: keys.info.TargetOrders,
		LpMint:       keys.info.LpMint,
		CoinVault:    keys.info.CoinVault,
		PcVault:      keys.info.PcVault,
		Market:       keys.info.Market,
		UserCoin:     userCoin,
		UserPc:       userPc,
		UserLp:       userLp,
		Owner:        b.owner,
		EventQueue:   keys.market.EventQueue,
	})
	if err != nil {
		return nil, err
	}
	return append(ixs, ix), nil
}

func (b *Builder) withdraw(keys *poolKeys, c WithdrawCommand) ([]solana.Instruction, error) {
	data := WithdrawData{Amount: c.Amount}
	if c.SlippageLimit {
		coinOut, err := proportional(c.Amount, keys.coinReserve, keys.info.LpAmount, false)
		if err != nil {
			return nil, fmt.Errorf("compute coin out: %w", err)
		}
		pcOut, err := proportional(c.Amount, keys.pcReserve, keys.info.LpAmount, false)
		if err != nil {
			return nil, fmt.Errorf("compute pc out: %w", err)
		}
		minCoin, err := withSlippage(coinOut, b.slippageBps, false)
		if err != nil {
			return nil, err
		}
		minPc, err := withSlippage(pcOut, b.slippageBps, false)
		if err != nil {
			return nil, err
		}
		data.MinCoinAmount = &minCoin
		data.MinPcAmount = &minPc
	}

	var ixs []solana.Instruction
	userLp, err := b.userAccount(c.UserLp, keys.info.LpMint)
	if err != nil {
		return nil, err
	}
	destinations := make([]solana.PublicKey, 0, 2)
	for _, dst := range []struct {
		explicit *solana.PublicKey
		mint     solana.PublicKey
	}{
		{c.UserCoin, keys.info.CoinVaultMint},
		{c.UserPc, keys.info.PcVaultMint},
	} {
		if dst.explicit != nil {
			destinations = append(destinations, *dst.explicit)
			continue
		}
		create, ata, err := NewCreateATAIdempotentInstruction(b.owner, b.owner, dst.mint)
		if err != nil {
			return nil, err
		}
		ixs = append(ixs, create)
		destinations = append(destinations, ata)
	}

	ix, err := NewWithdrawInstruction(b.programID, data, WithdrawAccounts{
		Amm:             keys.id,
		Authority:       keys.authority,
		OpenOrders:      keys.info.OpenOrders,
		TargetOrders:    keys.info.TargetOrders,
		LpMint:          keys.info.LpMint,
		CoinVault:       keys.info.CoinVault,
		PcVault:         keys.info.PcVault,
		MarketProgram:   keys.info.MarketProgram,
		Market:          keys.info.Market,
		MarketCoinVault: keys.market.BaseVault,
		MarketPcVault:   keys.market.QuoteVault,
		VaultSigner:     keys.vaultSigner,
		UserLp:          userLp,
		UserCoin:        destinations[0],
		UserPc:          destinations[1],
		Owner:           b.owner,
		EventQueue:      keys.market.EventQueue,
		Bids:            keys.market.Bids,
		Asks:            keys.market.Asks,
	})
	if err != nil {
		return nil, err
	}
	return append(ixs, ix), nil
}

func (b *Builder) userAccount(explicit *solana.PublicKey, mint solana.PublicKey) (solana.PublicKey, error) {
	if explicit != nil {
		return *explicit, nil
	}
	ata, _, err := solana.FindAssociatedTokenAddress(b.owner, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("derive associated token account for %s: %w", mint, err)
	}
	return ata, nil
}
