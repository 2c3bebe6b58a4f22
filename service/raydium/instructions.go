package raydium

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

const (
	instructionDeposit  uint8 = 3
	instructionWithdraw uint8 = 4

	// Base side selector for deposits.
	BaseSideCoin uint64 = 0
	BaseSidePc   uint64 = 1
)

// DepositData is the argument block of the AMM deposit instruction.
type DepositData struct {
	MaxCoinAmount  uint64
	MaxPcAmount    uint64
	BaseSide       uint64
	OtherAmountMin *uint64
}

func (d DepositData) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint8(instructionDeposit); err != nil {
		return err
	}
	if err := encoder.WriteUint64(d.MaxCoinAmount, binary.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint64(d.MaxPcAmount, binary.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint64(d.BaseSide, binary.LittleEndian); err != nil {
		return err
	}
	// The program treats a trailing u64 as Some(other_amount_min).
	if d.OtherAmountMin != nil {
		return encoder.WriteUint64(*d.OtherAmountMin, binary.LittleEndian)
	}
	return nil
}

// WithdrawData is the argument block of the AMM withdraw instruction.
// The minimum amounts are only honoured when both are set.
type WithdrawData struct {
	Amount        uint64
	MinCoinAmount *uint64
	MinPcAmount   *uint64
}

func (w WithdrawData) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint8(instructionWithdraw); err != nil {
		return err
	}
	if err := encoder.WriteUint64(w.Amount, binary.LittleEndian); err != nil {
		return err
	}
	if w.MinCoinAmount != nil && w.MinPcAmount != nil {
		if err := encoder.WriteUint64(*w.MinCoinAmount, binary.LittleEndian); err != nil {
			return err
		}
		return encoder.WriteUint64(*w.MinPcAmount, binary.LittleEndian)
	}
	return nil
}

func encode(v interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := bin.NewBinEncoder(buf).Encode(v); err != nil {
		return nil, fmt.Errorf("unable to encode instruction: %w", err)
	}
	return buf.Bytes(), nil
}

// DepositAccounts lists the accounts of a deposit, in program order.
type DepositAccounts struct {
	Amm          solana.PublicKey
	Authority    solana.PublicKey
	OpenOrders   solana.PublicKey
	TargetOrders solana.PublicKey
	LpMint       solana.PublicKey
	CoinVault    solana.PublicKey
	PcVault      solana.PublicKey
	Market       solana.PublicKey
	UserCoin     solana.PublicKey
	UserPc       solana.PublicKey
	UserLp       solana.PublicKey
	Owner        solana.PublicKey
	EventQueue   solana.PublicKey
}

// NewDepositInstruction encodes a deposit for the given AMM program.
func NewDepositInstruction(programID solana.PublicKey, data DepositData, a DepositAccounts) (solana.Instruction, error) {
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(solana.TokenProgramID),
		solana.Meta(a.Amm).WRITE(),
		solana.Meta(a.Authority),
		solana.Meta(a.OpenOrders),
		solana.Meta(a.TargetOrders).WRITE(),
		solana.Meta(a.LpMint).WRITE(),
		solana.Meta(a.CoinVault).WRITE(),
		solana.Meta(a.PcVault).WRITE(),
		solana.Meta(a.Market),
		solana.Meta(a.UserCoin).WRITE(),
		solana.Meta(a.UserPc).WRITE(),
		solana.Meta(a.UserLp).WRITE(),
		solana.Meta(a.Owner).SIGNER(),
		solana.Meta(a.EventQueue),
	}
	return solana.NewInstruction(programID, accounts, raw), nil
}

// WithdrawAccounts lists the accounts of a withdraw, in program order.
type WithdrawAccounts struct {
	Amm             solana.PublicKey
	Authority       solana.PublicKey
	OpenOrders      solana.PublicKey
	TargetOrders    solana.PublicKey
	LpMint          solana.PublicKey
	CoinVault       solana.PublicKey
	PcVault         solana.PublicKey
	MarketProgram   solana.PublicKey
	Market          solana.PublicKey
	MarketCoinVault solana.PublicKey
	MarketPcVault   solana.PublicKey
	VaultSigner     solana.PublicKey
	UserLp          solana.PublicKey
	UserCoin        solana.PublicKey
	UserPc          solana.PublicKey
	Owner           solana.PublicKey
	EventQueue      solana.PublicKey
	Bids            solana.PublicKey
	Asks            solana.PublicKey
}

// NewWithdrawInstruction encodes a withdraw for the given AMM program.
func NewWithdrawInstruction(programID solana.PublicKey, data WithdrawData, a WithdrawAccounts) (solana.Instruction, error) {
	raw, err := encode(data)
	if err != nil {
		return nil, err
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(solana.TokenProgramID),
		solana.Meta(a.Amm).WRITE(),
		solana.Meta(a.Authority),
		solana.Meta(a.OpenOrders).WRITE(),
		solana.Meta(a.TargetOrders).WRITE(),
		solana.Meta(a.LpMint).WRITE(),
		solana.Meta(a.CoinVault).WRITE(),
		solana.Meta(a.PcVault).WRITE(),
		solana.Meta(a.MarketProgram),
		solana.Meta(a.Market).WRITE(),
		solana.Meta(a.MarketCoinVault).WRITE(),
		solana.Meta(a.MarketPcVault).WRITE(),
		solana.Meta(a.VaultSigner),
		solana.Meta(a.UserLp).WRITE(),
		solana.Meta(a.UserCoin).WRITE(),
		solana.Meta(a.UserPc).WRITE(),
		solana.Meta(a.Owner).SIGNER(),
		solana.Meta(a.EventQueue).WRITE(),
		solana.Meta(a.Bids).WRITE(),
		solana.Meta(a.Asks).WRITE(),
	}
	return solana.NewInstruction(programID, accounts, raw), nil
}

// NewCreateATAIdempotentInstruction creates the owner's associated token
// account for mint if it does not exist yet.
func NewCreateATAIdempotentInstruction(payer, owner, mint solana.PublicKey) (solana.Instruction, solana.PublicKey, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive associated token account: %w", err)
	}
	accounts := solana.AccountMetaSlice{
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(owner),
		solana.Meta(mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(solana.TokenProgramID),
	}
	return solana.NewInstruction(solana.SPLAssociatedTokenAccountProgramID, accounts, []byte{1}), ata, nil
}
