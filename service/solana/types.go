package solana

import (
	"fmt"

	"github.com/brojonat/lpctl/service/raydium"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// Stage names a step of the transaction pipeline.
type Stage string

const (
	StageBuilt         Stage = "built"
	StageSimulated     Stage = "simulated"
	StageSubmitted     Stage = "submitted"
	StageSkippedDryRun Stage = "skipped_dry_run"
)

// BuildError is the only error Pipeline.Process returns. It means no
// transaction could be assembled, so nothing was simulated or sent.
type BuildError struct {
	Stage string // "signers", "instructions", "blockhash" or "assemble"
	Err   error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("build transaction (%s): %v", e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// PipelineResult reports what happened after a transaction was built.
// Simulation and submission outcomes are independent: either can fail
// without affecting the other, and neither is returned as an error.
type PipelineResult struct {
	DryRun bool
	Final  Stage

	// Simulation is nil when the simulate call itself failed.
	Simulation    *rpc.SimulateTransactionResult
	SimulationErr error

	// Signature is set only when the transaction was sent and confirmed.
	// It is always nil for dry runs.
	Signature *solana.Signature
	SubmitErr error
}

// Submitted reports whether the transaction landed.
func (r *PipelineResult) Submitted() bool {
	return r.Signature != nil
}

// PoolState is a point-in-time view of an AMM pool's balances.
type PoolState struct {
	PoolID           solana.PublicKey `json:"pool_id"`
	LPMint           solana.PublicKey `json:"lp_mint"`
	CoinMint         solana.PublicKey `json:"coin_mint"`
	PcMint           solana.PublicKey `json:"pc_mint"`
	LPTotal          uint64           `json:"lp_total"`
	CoinVaultBalance uint64           `json:"coin_vault_balance"`
	PcVaultBalance   uint64           `json:"pc_vault_balance"`
	SysDecimalValue  uint64           `json:"sys_decimal_value"`
	CoinDecimals     uint64           `json:"coin_decimals"`
	PcDecimals       uint64           `json:"pc_decimals"`

	Amm *raydium.AmmInfo `json:"-"`
}
