package liquidity

import (
	"math"
	"time"

	"github.com/brojonat/lpctl/service/solana"
)

// OperationType names an entry point.
type OperationType string

const (
	OpAdd       OperationType = "add"
	OpRemove    OperationType = "remove"
	OpAddRemove OperationType = "add_remove"
)

// Outcomes recorded for an operation.
const (
	OutcomeDryRun       = "dry_run"
	OutcomeSubmitted    = "submitted"
	OutcomeSubmitFailed = "submit_failed"
)

// Operation is the report of one liquidity call. Network failures are
// recorded here rather than returned, so a caller can tell "never
// attempted" (dry run) from "attempted and failed".
type Operation struct {
	ID           string        `json:"id"`
	Type         OperationType `json:"type"`
	PoolID       string        `json:"pool_id"`
	MarketID     string        `json:"market_id"`
	AddAmount    uint64        `json:"add_amount,omitempty"`
	RemoveAmount uint64        `json:"remove_amount,omitempty"`
	AddScaled    uint64        `json:"add_scaled,omitempty"`
	RemoveScaled uint64        `json:"remove_scaled,omitempty"`
	Multiplier   uint64        `json:"multiplier"`
	Slippage     float64       `json:"slippage"`
	DryRun       bool          `json:"dry_run"`
	Instructions int           `json:"instructions"`
	Stage        solana.Stage  `json:"stage"`

	SimulationOK    bool     `json:"simulation_ok"`
	SimulationError string   `json:"simulation_error,omitempty"`
	SimulationLogs  []string `json:"simulation_logs,omitempty"`
	UnitsConsumed   *uint64  `json:"units_consumed,omitempty"`

	Signature   string `json:"signature,omitempty"`
	SubmitError string `json:"submit_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Outcome summarises the submission side of the operation.
func (o *Operation) Outcome() string {
	switch {
	case o.DryRun:
		return OutcomeDryRun
	case o.Signature != "":
		return OutcomeSubmitted
	default:
		return OutcomeSubmitFailed
	}
}

func (o *Operation) applyResult(r *solana.PipelineResult) {
	o.Stage = r.Final
	o.DryRun = r.DryRun
	if r.Simulation != nil {
		o.SimulationLogs = r.Simulation.Logs
		o.UnitsConsumed = r.Simulation.UnitsConsumed
	}
	if r.SimulationErr != nil {
		o.SimulationError = r.SimulationErr.Error()
	} else {
		o.SimulationOK = r.Simulation != nil
	}
	if r.Signature != nil {
		o.Signature = r.Signature.String()
	}
	if r.SubmitErr != nil {
		o.SubmitError = r.SubmitErr.Error()
	}
}

// Position is a snapshot of a pool and the owner's LP holding.
type Position struct {
	PoolID    string    `json:"pool_id"`
	LPTotal   uint64    `json:"lp_total"`
	CoinVault uint64    `json:"coin_vault"`
	PcVault   uint64    `json:"pc_vault"`
	UserLP    uint64    `json:"user_lp"`
	TakenAt   time.Time `json:"taken_at"`
}

// PositionDelta is after minus before for each tracked balance.
type PositionDelta struct {
	LPTotal   int64 `json:"lp_total"`
	CoinVault int64 `json:"coin_vault"`
	PcVault   int64 `json:"pc_vault"`
	UserLP    int64 `json:"user_lp"`
}

// Compare returns the change from before to after.
func Compare(before, after *Position) PositionDelta {
	return PositionDelta{
		LPTotal:   diff(before.LPTotal, after.LPTotal),
		CoinVault: diff(before.CoinVault, after.CoinVault),
		PcVault:   diff(before.PcVault, after.PcVault),
		UserLP:    diff(before.UserLP, after.UserLP),
	}
}

// diff saturates at the int64 bounds so the sign is always right.
func diff(before, after uint64) int64 {
	if after >= before {
		d := after - before
		if d > math.MaxInt64 {
			return math.MaxInt64
		}
		return int64(d)
	}
	d := before - after
	if d > math.MaxInt64 {
		return math.MinInt64
	}
	return -int64(d)
}

// grewBy reports whether d is an increase of at least want. A saturated
// delta meets any target.
func grewBy(d int64, want uint64) bool {
	if d < 0 {
		return false
	}
	return d == math.MaxInt64 || uint64(d) >= want
}

// shrankBy reports whether d is a decrease of at least want.
func shrankBy(d int64, want uint64) bool {
	if d > 0 {
		return false
	}
	if d == math.MinInt64 {
		return true
	}
	return uint64(-d) >= want
}

// Shortfalls lists the expectations an observed delta fails to meet: a
// deposit should grow the pc vault by at least the slippage-adjusted
// amount, and a withdrawal should burn at least that much LP. A combined
// operation is held to its net deposit.
func Shortfalls(op *Operation, delta PositionDelta) []string {
	var out []string
	if op.DryRun || op.Signature == "" {
		return out
	}
	switch op.Type {
	case OpAdd:
		want, err := MinExpected(op.AddScaled, op.Slippage)
		if err == nil && !grewBy(delta.PcVault, want) {
			out = append(out, "pc vault grew less than the minimum expected deposit")
		}
	case OpRemove:
		want, err := MinExpected(op.RemoveScaled, op.Slippage)
		if err == nil && !shrankBy(delta.LPTotal, want) {
			out = append(out, "lp supply shrank less than the minimum expected burn")
		}
	case OpAddRemove:
		if op.AddScaled <= op.RemoveScaled {
			break
		}
		want, err := MinExpected(op.AddScaled-op.RemoveScaled, op.Slippage)
		if err == nil && !grewBy(delta.PcVault, want) {
			out = append(out, "pc vault grew less than the minimum expected net deposit")
		}
	}
	return out
}
