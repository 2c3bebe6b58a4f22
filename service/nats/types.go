package nats

import (
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
)

// OperationEvent is published to "liquidity.{pool_id}" in JetStream once
// per completed liquidity operation.
type OperationEvent struct {
	OperationID string `json:"operation_id"`
	Type        string `json:"type"`
	PoolID      string `json:"pool_id"`
	MarketID    string `json:"market_id"`

	AddAmount    uint64  `json:"add_amount,omitempty"`
	RemoveAmount uint64  `json:"remove_amount,omitempty"`
	Slippage     float64 `json:"slippage"`
	DryRun       bool    `json:"dry_run"`

	Outcome         string `json:"outcome"`
	Signature       string `json:"signature,omitempty"`
	SimulationError string `json:"simulation_error,omitempty"`
	SubmitError     string `json:"submit_error,omitempty"`

	// Timing information
	CreatedAt   time.Time `json:"created_at"`
	PublishedAt time.Time `json:"published_at"`
}

// FromOperation converts an operation report to an OperationEvent for publishing.
func FromOperation(op *liquidity.Operation) *OperationEvent {
	return &OperationEvent{
		OperationID:     op.ID,
		Type:            string(op.Type),
		PoolID:          op.PoolID,
		MarketID:        op.MarketID,
		AddAmount:       op.AddAmount,
		RemoveAmount:    op.RemoveAmount,
		Slippage:        op.Slippage,
		DryRun:          op.DryRun,
		Outcome:         op.Outcome(),
		Signature:       op.Signature,
		SimulationError: op.SimulationError,
		SubmitError:     op.SubmitError,
		CreatedAt:       op.CreatedAt,
		PublishedAt:     time.Now().UTC(),
	}
}

// SubjectForPool returns the subject events for poolID are published on.
func SubjectForPool(poolID string) string {
	return SubjectPrefix + poolID
}
