package db

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/brojonat/lpctl/service/solana"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const operationsTable = "liquidity_operations"

// ErrOperationNotFound is returned when no operation has the requested id.
var ErrOperationNotFound = errors.New("operation not found")

// Store persists liquidity operation reports.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// m may be nil.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// Migrate applies the journal schema. It is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// ListOperationsParams filters and paginates ListOperations. An empty
// PoolID matches every pool.
type ListOperationsParams struct {
	PoolID string
	Limit  int32
	Offset int32
}

const insertOperation = `
INSERT INTO liquidity_operations (
    id, operation_type, pool_id, market_id,
    add_amount, remove_amount, add_scaled, remove_scaled, multiplier,
    slippage, dry_run, instructions, stage, outcome,
    simulation_ok, simulation_error, simulation_logs, units_consumed,
    signature, submit_error, created_at
) VALUES (
    $1, $2, $3, $4,
    $5::text::numeric, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9::text::numeric,
    $10, $11, $12, $13, $14,
    $15, $16, $17, $18,
    $19, $20, $21
)`

const selectOperation = `
SELECT
    id, operation_type, pool_id, market_id,
    add_amount::text, remove_amount::text, add_scaled::text, remove_scaled::text, multiplier::text,
    slippage, dry_run, instructions, stage,
    simulation_ok, simulation_error, simulation_logs, units_consumed,
    signature, submit_error, created_at
FROM liquidity_operations`

// RecordOperation inserts a completed operation.
func (s *Store) RecordOperation(ctx context.Context, op *liquidity.Operation) error {
	start := time.Now()
	logs := op.SimulationLogs
	if logs == nil {
		logs = []string{}
	}
	_, err := s.pool.Exec(ctx, insertOperation,
		op.ID, string(op.Type), op.PoolID, op.MarketID,
		formatAmount(op.AddAmount), formatAmount(op.RemoveAmount),
		formatAmount(op.AddScaled), formatAmount(op.RemoveScaled),
		formatAmount(op.Multiplier),
		op.Slippage, op.DryRun, int32(op.Instructions), string(op.Stage), op.Outcome(),
		op.SimulationOK, pgtextFromString(op.SimulationError), logs, pgint8FromUint64Ptr(op.UnitsConsumed),
		pgtextFromString(op.Signature), pgtextFromString(op.SubmitError),
		pgtype.Timestamptz{Time: op.CreatedAt, Valid: true},
	)
	s.metrics.RecordDBQuery("insert", operationsTable, time.Since(start).Seconds(), err)
	if err != nil {
		return fmt.Errorf("insert operation %s: %w", op.ID, err)
	}
	return nil
}

// GetOperation retrieves a single operation by id.
func (s *Store) GetOperation(ctx context.Context, id string) (*liquidity.Operation, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, selectOperation+` WHERE id = $1`, id)
	op, err := scanOperation(row)
	s.metrics.RecordDBQuery("get", operationsTable, time.Since(start).Seconds(), err)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

// ListOperations returns operations, most recent first.
func (s *Store) ListOperations(ctx context.Context, params ListOperationsParams) ([]*liquidity.Operation, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	}
	start := time.Now()
	rows, err := s.pool.Query(ctx,
		selectOperation+`
WHERE ($1::text = '' OR pool_id = $1::text)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`,
		params.PoolID, params.Limit, params.Offset,
	)
	if err != nil {
		s.metrics.RecordDBQuery("list", operationsTable, time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	ops := make([]*liquidity.Operation, 0)
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			s.metrics.RecordDBQuery("list", operationsTable, time.Since(start).Seconds(), err)
			return nil, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	err = rows.Err()
	s.metrics.RecordDBQuery("list", operationsTable, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

func scanOperation(row pgx.Row) (*liquidity.Operation, error) {
	var (
		op                                       liquidity.Operation
		opType, stage                            string
		add, remove, addScaled, removeScaled, mu string
		instructions                             int32
		simErr, signature, submitErr             pgtype.Text
		units                                    pgtype.Int8
		createdAt                                pgtype.Timestamptz
	)
	err := row.Scan(
		&op.ID, &opType, &op.PoolID, &op.MarketID,
		&add, &remove, &addScaled, &removeScaled, &mu,
		&op.Slippage, &op.DryRun, &instructions, &stage,
		&op.SimulationOK, &simErr, &op.SimulationLogs, &units,
		&signature, &submitErr, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	op.Type = liquidity.OperationType(opType)
	op.Stage = solana.Stage(stage)
	op.Instructions = int(instructions)
	op.SimulationError = simErr.String
	op.Signature = signature.String
	op.SubmitError = submitErr.String
	op.UnitsConsumed = uint64PtrFromPgint8(units)
	op.CreatedAt = createdAt.Time.UTC()

	for dst, src := range map[*uint64]string{
		&op.AddAmount:    add,
		&op.RemoveAmount: remove,
		&op.AddScaled:    addScaled,
		&op.RemoveScaled: removeScaled,
		&op.Multiplier:   mu,
	} {
		v, err := strconv.ParseUint(src, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse amount %q: %w", src, err)
		}
		*dst = v
	}
	return &op, nil
}

// Helper functions for converting between pgtype and Go types

func formatAmount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func pgtextFromString(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

func pgint8FromUint64Ptr(v *uint64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: int64(*v), Valid: true}
}

func uint64PtrFromPgint8(v pgtype.Int8) *uint64 {
	if !v.Valid {
		return nil
	}
	u := uint64(v.Int64)
	return &u
}
