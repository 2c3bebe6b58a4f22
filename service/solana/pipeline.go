package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/avast/retry-go"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

var (
	ErrNoSigners         = errors.New("no signers configured")
	ErrEmptyTransaction  = errors.New("transaction has no instructions")
	ErrSimulationFailed  = errors.New("simulation failed")
	ErrTransactionFailed = errors.New("transaction failed on chain")
	errNotConfirmed      = errors.New("transaction not yet confirmed")
)

// Signer signs transaction messages. solana.PrivateKey satisfies it.
type Signer interface {
	PublicKey() solana.PublicKey
	Sign(message []byte) (solana.Signature, error)
}

// PipelineConfig controls simulation and confirmation behaviour.
type PipelineConfig struct {
	Commitment     rpc.CommitmentType
	ConfirmTimeout time.Duration
	PollInterval   time.Duration
}

// DefaultPipelineConfig returns the settings used when none are supplied.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		Commitment:     rpc.CommitmentConfirmed,
		ConfirmTimeout: 60 * time.Second,
		PollInterval:   2 * time.Second,
	}
}

// Pipeline builds, simulates and optionally submits transactions.
// The first signer pays fees.
type Pipeline struct {
	rpc     RPCClient
	signers []Signer
	cfg     PipelineConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewPipeline creates a Pipeline. If m is nil, no metrics are recorded.
func NewPipeline(rpcClient RPCClient, signers []Signer, cfg PipelineConfig, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPipelineConfig()
	if cfg.Commitment == "" {
		cfg.Commitment = def.Commitment
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = def.ConfirmTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	return &Pipeline{
		rpc:     rpcClient,
		signers: signers,
		cfg:     cfg,
		metrics: m,
		logger:  logger,
	}
}

// Payer returns the fee payer, or the zero key when no signer is set.
func (p *Pipeline) Payer() solana.PublicKey {
	if len(p.signers) == 0 {
		return solana.PublicKey{}
	}
	return p.signers[0].PublicKey()
}

// Process runs ixs through build, simulate and, unless dryRun, submit.
//
// Only build failures are returned as errors (always *BuildError).
// Simulation runs every time and its failure is recorded without stopping
// submission. Submission failures are recorded in the result as well.
func (p *Pipeline) Process(ctx context.Context, ixs []solana.Instruction, dryRun bool) (*PipelineResult, error) {
	tx, err := p.build(ctx, ixs)
	if err != nil {
		return nil, err
	}

	result := &PipelineResult{DryRun: dryRun, Final: StageBuilt}

	result.Simulation, result.SimulationErr = p.simulate(ctx, tx)
	result.Final = StageSimulated

	if dryRun {
		p.logger.InfoContext(ctx, "dry run, skipping submission",
			"simulation_ok", result.SimulationErr == nil,
		)
		result.Final = StageSkippedDryRun
		return result, nil
	}

	sig, err := p.submit(ctx, tx)
	if err != nil {
		result.SubmitErr = err
	} else {
		result.Signature = &sig
	}
	result.Final = StageSubmitted
	return result, nil
}

func (p *Pipeline) build(ctx context.Context, ixs []solana.Instruction) (*solana.Transaction, error) {
	start := time.Now()
	tx, err := p.assemble(ctx, ixs)
	p.record("build", start, err)
	if err != nil {
		p.logger.ErrorContext(ctx, "failed to build transaction", "error", err)
		return nil, err
	}
	p.logger.DebugContext(ctx, "built transaction",
		"instructions", len(ixs),
		"payer", p.Payer().String(),
		"blockhash", tx.Message.RecentBlockhash.String(),
	)
	return tx, nil
}

func (p *Pipeline) assemble(ctx context.Context, ixs []solana.Instruction) (*solana.Transaction, error) {
	if len(p.signers) == 0 {
		return nil, &BuildError{Stage: "signers", Err: ErrNoSigners}
	}
	if len(ixs) == 0 {
		return nil, &BuildError{Stage: "instructions", Err: ErrEmptyTransaction}
	}

	recent, err := p.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, &BuildError{Stage: "blockhash", Err: err}
	}
	if recent == nil || recent.Value == nil {
		return nil, &BuildError{Stage: "blockhash", Err: errors.New("empty blockhash response")}
	}

	tx, err := solana.NewTransaction(ixs, recent.Value.Blockhash, solana.TransactionPayer(p.Payer()))
	if err != nil {
		return nil, &BuildError{Stage: "assemble", Err: err}
	}
	return tx, nil
}

// simulate runs the unsigned transaction with placeholder signatures and
// signature verification disabled.
func (p *Pipeline) simulate(ctx context.Context, tx *solana.Transaction) (*rpc.SimulateTransactionResult, error) {
	start := time.Now()
	unsigned := *tx
	unsigned.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)

	resp, err := p.rpc.SimulateTransaction(ctx, &unsigned, &rpc.SimulateTransactionOpts{
		SigVerify:  false,
		Commitment: p.cfg.Commitment,
	})
	if err == nil && (resp == nil || resp.Value == nil) {
		err = errors.New("empty simulation response")
	}
	if err != nil {
		p.record("simulate", start, err)
		p.logger.ErrorContext(ctx, "simulation request failed", "error", err)
		return nil, err
	}

	sim := resp.Value
	var simErr error
	if sim.Err != nil {
		simErr = fmt.Errorf("%w: %v", ErrSimulationFailed, sim.Err)
		p.logger.ErrorContext(ctx, "transaction simulation failed",
			"error", sim.Err,
			"logs", sim.Logs,
		)
	} else {
		p.logger.InfoContext(ctx, "transaction simulation succeeded",
			"units_consumed", sim.UnitsConsumed,
			"log_lines", len(sim.Logs),
		)
	}
	p.record("simulate", start, simErr)
	return sim, simErr
}

func (p *Pipeline) submit(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	start := time.Now()
	sig, err := p.send(ctx, tx)
	if err == nil {
		err = p.confirm(ctx, sig)
		if err != nil {
			err = fmt.Errorf("confirm %s: %w", sig, err)
		}
	}
	p.record("submit", start, err)
	if err != nil {
		p.logger.ErrorContext(ctx, "transaction submission failed", "error", err)
		return solana.Signature{}, err
	}
	p.logger.InfoContext(ctx, "transaction confirmed",
		"signature", sig.String(),
		"commitment", string(p.cfg.Commitment),
	)
	return sig, nil
}

func (p *Pipeline) send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if err := p.sign(tx); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}
	sig, err := p.rpc.SendTransaction(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: p.cfg.Commitment,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	p.logger.InfoContext(ctx, "transaction sent", "signature", sig.String())
	return sig, nil
}

// sign fills every required signature slot from the configured signers.
func (p *Pipeline) sign(tx *solana.Transaction) error {
	message, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	required := int(tx.Message.Header.NumRequiredSignatures)
	if required > len(tx.Message.AccountKeys) {
		return fmt.Errorf("message requires %d signatures but has %d keys", required, len(tx.Message.AccountKeys))
	}
	tx.Signatures = make([]solana.Signature, required)
	for i, key := range tx.Message.AccountKeys[:required] {
		signer := p.signerFor(key)
		if signer == nil {
			return fmt.Errorf("no signer for required key %s", key)
		}
		s, err := signer.Sign(message)
		if err != nil {
			return fmt.Errorf("sign with %s: %w", key, err)
		}
		tx.Signatures[i] = s
	}
	return nil
}

func (p *Pipeline) signerFor(key solana.PublicKey) Signer {
	for _, s := range p.signers {
		if s.PublicKey().Equals(key) {
			return s
		}
	}
	return nil
}

// confirm polls the signature status until the configured commitment is
// reached, the transaction fails, or ConfirmTimeout elapses. It never
// resubmits.
func (p *Pipeline) confirm(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConfirmTimeout)
	defer cancel()

	attempts := uint(p.cfg.ConfirmTimeout/p.cfg.PollInterval) + 1
	return retry.Do(
		func() error {
			err := p.pollStatus(ctx, sig)
			if p.metrics != nil {
				outcome := "confirmed"
				if err != nil {
					outcome = "pending"
					if !retry.IsRecoverable(err) {
						outcome = "failed"
					}
				}
				p.metrics.RecordConfirmationPoll(outcome)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(p.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (p *Pipeline) pollStatus(ctx context.Context, sig solana.Signature) error {
	res, err := p.rpc.GetSignatureStatuses(ctx, sig)
	if err != nil {
		return err
	}
	if res == nil || len(res.Value) == 0 || res.Value[0] == nil {
		return errNotConfirmed
	}
	status := res.Value[0]
	if status.Err != nil {
		return retry.Unrecoverable(fmt.Errorf("%w: %v", ErrTransactionFailed, status.Err))
	}
	if !commitmentReached(status.ConfirmationStatus, p.cfg.Commitment) {
		return errNotConfirmed
	}
	return nil
}

func commitmentReached(status rpc.ConfirmationStatusType, want rpc.CommitmentType) bool {
	rank := map[string]int{
		string(rpc.ConfirmationStatusProcessed): 1,
		string(rpc.ConfirmationStatusConfirmed): 2,
		string(rpc.ConfirmationStatusFinalized): 3,
	}
	got, ok := rank[string(status)]
	if !ok {
		return false
	}
	need, ok := rank[string(want)]
	if !ok {
		need = rank[string(rpc.ConfirmationStatusConfirmed)]
	}
	return got >= need
}

func (p *Pipeline) record(stage string, start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.RecordPipelineStage(stage, status, time.Since(start).Seconds())
}
