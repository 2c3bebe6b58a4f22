package temporal

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brojonat/lpctl/service/metrics"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
)

// Client starts and awaits liquidity workflows.
type Client struct {
	client    client.Client
	taskQueue string
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewClient creates a new Temporal client. m may be nil.
func NewClient(host, namespace, taskQueue string, m *metrics.Metrics, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("connecting to temporal",
		"host", host,
		"namespace", namespace,
		"task_queue", taskQueue,
	)

	c, err := client.Dial(client.Options{
		HostPort:  host,
		Namespace: namespace,
		Logger:    newTemporalLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Temporal: %w", err)
	}

	logger.Info("connected to temporal successfully")

	return &Client{
		client:    c,
		taskQueue: taskQueue,
		metrics:   m,
		logger:    logger,
	}, nil
}

// WorkflowID returns a fresh workflow id for an operation type.
func WorkflowID(input LiquidityWorkflowInput) string {
	return fmt.Sprintf("liquidity-%s-%s", input.Type, uuid.New().String())
}

// StartLiquidityWorkflow starts a workflow and returns its id without
// waiting for it.
func (c *Client) StartLiquidityWorkflow(ctx context.Context, input LiquidityWorkflowInput) (client.WorkflowRun, error) {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(input),
		TaskQueue: c.taskQueue,
		Memo: map[string]interface{}{
			"type":       string(input.Type),
			"pool_id":    input.PoolID,
			"dry_run":    input.DryRun,
			"created_by": "lpctl",
		},
	}

	run, err := c.client.ExecuteWorkflow(ctx, opts, LiquidityWorkflow, input)
	if err != nil {
		c.logger.Error("failed to start liquidity workflow",
			"workflow_id", opts.ID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to start workflow %q: %w", opts.ID, err)
	}

	c.logger.Info("liquidity workflow started",
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
		"type", string(input.Type),
	)
	return run, nil
}

// RunLiquidityWorkflow starts a workflow and blocks until it finishes.
func (c *Client) RunLiquidityWorkflow(ctx context.Context, input LiquidityWorkflowInput) (*LiquidityWorkflowResult, error) {
	start := time.Now()
	run, err := c.StartLiquidityWorkflow(ctx, input)
	if err != nil {
		return nil, err
	}

	var result LiquidityWorkflowResult
	err = run.Get(ctx, &result)
	status := "success"
	if err != nil {
		status = "error"
	}
	c.metrics.RecordWorkflowDuration(string(input.Type), status, time.Since(start).Seconds())
	if err != nil {
		return &result, fmt.Errorf("workflow %s failed: %w", run.GetID(), err)
	}
	return &result, nil
}

// GetLiquidityWorkflowResult waits for an already started workflow.
func (c *Client) GetLiquidityWorkflowResult(ctx context.Context, workflowID string) (*LiquidityWorkflowResult, error) {
	var result LiquidityWorkflowResult
	if err := c.client.GetWorkflow(ctx, workflowID, "").Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("workflow %s failed: %w", workflowID, err)
	}
	return &result, nil
}

// SDKClient returns the underlying Temporal SDK client for direct workflow operations.
func (c *Client) SDKClient() client.Client {
	return c.client
}

// TaskQueue returns the configured task queue for this client.
func (c *Client) TaskQueue() string {
	return c.taskQueue
}

// Close closes the Temporal client connection.
func (c *Client) Close() {
	c.logger.Info("closing temporal client")
	c.client.Close()
}

// temporalLogger adapts slog.Logger to Temporal's logger interface.
type temporalLogger struct {
	logger *slog.Logger
}

func newTemporalLogger(logger *slog.Logger) *temporalLogger {
	return &temporalLogger{logger: logger}
}

func (l *temporalLogger) Debug(msg string, keyvals ...interface{}) {
	l.logger.Debug(msg, keyvals...)
}

func (l *temporalLogger) Info(msg string, keyvals ...interface{}) {
	l.logger.Info(msg, keyvals...)
}

func (l *temporalLogger) Warn(msg string, keyvals ...interface{}) {
	l.logger.Warn(msg, keyvals...)
}

func (l *temporalLogger) Error(msg string, keyvals ...interface{}) {
	l.logger.Error(msg, keyvals...)
}
