package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// It is passed explicitly to every component that records metrics; a nil
// *Metrics means "don't record".
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec
	confirmationPolls     *prometheus.CounterVec

	// Pipeline Metrics
	pipelineStagesTotal   *prometheus.CounterVec
	pipelineStageDuration *prometheus.HistogramVec

	// Liquidity Operation Metrics
	operationsTotal      *prometheus.CounterVec
	instructionsPerTx    *prometheus.HistogramVec
	cacheResolutionTotal *prometheus.CounterVec

	// Workflow Metrics
	workflowDuration        *prometheus.HistogramVec
	workflowExecutionsTotal *prometheus.CounterVec
	activityDuration        *prometheus.HistogramVec

	// Database Metrics
	dbQueryDuration   *prometheus.HistogramVec
	dbOperationsTotal *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Solana RPC Metrics
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		confirmationPolls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_confirmation_polls_total",
				Help: "Total number of signature status polls while waiting for confirmation",
			},
			[]string{"outcome"},
		),

		// Pipeline Metrics
		pipelineStagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_stages_total",
				Help: "Total number of transaction pipeline stages by outcome",
			},
			[]string{"stage", "status"},
		),
		pipelineStageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_stage_duration_seconds",
				Help:    "Duration of transaction pipeline stages in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"stage"},
		),

		// Liquidity Operation Metrics
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_operations_total",
				Help: "Total number of liquidity operations by type and outcome",
			},
			[]string{"operation", "outcome"},
		),
		instructionsPerTx: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liquidity_instructions_per_transaction",
				Help:    "Number of instructions in each composed liquidity transaction",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
			},
			[]string{"operation"},
		),
		cacheResolutionTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_resolutions_total",
				Help: "Total number of market/pool cache resolutions by record and status",
			},
			[]string{"record", "status"},
		),

		// Workflow Metrics
		workflowDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liquidity_workflow_duration_seconds",
				Help:    "Duration of liquidity workflow execution in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"operation", "status"},
		),
		workflowExecutionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "liquidity_workflow_executions_total",
				Help: "Total number of liquidity workflow executions",
			},
			[]string{"operation", "status"},
		),
		activityDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "liquidity_activity_duration_seconds",
				Help:    "Duration of liquidity workflow activities in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"activity", "status"},
		),

		// Database Metrics
		dbQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Duration of database queries in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
			},
			[]string{"operation", "table"},
		),
		dbOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "db_operations_total",
				Help: "Total number of database operations",
			},
			[]string{"operation", "status"},
		),

		// HTTP Metrics
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10, 60},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		// NATS Metrics
		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	if m == nil {
		return
	}
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordConfirmationPoll records one signature status poll.
func (m *Metrics) RecordConfirmationPoll(outcome string) {
	if m == nil {
		return
	}
	m.confirmationPolls.WithLabelValues(outcome).Inc()
}

// Pipeline metric helpers

// RecordPipelineStage records a pipeline stage outcome and duration.
func (m *Metrics) RecordPipelineStage(stage, status string, duration float64) {
	if m == nil {
		return
	}
	m.pipelineStagesTotal.WithLabelValues(stage, status).Inc()
	m.pipelineStageDuration.WithLabelValues(stage).Observe(duration)
}

// Liquidity metric helpers. All Record methods are no-ops on a nil
// *Metrics.

// RecordOperation records a finished liquidity operation.
func (m *Metrics) RecordOperation(operation, outcome string) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordInstructions records the size of a composed transaction.
func (m *Metrics) RecordInstructions(operation string, count int) {
	if m == nil {
		return
	}
	m.instructionsPerTx.WithLabelValues(operation).Observe(float64(count))
}

// RecordCacheResolution records a market or pool cache lookup.
func (m *Metrics) RecordCacheResolution(record string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.cacheResolutionTotal.WithLabelValues(record, status).Inc()
}

// Workflow metric helpers

// RecordWorkflowDuration records workflow execution duration.
func (m *Metrics) RecordWorkflowDuration(operation, status string, duration float64) {
	if m == nil {
		return
	}
	m.workflowDuration.WithLabelValues(operation, status).Observe(duration)
	m.workflowExecutionsTotal.WithLabelValues(operation, status).Inc()
}

// RecordActivityDuration records activity execution duration.
func (m *Metrics) RecordActivityDuration(activity, status string, duration float64) {
	if m == nil {
		return
	}
	m.activityDuration.WithLabelValues(activity, status).Observe(duration)
}

// Database metric helpers

// RecordDBQuery records a database query with duration.
func (m *Metrics) RecordDBQuery(operation, table string, duration float64, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.dbQueryDuration.WithLabelValues(operation, table).Observe(duration)
	m.dbOperationsTotal.WithLabelValues(operation, status).Inc()
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	if m == nil {
		return
	}
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	if m == nil {
		return
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
