package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/lpctl/service/db"
	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/metrics"
	"github.com/brojonat/lpctl/service/solana"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LiquidityService is what the handlers need from liquidity.Service.
type LiquidityService interface {
	AddLiquidity(ctx context.Context, req liquidity.AddRequest) (*liquidity.Operation, error)
	RemoveLiquidity(ctx context.Context, req liquidity.RemoveRequest) (*liquidity.Operation, error)
	AddRemoveLiquidity(ctx context.Context, req liquidity.AddRemoveRequest) (*liquidity.Operation, error)
	PoolState(ctx context.Context, poolID string) (*solana.PoolState, error)
}

// OperationStore reads the operation journal.
type OperationStore interface {
	ListOperations(ctx context.Context, params db.ListOperationsParams) ([]*liquidity.Operation, error)
	GetOperation(ctx context.Context, id string) (*liquidity.Operation, error)
}

// Server represents the HTTP server for the liquidity service.
type Server struct {
	addr    string
	service LiquidityService
	store   OperationStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The store is optional - if nil, the operations endpoints return 503.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, service LiquidityService, store OperationStore, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		addr:    addr,
		service: service,
		store:   store,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	// Liquidity routes
	route("POST /api/v1/liquidity/add", "/api/v1/liquidity/add", handleAddLiquidity(s.service, s.logger))
	route("POST /api/v1/liquidity/remove", "/api/v1/liquidity/remove", handleRemoveLiquidity(s.service, s.logger))
	route("POST /api/v1/liquidity/add-remove", "/api/v1/liquidity/add-remove", handleAddRemoveLiquidity(s.service, s.logger))

	// Pool routes
	route("GET /api/v1/pools/{pool_id}", "/api/v1/pools", handleGetPool(s.service, s.logger))

	// Journal routes
	route("GET /api/v1/operations", "/api/v1/operations", handleListOperations(s.store, s.logger))
	route("GET /api/v1/operations/{id}", "/api/v1/operations/id", handleGetOperation(s.store, s.logger))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Submissions wait for confirmation, which can take a while.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr, "metrics", s.metrics != nil, "journal", s.store != nil)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
