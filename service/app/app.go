// Package app wires configuration into a ready liquidity.Service. The
// binaries share it so they build the stack the same way.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brojonat/lpctl/service/cache"
	"github.com/brojonat/lpctl/service/config"
	"github.com/brojonat/lpctl/service/db"
	"github.com/brojonat/lpctl/service/liquidity"
	"github.com/brojonat/lpctl/service/metrics"
	natspkg "github.com/brojonat/lpctl/service/nats"
	"github.com/brojonat/lpctl/service/raydium"
	"github.com/brojonat/lpctl/service/solana"
	"github.com/jackc/pgx/v5/pgxpool"
)

// App holds the wired components. Store and Publisher are nil when their
// URLs are unset or unreachable.
type App struct {
	Config    *config.Config
	Signer    solana.Signer
	RPC       solana.RPCClient
	Resolver  *cache.Resolver
	Inspector *solana.Inspector
	Pipeline  *solana.Pipeline
	Service   *liquidity.Service
	Store     *db.Store
	Publisher *natspkg.JetStreamPublisher

	closers []func()
}

// New builds the liquidity stack from cfg. The wallet and cache directory
// are required. The journal and event stream are optional and their
// connection failures are logged, not returned.
func New(ctx context.Context, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	key, err := solana.LoadSigner(cfg.WalletPath, cfg.WalletPrivateKey)
	if err != nil {
		return nil, err
	}
	owner := key.PublicKey()

	resolver, err := cache.NewResolver(cfg.CacheDir, cfg.CachePrefix, logger)
	if err != nil {
		return nil, err
	}

	// SOLANA_CLUSTER_URL may list several endpoints; one is used per process.
	var endpoints []string
	for _, u := range strings.Split(cfg.SolanaClusterURL, ",") {
		if u = strings.TrimSpace(u); u != "" {
			endpoints = append(endpoints, u)
		}
	}
	clusterURL, err := solana.SelectRandomEndpoint(endpoints)
	if err != nil {
		return nil, err
	}

	rpcClient := solana.NewRPCClient(clusterURL, solana.EndpointLabel(clusterURL), cfg.Commitment, m)
	inspector := solana.NewInspector(rpcClient, logger)
	builder := raydium.NewBuilder(rpcClient, cfg.AmmProgramID, owner, cfg.SlippageBps, logger)
	composer := liquidity.NewComposer(liquidity.NewAdapter(builder, logger), logger)
	pipeline := solana.NewPipeline(rpcClient, []solana.Signer{key}, solana.PipelineConfig{
		Commitment:     cfg.Commitment,
		ConfirmTimeout: cfg.ConfirmTimeout,
		PollInterval:   cfg.ConfirmPollInterval,
	}, m, logger)

	svc := liquidity.NewService(resolver, inspector, composer, pipeline, owner, m, logger)

	a := &App{
		Config:    cfg,
		Signer:    key,
		RPC:       rpcClient,
		Resolver:  resolver,
		Inspector: inspector,
		Pipeline:  pipeline,
		Service:   svc,
	}

	if cfg.DatabaseURL != "" {
		store, closeFn, err := OpenStore(ctx, cfg.DatabaseURL, m)
		if err != nil {
			logger.Warn("operation journal disabled", "error", err)
		} else {
			a.Store = store
			a.closers = append(a.closers, closeFn)
			svc.WithJournal(store)
		}
	}

	if cfg.NATSURL != "" {
		pub, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Warn("operation events disabled", "error", err)
		} else {
			a.Publisher = pub
			a.closers = append(a.closers, func() { pub.Close() })
			svc.WithNotifier(pub)
		}
	}

	logger.Info("liquidity stack ready",
		"network", cfg.SolanaNetwork,
		"endpoint", solana.EndpointLabel(clusterURL),
		"owner", owner.String(),
		"program", cfg.AmmProgramID.String(),
		"journal", a.Store != nil,
		"events", a.Publisher != nil,
	)
	return a, nil
}

// OpenStore connects to Postgres and returns the journal store.
func OpenStore(ctx context.Context, databaseURL string, m *metrics.Metrics) (*db.Store, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db.NewStore(pool, m), pool.Close, nil
}

// Close releases connections in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
