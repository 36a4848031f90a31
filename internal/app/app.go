// Package app wires configuration, storage, the Gemini client, the policy
// store, and the pipeline into one runnable unit.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arcalabs/arca/db"
	"github.com/arcalabs/arca/internal/chunk"
	"github.com/arcalabs/arca/internal/config"
	"github.com/arcalabs/arca/internal/gemini"
	"github.com/arcalabs/arca/internal/log"
	"github.com/arcalabs/arca/internal/observability"
	"github.com/arcalabs/arca/internal/pipeline"
	"github.com/arcalabs/arca/internal/policy"
)

// Connection pool tuning.
const (
	poolMaxConns        = 10
	poolMinConns        = 2
	poolMaxConnLifetime = time.Hour
	poolMaxConnIdleTime = 30 * time.Minute
)

// App holds the assembled application components.
type App struct {
	Config   *config.Config
	Logger   log.Logger
	Pool     *pgxpool.Pool
	Client   *gemini.Client
	Store    *policy.Store
	Pipeline *pipeline.Pipeline

	shutdownTracing func(context.Context) error
}

// New builds the application: migrations run first, then the database pool,
// the rotating Gemini client, the policy store, and the pipeline are wired
// in dependency order.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*App, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, fmt.Errorf("applying migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = poolMaxConns
	poolCfg.MinConns = poolMinConns
	poolCfg.MaxConnLifetime = poolMaxConnLifetime
	poolCfg.MaxConnIdleTime = poolMaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	credentials, err := gemini.NewPool(cfg.APIKeys())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("loading credentials: %w", err)
	}

	client, err := gemini.NewClient(gemini.Config{
		GenerationModel: cfg.GenerationModel,
		EmbedderModel:   cfg.EmbedderModel,
		Dimension:       int32(cfg.EmbedderDimension),
		RetryFactor:     cfg.RetryFactor,
	}, credentials, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	store, err := policy.NewStore(pool, client,
		chunk.NewSplitter(cfg.ChunkSize, cfg.ChunkOverlap), cfg.DefaultTenant, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating policy store: %w", err)
	}

	pipe, err := pipeline.New(store, client, pipeline.Config{
		Attempts:    cfg.PipelineAttempts,
		MaxMatches:  cfg.MaxPolicyMatches,
		TopK:        cfg.SearchTopK,
		RiskLimit:   cfg.RiskLimit,
		PadRisks:    cfg.PadRisks,
		MaxFieldLen: cfg.MaxFieldLen,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating pipeline: %w", err)
	}

	shutdownTracing, err := observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("setting up tracing: %w", err)
	}

	return &App{
		Config:          cfg,
		Logger:          logger,
		Pool:            pool,
		Client:          client,
		Store:           store,
		Pipeline:        pipe,
		shutdownTracing: shutdownTracing,
	}, nil
}

// Ready reports backend readiness for health probes.
func (a *App) Ready(ctx context.Context) error {
	if err := a.Pool.Ping(ctx); err != nil {
		return fmt.Errorf("database not reachable: %w", err)
	}
	return nil
}

// Close releases all resources. Safe to call once after New succeeds.
func (a *App) Close(ctx context.Context) {
	if a.shutdownTracing != nil {
		if err := a.shutdownTracing(ctx); err != nil {
			a.Logger.Warn("failed to flush traces", "error", err)
		}
	}
	a.Pool.Close()
}
