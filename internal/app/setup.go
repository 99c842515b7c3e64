package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docent/db"
	"github.com/koopa0/docent/internal/answer"
	"github.com/koopa0/docent/internal/config"
	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/ingest"
	"github.com/koopa0/docent/internal/retrieval"
	"github.com/koopa0/docent/internal/source"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	pool, dbCleanup, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dbCleanup = dbCleanup
	a.Pool = pool

	g, err := provideGenkit(ctx, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}
	a.Embedder = embedder

	// The store notifies the index on every mutation and the index reads the
	// corpus through the store, so the cycle is closed after construction.
	store := corpus.NewStore(pool, nil, logger)
	index := retrieval.NewIndex(store, embedder, logger)
	store.SetCache(index)
	a.Store = store
	a.Index = index

	a.Ingestor = ingest.NewService(store, embedder, index, ingest.Config{
		MinSectionSize:    cfg.MinChunkSize,
		MaxSectionSize:    cfg.MaxChunkSize,
		ShortDocThreshold: cfg.ShortDocThreshold,
	}, logger)

	generator := answer.NewGenkitGenerator(g, cfg.FullModelName())
	a.Assembler = answer.NewAssembler(index, store, generator, answer.Config{
		TopK:         cfg.TopK,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	if cfg.Source.Owner != "" && cfg.Source.Repo != "" {
		a.Source = source.NewGitHub(source.Config{
			Owner:  cfg.Source.Owner,
			Repo:   cfg.Source.Repo,
			Branch: cfg.Source.Branch,
			Path:   cfg.Source.Path,
			Token:  cfg.Source.Token,
		}, logger)
	}

	return a, nil
}

// provideGenkit initializes Genkit with the Google AI plugin. Requires
// GEMINI_API_KEY in the environment.
func provideGenkit(ctx context.Context, logger *slog.Logger) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	logger.Debug("genkit initialized")
	return g, nil
}

// provideEmbedder looks up the embedder registered by the Google AI plugin.
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
}

// provideDBPool creates a PostgreSQL connection pool and runs migrations.
// Pool is configured with sensible defaults for connection management.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}
