// Package app provides application initialization and dependency wiring.
//
// App is the container that holds every long-lived component: the Genkit
// runtime, the database pool, the corpus store, the similarity index, the
// ingestion service and the answer assembler. cmd builds one App per
// invocation and tears it down with Close.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/docent/internal/answer"
	"github.com/koopa0/docent/internal/config"
	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/ingest"
	"github.com/koopa0/docent/internal/retrieval"
	"github.com/koopa0/docent/internal/source"
)

// App is the application container.
type App struct {
	Config *config.Config

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Store     *corpus.Store
	Index     *retrieval.Index
	Ingestor  *ingest.Service
	Assembler *answer.Assembler

	// Source is nil when no documentation repository is configured; sync
	// commands must check before use.
	Source *source.GitHub

	logger    *slog.Logger
	dbCleanup func()
}

// Close releases all resources held by the App. Safe to call on a partially
// initialized App (Setup calls it on failure).
func (a *App) Close() error {
	if a.logger != nil {
		a.logger.Info("shutting down")
	}
	if a.dbCleanup != nil {
		a.dbCleanup()
		a.dbCleanup = nil
	}
	return nil
}

// Sync fetches every documentation file from the configured source and
// re-ingests it. Returns source.ErrNotConfigured when no repository is set.
func (a *App) Sync(ctx context.Context) (*ingest.Result, error) {
	if a.Source == nil {
		return nil, source.ErrNotConfigured
	}
	docs, err := a.Source.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	return a.Ingestor.IngestAll(ctx, docs)
}
