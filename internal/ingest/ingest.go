// Package ingest turns fetched documentation files into embedded, persisted
// chunks.
//
// Pipeline per file: segment the Markdown, enforce section size bounds, build
// one chunk per sized section with provenance metadata and an embedding, then
// replace the file's chunks wholesale in the corpus. Embedding failures
// degrade individual chunks to "unembedded" instead of aborting the file, and
// file failures are counted instead of aborting the batch.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/koopa0/docent/internal/corpus"
	"github.com/koopa0/docent/internal/markdown"
)

// Default embed-call rate limit. Embedding providers meter requests per
// minute; ingestion bursts across parallel files share one limiter.
const (
	DefaultEmbedRate  = 10 // requests per second
	DefaultEmbedBurst = 20

	// DefaultWorkers bounds how many files are ingested in parallel.
	DefaultWorkers = 4
)

// Corpus is the persistence surface ingestion depends on.
// corpus.Store satisfies this through duck typing.
type Corpus interface {
	UpsertFile(ctx context.Context, f corpus.File) (uuid.UUID, error)
	ReplaceChunksForFile(ctx context.Context, fileID uuid.UUID, chunks []corpus.Chunk) error
}

// Document is one already-fetched documentation file, as supplied by the
// source collaborator.
type Document struct {
	Path      string
	Content   string
	SourceURL string
	Images    []markdown.ImageRef // in file order
}

// Result summarizes a batch ingestion.
type Result struct {
	FilesAdded       int
	FilesFailed      int
	ChunksCreated    int
	ChunksUnembedded int
	Duration         time.Duration
}

// Config configures a Service. Zero values fall back to package defaults.
type Config struct {
	MinSectionSize    int
	MaxSectionSize    int
	ShortDocThreshold int
	Workers           int
	EmbedRate         rate.Limit
	EmbedBurst        int
}

// Service ingests documentation files into the corpus.
//
// Service is safe for concurrent use; a single rate limiter meters embedding
// calls across all parallel file ingestions.
type Service struct {
	store    Corpus
	embedder ai.Embedder
	cache    corpus.CacheInvalidator
	limiter  *rate.Limiter
	logger   *slog.Logger

	minSize  int
	maxSize  int
	shortDoc int
	workers  int
}

// NewService creates a Service. cache may be nil; it is notified once per
// batch in addition to the per-mutation invalidation the store performs, so
// correctness never depends on the batch-level call.
func NewService(store Corpus, embedder ai.Embedder, cache corpus.CacheInvalidator, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinSectionSize <= 0 {
		cfg.MinSectionSize = markdown.DefaultMinSectionSize
	}
	if cfg.MaxSectionSize <= 0 {
		cfg.MaxSectionSize = markdown.DefaultMaxSectionSize
	}
	if cfg.ShortDocThreshold <= 0 {
		cfg.ShortDocThreshold = markdown.DefaultShortDocThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.EmbedRate <= 0 {
		cfg.EmbedRate = DefaultEmbedRate
	}
	if cfg.EmbedBurst <= 0 {
		cfg.EmbedBurst = DefaultEmbedBurst
	}

	return &Service{
		store:    store,
		embedder: embedder,
		cache:    cache,
		limiter:  rate.NewLimiter(cfg.EmbedRate, cfg.EmbedBurst),
		logger:   logger,
		minSize:  cfg.MinSectionSize,
		maxSize:  cfg.MaxSectionSize,
		shortDoc: cfg.ShortDocThreshold,
		workers:  cfg.Workers,
	}
}

// IngestAll ingests a batch of files with a bounded worker pool. Individual
// file failures are logged and counted; the batch never aborts on one file.
// The similarity cache is invalidated once after the batch completes.
func (s *Service) IngestAll(ctx context.Context, docs []Document) (*Result, error) {
	start := time.Now()
	result := &Result{}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		jobs = make(chan Document)
	)

	for range s.workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for doc := range jobs {
				created, unembedded, err := s.IngestFile(ctx, doc)

				mu.Lock()
				if err != nil {
					result.FilesFailed++
				} else {
					result.FilesAdded++
					result.ChunksCreated += created
					result.ChunksUnembedded += unembedded
				}
				mu.Unlock()

				if err != nil {
					s.logger.Warn("file ingestion failed", "path", doc.Path, "error", err)
				}
			}
		}()
	}

	for _, doc := range docs {
		select {
		case jobs <- doc:
		case <-ctx.Done():
			// Stop feeding; workers drain what they already took.
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()

	if s.cache != nil {
		s.cache.Invalidate()
	}

	result.Duration = time.Since(start)
	s.logger.Info("ingestion batch complete",
		"files_added", result.FilesAdded,
		"files_failed", result.FilesFailed,
		"chunks", result.ChunksCreated,
		"unembedded", result.ChunksUnembedded,
		"duration", result.Duration)

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// IngestFile ingests a single file: segment, resize, build chunks, replace
// the file's prior chunks. Returns the number of chunks created and how many
// of them lack an embedding.
func (s *Service) IngestFile(ctx context.Context, doc Document) (created, unembedded int, err error) {
	fileID, err := s.store.UpsertFile(ctx, corpus.File{
		Path:      doc.Path,
		Content:   doc.Content,
		HasImages: len(doc.Images) > 0,
		SourceURL: doc.SourceURL,
	})
	if err != nil {
		return 0, 0, err
	}

	sections := markdown.SegmentWithThreshold(doc.Content, s.shortDoc)
	sections = markdown.Resize(sections, s.minSize, s.maxSize)

	chunks := s.buildChunks(ctx, fileID, doc, sections)
	for _, c := range chunks {
		if c.Embedding == nil {
			unembedded++
		}
	}

	if err := s.store.ReplaceChunksForFile(ctx, fileID, chunks); err != nil {
		return 0, 0, err
	}

	s.logger.Debug("file ingested", "path", doc.Path, "chunks", len(chunks), "unembedded", unembedded)
	return len(chunks), unembedded, nil
}
