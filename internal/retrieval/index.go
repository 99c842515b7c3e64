// Package retrieval ranks corpus chunks against a query by cosine similarity
// over their embeddings.
//
// The Index holds an in-memory cache of the full chunk corpus, populated
// lazily on first search and discarded through Invalidate whenever the
// persisted corpus changes. Search is an exhaustive single-pass scan: no
// approximate-nearest-neighbor structures, no on-disk index.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/firebase/genkit/go/ai"

	"github.com/koopa0/docent/internal/corpus"
)

// DefaultTopK is the number of results returned when WithTopK is not given.
const DefaultTopK = 5

// Corpus is the chunk enumeration the Index depends on.
// Following Go best practices: interfaces are defined by the consumer, not
// the provider; corpus.Store satisfies this through duck typing.
type Corpus interface {
	AllChunks(ctx context.Context) ([]corpus.Chunk, error)
}

// Result is one scored chunk. Ephemeral: produced per query, never persisted.
type Result struct {
	Chunk corpus.Chunk
	Score float32 // cosine similarity in [-1, 1]
}

// SearchOption configures search behavior using the functional options
// pattern.
type SearchOption func(*searchConfig)

type searchConfig struct {
	topK int
}

// WithTopK sets the maximum number of results to return.
func WithTopK(k int) SearchOption {
	return func(c *searchConfig) {
		if k > 0 {
			c.topK = k
		}
	}
}

// Index is the in-memory similarity index over the chunk corpus.
//
// Index is safe for concurrent use: searches run concurrently against a
// shared snapshot, mutations of the underlying corpus call Invalidate and the
// next search repopulates. Concurrent invalidate/repopulate races converge
// because loading holds the write lock; a search never observes a cache that
// predates the Invalidate call it raced with.
type Index struct {
	corpus   Corpus
	embedder ai.Embedder
	logger   *slog.Logger

	mu     sync.RWMutex
	chunks []corpus.Chunk
	loaded bool
}

// NewIndex creates an Index over c. logger nil means slog.Default().
func NewIndex(c Corpus, embedder ai.Embedder, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{corpus: c, embedder: embedder, logger: logger}
}

// Invalidate discards the cached corpus snapshot. Must be called (directly or
// via corpus.CacheInvalidator) after any insert, update, delete or purge.
func (ix *Index) Invalidate() {
	ix.mu.Lock()
	ix.chunks = nil
	ix.loaded = false
	ix.mu.Unlock()
}

// Search embeds the query once and returns the topK chunks ranked by cosine
// similarity, ordered by descending score with chunk ID ascending as the tie
// break so results are deterministic.
//
// Chunks with absent or dimension-mismatched embeddings produce no result at
// all (not a zero-score result); they are counted and logged once per search.
// An empty corpus or a failed query embedding yields an empty result set and
// a nil error: "no context found" is a normal, answerable state.
func (ix *Index) Search(ctx context.Context, query string, opts ...SearchOption) ([]Result, error) {
	cfg := &searchConfig{topK: DefaultTopK}
	for _, opt := range opts {
		opt(cfg)
	}

	chunks, err := ix.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return []Result{}, nil
	}

	queryEmbedding, err := embedText(ctx, ix.embedder, query)
	if err != nil {
		// Query embedding failure degrades the whole search to "no results"
		// rather than surfacing a fatal error to the caller.
		ix.logger.Warn("query embedding failed", "error", err)
		return []Result{}, nil
	}

	results := make([]Result, 0, len(chunks))
	skipped := 0
	for _, c := range chunks {
		if len(c.Embedding) == 0 || len(c.Embedding) != len(queryEmbedding) {
			skipped++
			continue
		}
		results = append(results, Result{Chunk: c, Score: cosineSimilarity(queryEmbedding, c.Embedding)})
	}
	if skipped > 0 {
		ix.logger.Debug("skipped chunks without usable embeddings", "count", skipped)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID.String() < results[j].Chunk.ID.String()
	})

	if len(results) > cfg.topK {
		results = results[:cfg.topK]
	}
	return results, nil
}

// snapshot returns the cached chunk corpus, populating it if needed. The
// write lock is held across the load so a concurrent Invalidate serializes
// either fully before or fully after the population.
func (ix *Index) snapshot(ctx context.Context) ([]corpus.Chunk, error) {
	ix.mu.RLock()
	if ix.loaded {
		chunks := ix.chunks
		ix.mu.RUnlock()
		return chunks, nil
	}
	ix.mu.RUnlock()

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.loaded {
		return ix.chunks, nil
	}

	chunks, err := ix.corpus.AllChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunk corpus: %w", err)
	}
	ix.chunks = chunks
	ix.loaded = true
	ix.logger.Debug("similarity index populated", "chunks", len(chunks))
	return chunks, nil
}

// embedText runs one embedding call and unwraps the single vector.
func embedText(ctx context.Context, embedder ai.Embedder, text string) ([]float32, error) {
	resp, err := embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{ai.DocumentFromText(text, nil)},
	})
	if err != nil {
		return nil, fmt.Errorf("embed failed: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("empty embedding returned")
	}
	return resp.Embeddings[0].Embedding, nil
}
