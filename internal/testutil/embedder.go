// Package testutil provides shared test doubles for the retrieval pipeline:
// deterministic embedders, scripted generators and quiet loggers.
package testutil

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// WordEmbedderDim is the dimensionality of WordEmbedder vectors.
const WordEmbedderDim = 64

// WordEmbedder is a deterministic ai.Embedder for tests: each input text is
// hashed into a fixed-size bag-of-words vector, so identical text embeds
// identically and texts sharing words score higher under cosine similarity.
// No network, no flakiness.
//
// WordEmbedder is safe for concurrent use.
type WordEmbedder struct {
	// Err, when set, is returned by every Embed call.
	Err error

	// FailOn lists substrings; an input containing any of them fails with
	// Err (or a default error) while other inputs succeed.
	FailOn []string

	mu    sync.Mutex
	calls int
}

// Name implements ai.Embedder.
func (*WordEmbedder) Name() string { return "test/word-embedder" }

// Register implements ai.Embedder. No-op for testing.
func (*WordEmbedder) Register(api.Registry) {}

// Embed implements ai.Embedder.
func (e *WordEmbedder) Embed(_ context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	text := ""
	if len(req.Input) > 0 && len(req.Input[0].Content) > 0 {
		text = req.Input[0].Content[0].Text
	}

	if e.Err != nil && len(e.FailOn) == 0 {
		return nil, e.Err
	}
	for _, marker := range e.FailOn {
		if strings.Contains(text, marker) {
			err := e.Err
			if err == nil {
				err = errEmbedUnavailable
			}
			return nil, err
		}
	}

	return &ai.EmbedResponse{
		Embeddings: []*ai.Embedding{{Embedding: WordVector(text)}},
	}, nil
}

// Calls returns how many times Embed was invoked.
func (e *WordEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

// WordVector hashes text into a WordEmbedderDim-sized term-count vector.
func WordVector(text string) []float32 {
	v := make([]float32, WordEmbedderDim)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,:;!?()[]#`*")))
		v[h.Sum32()%WordEmbedderDim]++
	}
	return v
}
