package ingest

import "errors"

// errEmptyEmbedding indicates the provider returned success with no vector.
// Treated identically to a provider failure: the chunk stays unembedded.
var errEmptyEmbedding = errors.New("empty embedding returned")
