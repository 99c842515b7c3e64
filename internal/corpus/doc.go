// Package corpus owns the persisted retrieval corpus: documentation files,
// their derived chunks with vector embeddings, and conversation history.
//
// Storage is PostgreSQL with pgvector; vectors cross the storage boundary as
// native []float32, serialization is purely a persistence concern. The chunk
// lifecycle is wholesale replacement: re-ingesting a file deletes its prior
// chunks and inserts fresh ones in one transaction.
//
// Every mutation notifies a CacheInvalidator so the in-memory similarity
// index never serves a stale view of the corpus.
package corpus
