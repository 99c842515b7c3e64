package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

var (
	// ErrFileNotFound indicates the requested file path is not in the corpus.
	ErrFileNotFound = errors.New("file not found")
)

// DB is the subset of pgxpool.Pool used by Store.
// Following Go best practices: interfaces are defined by the consumer, not
// the provider (similar to io.Reader, http.RoundTripper, sql.Driver).
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// CacheInvalidator is notified whenever the persisted corpus changes so that
// any in-memory view of it can be discarded. A stale cache is a correctness
// bug, not merely a performance one: retrieval must reflect the latest
// ingested content.
type CacheInvalidator interface {
	Invalidate()
}

// Store persists documentation files, chunks and chat history in PostgreSQL
// with pgvector embeddings.
//
// Every mutating operation calls the configured CacheInvalidator before
// returning, so callers holding a cached corpus view never serve stale data.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     DB
	cache  CacheInvalidator
	logger *slog.Logger
}

// NewStore creates a Store. cache may be nil when no corpus view is cached
// (e.g. short-lived CLI commands); logger nil means slog.Default().
func NewStore(db DB, cache CacheInvalidator, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, cache: cache, logger: logger}
}

// SetCache installs the invalidator after construction. The similarity index
// caches the corpus and is itself built on top of the Store, so the two are
// wired in two steps. Must be called before the Store is shared across
// goroutines.
func (s *Store) SetCache(cache CacheInvalidator) {
	s.cache = cache
}

// invalidate notifies the cache holder, if any.
func (s *Store) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

// AllChunks enumerates the full chunk corpus. Used to populate the
// similarity index cache; chunks without embeddings are included (the index
// skips them at scoring time).
func (s *Store) AllChunks(ctx context.Context) ([]Chunk, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, file_id, content, metadata, embedding, updated_at
		FROM chunks
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			c         Chunk
			metaJSON  []byte
			embedding *pgvector.Vector
		)
		if err := rows.Scan(&c.ID, &c.FileID, &c.Content, &metaJSON, &embedding, &c.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		if err := json.Unmarshal(metaJSON, &c.Metadata); err != nil {
			// Malformed metadata degrades to empty provenance, not a failed scan.
			s.logger.Warn("failed to parse chunk metadata", "chunk_id", c.ID, "error", err)
			c.Metadata = ChunkMetadata{}
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read chunks: %w", err)
	}

	return chunks, nil
}

// ReplaceChunksForFile atomically replaces all chunks belonging to a file.
// Prior chunks are deleted in the same transaction that inserts the new ones;
// without this, stale and fresh chunks would coexist and corrupt ranking.
func (s *Store) ReplaceChunksForFile(ctx context.Context, fileID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE file_id = $1`, fileID); err != nil {
		return fmt.Errorf("failed to delete prior chunks: %w", err)
	}

	for _, c := range chunks {
		metaJSON, err := json.Marshal(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", err)
		}

		var embedding *pgvector.Vector
		if c.Embedding != nil {
			v := pgvector.NewVector(c.Embedding)
			embedding = &v
		}

		updatedAt := c.LastUpdated
		if updatedAt.IsZero() {
			updatedAt = time.Now()
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO chunks (id, file_id, content, metadata, embedding, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			c.ID, fileID, c.Content, metaJSON, embedding, updatedAt); err != nil {
			return fmt.Errorf("failed to insert chunk %q: %w", c.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunk replacement: %w", err)
	}

	s.invalidate()
	s.logger.Debug("replaced chunks", "file_id", fileID, "count", len(chunks))
	return nil
}

// UpsertFile inserts or updates a file record keyed by its unique path and
// returns the file ID.
func (s *Store) UpsertFile(ctx context.Context, f File) (uuid.UUID, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO files (id, path, content, has_images, source_url, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (path) DO UPDATE SET
			content = EXCLUDED.content,
			has_images = EXCLUDED.has_images,
			source_url = EXCLUDED.source_url,
			updated_at = now()
		RETURNING id`,
		f.ID, f.Path, f.Content, f.HasImages, f.SourceURL).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert file %q: %w", f.Path, err)
	}

	s.invalidate()
	return id, nil
}

// FileByPath returns the file record for path, or ErrFileNotFound.
func (s *Store) FileByPath(ctx context.Context, path string) (File, error) {
	var f File
	err := s.db.QueryRow(ctx, `
		SELECT id, path, content, has_images, source_url, updated_at
		FROM files WHERE path = $1`, path).
		Scan(&f.ID, &f.Path, &f.Content, &f.HasImages, &f.SourceURL, &f.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return File{}, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to query file %q: %w", path, err)
	}
	return f, nil
}

// ListFiles returns all file records ordered by path.
func (s *Store) ListFiles(ctx context.Context) ([]File, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, path, content, has_images, source_url, updated_at
		FROM files ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		if err := rows.Scan(&f.ID, &f.Path, &f.Content, &f.HasImages, &f.SourceURL, &f.LastUpdated); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read files: %w", err)
	}
	return files, nil
}

// PurgeAll removes every file, chunk and conversation turn from the corpus.
func (s *Store) PurgeAll(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `TRUNCATE chunks, files, turns`); err != nil {
		return fmt.Errorf("failed to purge corpus: %w", err)
	}

	s.invalidate()
	s.logger.Info("corpus purged")
	return nil
}

// AppendTurn records one conversation turn for a session.
func (s *Store) AppendTurn(ctx context.Context, sessionID uuid.UUID, turn Turn) error {
	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := s.db.Exec(ctx, `
		INSERT INTO turns (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), sessionID, string(turn.Role), turn.Content, createdAt); err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// History returns the most recent limit turns of a session in chronological
// order (oldest first), ready for prompt assembly.
func (s *Store) History(ctx context.Context, sessionID uuid.UUID, limit int) ([]Turn, error) {
	rows, err := s.db.Query(ctx, `
		SELECT role, content, created_at FROM (
			SELECT role, content, created_at
			FROM turns
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
		)
		if err := rows.Scan(&role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		t.Role = Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return turns, nil
}
