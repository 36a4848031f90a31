// Package policy provides the tenant-partitioned policy corpus backed by
// PostgreSQL + pgvector.
//
// Every chunk belongs to exactly one tenant. Searches are scoped to the
// requesting tenant; a tenant with no matches falls back once to the shared
// default corpus. The shared corpus is never visible to another tenant's
// primary search.
package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/arcalabs/arca/internal/chunk"
	"github.com/arcalabs/arca/internal/gemini"
	"github.com/arcalabs/arca/internal/log"
)

// DefaultTenant is the shared corpus visible to all tenants' fallbacks.
const DefaultTenant = "default"

// MaxTopK caps search result counts to prevent unbounded queries.
const MaxTopK = 100

var (
	// ErrEmptyDocument indicates an add call with no usable text.
	ErrEmptyDocument = errors.New("document text is empty")

	// ErrMissingTenant indicates a call without a tenant identifier.
	ErrMissingTenant = errors.New("tenant ID is required")
)

// Embedder is the embedding surface the store consumes.
// *gemini.Client satisfies it.
type Embedder interface {
	Embed(ctx context.Context, text string, purpose gemini.Purpose) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string, purpose gemini.Purpose) []gemini.EmbedResult
}

// dbConn is the pgx surface the store consumes; *pgxpool.Pool satisfies it.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Match is one search hit: chunk identifier plus text, in the relevance
// order the backing index returned.
type Match struct {
	ID      string
	Content string
}

// Store manages policy chunks in PostgreSQL.
//
// Store is safe for concurrent use.
type Store struct {
	db            dbConn
	embedder      Embedder
	splitter      chunk.Splitter
	defaultTenant string
	logger        log.Logger
}

// NewStore creates a policy store. defaultTenant falls back to
// DefaultTenant when empty.
func NewStore(db dbConn, embedder Embedder, splitter chunk.Splitter, defaultTenant string, logger log.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if defaultTenant == "" {
		defaultTenant = DefaultTenant
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{
		db:            db,
		embedder:      embedder,
		splitter:      splitter,
		defaultTenant: defaultTenant,
		logger:        logger,
	}, nil
}

const insertChunkSQL = `INSERT INTO policy_chunks (id, tenant_id, source, content, embedding)
	VALUES ($1, $2, $3, $4, $5)`

// Add chunks the document, embeds each chunk, and inserts the results under
// the given tenant. Chunk IDs are tenant-prefixed UUIDs. Degraded
// embeddings are skipped with a warning rather than indexed as meaningless
// vectors. Storage errors propagate; nothing retries at this layer.
func (s *Store) Add(ctx context.Context, text, filename, tenantID string) error {
	if tenantID == "" {
		return ErrMissingTenant
	}

	chunks := s.splitter.Split(text)
	if len(chunks) == 0 {
		return ErrEmptyDocument
	}

	results := s.embedder.EmbedBatch(ctx, chunks, gemini.PurposeDocument)

	inserted := 0
	skipped := 0
	for i, res := range results {
		if res.Degraded() {
			// Credential exhaustion poisons the whole batch; per-item
			// failures only drop the affected chunk.
			if errors.Is(res.Err, gemini.ErrCredentialsExhausted) {
				return fmt.Errorf("embedding document chunks: %w", res.Err)
			}
			skipped++
			s.logger.Warn("skipping chunk with degraded embedding",
				"source", filename, "tenant", tenantID, "chunk", i, "error", res.Err)
			continue
		}

		id := fmt.Sprintf("%s-%s", tenantID, uuid.NewString())
		if _, err := s.db.Exec(ctx, insertChunkSQL,
			id, tenantID, filename, chunks[i], pgvector.NewVector(res.Vector)); err != nil {
			return fmt.Errorf("inserting policy chunk: %w", err)
		}
		inserted++
	}

	s.logger.Info("document indexed",
		"source", filename, "tenant", tenantID, "chunks", inserted, "skipped", skipped)
	return nil
}

const searchSQL = `SELECT id, content
	FROM policy_chunks
	WHERE tenant_id = $1
	ORDER BY embedding <=> $2
	LIMIT $3`

// Search returns up to topK chunks for the tenant, ordered by the backing
// index's cosine ranking. A tenant with zero matches falls back once to the
// shared default corpus; no matches anywhere returns an empty slice, never
// an error.
func (s *Store) Search(ctx context.Context, query, tenantID string, topK int) ([]Match, error) {
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	if query == "" {
		return []Match{}, nil
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	vec, err := s.embedder.Embed(ctx, query, gemini.PurposeQuery)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := s.queryTenant(ctx, vec, tenantID, topK)
	if err != nil {
		return nil, err
	}

	if len(matches) == 0 && tenantID != s.defaultTenant {
		s.logger.Debug("no tenant matches, falling back to shared corpus", "tenant", tenantID)
		matches, err = s.queryTenant(ctx, vec, s.defaultTenant, topK)
		if err != nil {
			return nil, err
		}
	}

	return matches, nil
}

func (s *Store) queryTenant(ctx context.Context, vec []float32, tenantID string, topK int) ([]Match, error) {
	rows, err := s.db.Query(ctx, searchSQL, tenantID, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("querying policy chunks: %w", err)
	}
	defer rows.Close()

	matches := []Match{}
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content); err != nil {
			return nil, fmt.Errorf("scanning policy chunk: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading policy chunks: %w", err)
	}
	return matches, nil
}
