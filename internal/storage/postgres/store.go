// Package postgres provides Postgres-backed persistence for events, pages,
// chunks and chat messages. Chunk vectors live in a pgvector column.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// querier is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store implements the pipeline store interfaces over Postgres.
type Store struct {
	pool querier
	ids  pipeline.IDGenerator
}

// NewStore connects a pool and wraps it in a Store.
func NewStore(ctx context.Context, cfg Config, ids pipeline.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, ids: ids}, nil
}

// NewStoreWithPool wraps an existing pool (primarily for testing).
func NewStoreWithPool(pool querier, ids pipeline.IDGenerator) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, ids: ids}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// GetEvent loads one event row.
func (s *Store) GetEvent(ctx context.Context, eventID string) (pipeline.Event, error) {
	const query = `
SELECT id, root_url, name, COALESCE(model_id, ''), status, COALESCE(crawl_summary, '{}'::jsonb), created_at
FROM events
WHERE id = $1`

	var (
		event       pipeline.Event
		status      string
		summaryJSON []byte
	)
	err := s.pool.QueryRow(ctx, query, eventID).Scan(
		&event.ID,
		&event.RootURL,
		&event.Name,
		&event.ModelID,
		&status,
		&summaryJSON,
		&event.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return pipeline.Event{}, pipeline.ErrEventNotFound
	}
	if err != nil {
		return pipeline.Event{}, fmt.Errorf("query event: %w", err)
	}
	event.Status = pipeline.EventStatus(status)
	if err := json.Unmarshal(summaryJSON, &event.Summary); err != nil {
		return pipeline.Event{}, fmt.Errorf("decode crawl summary: %w", err)
	}
	return event, nil
}

// UpdateEventStatus sets the status and, when non-empty, the model id.
func (s *Store) UpdateEventStatus(ctx context.Context, eventID string, status pipeline.EventStatus, modelID string) error {
	const query = `
UPDATE events
SET status = $2,
    model_id = COALESCE(NULLIF($3, ''), model_id)
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, eventID, string(status), modelID)
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrEventNotFound
	}
	return nil
}

// UpdateEventSummary records the terminal status and run counters.
func (s *Store) UpdateEventSummary(ctx context.Context, eventID string, status pipeline.EventStatus, summary pipeline.CrawlSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode crawl summary: %w", err)
	}

	const query = `
UPDATE events
SET status = $2,
    crawl_summary = $3
WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, eventID, string(status), summaryJSON)
	if err != nil {
		return fmt.Errorf("update event summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pipeline.ErrEventNotFound
	}
	return nil
}

// CreatePage inserts a crawled page row.
func (s *Store) CreatePage(ctx context.Context, page pipeline.CrawledPage) (string, error) {
	infoJSON, err := json.Marshal(page.Info)
	if err != nil {
		return "", fmt.Errorf("encode page info: %w", err)
	}

	const query = `
INSERT INTO crawled_pages (
	id, event_id, url, title, page_text, page_info,
	word_count, internal_links, external_links,
	archive_uri, content_hash, fetched_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (event_id, url) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		page.ID,
		page.EventID,
		page.URL,
		page.Title,
		page.Text,
		infoJSON,
		page.WordCount,
		page.InternalLinks,
		page.ExternalLinks,
		page.ArchiveURI,
		page.ContentHash,
		page.FetchedAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert page: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return "", pipeline.ErrPageExists
	}
	return page.ID, nil
}

// CreateChunk inserts a chunk row. Chunks without a vector store NULL in
// the embedding column. When the column rejects the vector (a deployment
// pinned to another model's dimension), the chunk is re-inserted without it
// so the text is never lost.
func (s *Store) CreateChunk(ctx context.Context, chunk pipeline.ContentChunk) error {
	const query = `
INSERT INTO content_chunks (
	id, event_id, page_id, position, chunk_text,
	embedding, embedding_model, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if chunk.HasEmbedding() {
		_, err := s.pool.Exec(ctx, query,
			chunk.ID,
			chunk.EventID,
			chunk.PageID,
			chunk.Position,
			chunk.Text,
			pgvector.NewVector(chunk.Embedding),
			chunk.EmbeddingModel,
			chunk.CreatedAt,
		)
		if err == nil {
			return nil
		}
	}

	_, err := s.pool.Exec(ctx, query,
		chunk.ID,
		chunk.EventID,
		chunk.PageID,
		chunk.Position,
		chunk.Text,
		nil,
		"",
		chunk.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", err)
	}
	return nil
}

// CountChunks counts all chunks stored for an event.
func (s *Store) CountChunks(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM content_chunks WHERE event_id = $1`

	var count int
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

// CountEmbeddedChunks counts chunks carrying a vector.
func (s *Store) CountEmbeddedChunks(ctx context.Context, eventID string) (int, error) {
	const query = `SELECT COUNT(*) FROM content_chunks WHERE event_id = $1 AND embedding IS NOT NULL`

	var count int
	if err := s.pool.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count embedded chunks: %w", err)
	}
	return count, nil
}

// SearchChunks runs a cosine similarity search over the event's chunks
// embedded with the same model, best match first.
func (s *Store) SearchChunks(ctx context.Context, eventID string, query []float32, model string, threshold float64, limit int) ([]string, error) {
	const sql = `
SELECT chunk_text
FROM content_chunks
WHERE event_id = $1
  AND embedding IS NOT NULL
  AND embedding_model = $2
  AND 1 - (embedding <=> $3) >= $4
ORDER BY embedding <=> $3
LIMIT $5`

	rows, err := s.pool.Query(ctx, sql, eventID, model, pgvector.NewVector(query), threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	defer rows.Close()
	return scanTexts(rows)
}

// RecentChunks returns chunk texts newest first, with or without vectors.
func (s *Store) RecentChunks(ctx context.Context, eventID string, limit int) ([]string, error) {
	const query = `
SELECT chunk_text
FROM content_chunks
WHERE event_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent chunks: %w", err)
	}
	defer rows.Close()
	return scanTexts(rows)
}

// AnyChunks returns up to limit chunk texts with no ordering guarantee.
func (s *Store) AnyChunks(ctx context.Context, eventID string, limit int) ([]string, error) {
	const query = `
SELECT chunk_text
FROM content_chunks
WHERE event_id = $1
LIMIT $2`

	rows, err := s.pool.Query(ctx, query, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("any chunks: %w", err)
	}
	defer rows.Close()
	return scanTexts(rows)
}

// CreateMessage inserts a chat message, minting an id when missing.
func (s *Store) CreateMessage(ctx context.Context, msg pipeline.ChatMessage) (pipeline.ChatMessage, error) {
	if msg.ID == "" {
		if s.ids == nil {
			return pipeline.ChatMessage{}, fmt.Errorf("message id is required")
		}
		id, err := s.ids.NewID()
		if err != nil {
			return pipeline.ChatMessage{}, fmt.Errorf("generate message id: %w", err)
		}
		msg.ID = id
	}

	metaJSON, err := json.Marshal(msg.Metadata)
	if err != nil {
		return pipeline.ChatMessage{}, fmt.Errorf("encode message metadata: %w", err)
	}

	const query = `
INSERT INTO chat_messages (id, session_id, role, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = s.pool.Exec(ctx, query, msg.ID, msg.SessionID, msg.Role, msg.Content, metaJSON, msg.CreatedAt)
	if err != nil {
		return pipeline.ChatMessage{}, fmt.Errorf("insert message: %w", err)
	}
	return msg, nil
}

func scanTexts(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan chunk text: %w", err)
		}
		out = append(out, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}
