// Package retrieval selects the stored chunks most relevant to a query.
// The fallback order is a first-class list of strategies rather than buried
// control flow: vector search, then recency, then anything at all.
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/hackdesk/eventpilot/internal/metrics"
	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Defaults for the similarity cascade.
const (
	DefaultLimit               = 5
	DefaultSimilarityThreshold = 0.3
)

// Config controls the engine.
type Config struct {
	Limit               int
	SimilarityThreshold float64
}

// strategy is one level of the cascade. It returns the chunks it found; an
// empty result (or an error, which is logged) hands over to the next level.
type strategy struct {
	name string
	run  func(ctx context.Context, eventID, query string, limit int) ([]string, error)
}

// Engine answers FindRelevantContent with a cascading strategy list.
// It never returns an error for a normal "not enough content yet"
// situation; it only returns fewer, or zero, results.
type Engine struct {
	chunks     pipeline.ChunkStore
	embedder   pipeline.Embedder
	cfg        Config
	strategies []strategy
	logger     *zap.Logger
}

// New constructs an Engine.
func New(chunks pipeline.ChunkStore, embedder pipeline.Embedder, cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = DefaultSimilarityThreshold
	}
	metrics.Init()
	e := &Engine{
		chunks:   chunks,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
	e.strategies = []strategy{
		{name: "vector", run: e.vectorSearch},
		{name: "recent", run: e.recentChunks},
		{name: "any", run: e.anyChunks},
	}
	return e
}

// FindRelevantContent returns up to limit chunk texts for the event,
// ordered by the first strategy that produced anything. An event with zero
// chunks short-circuits to an empty result before any provider call: that
// is the "ingestion not ready" signal the orchestrator keys off.
func (e *Engine) FindRelevantContent(ctx context.Context, eventID, query string, limit int) []string {
	if limit <= 0 {
		limit = e.cfg.Limit
	}

	total, err := e.chunks.CountChunks(ctx, eventID)
	if err != nil {
		e.logger.Error("count chunks failed", zap.String("event_id", eventID), zap.Error(err))
		// Assume content may exist and let the cascade try.
		total = -1
	}
	if total == 0 {
		metrics.ObserveRetrieval("empty")
		return nil
	}

	for _, s := range e.strategies {
		results, err := s.run(ctx, eventID, query, limit)
		if err != nil {
			e.logger.Warn("retrieval strategy failed",
				zap.String("strategy", s.name),
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			continue
		}
		if len(results) > 0 {
			metrics.ObserveRetrieval(s.name)
			return results
		}
	}
	metrics.ObserveRetrieval("none")
	return nil
}

// vectorSearch embeds the query and runs a cosine similarity search over
// this event's embedded chunks. A failed query embedding, an event with no
// embedded chunks, or nothing above threshold all defer to the next level.
func (e *Engine) vectorSearch(ctx context.Context, eventID, query string, limit int) ([]string, error) {
	vector, model := e.embedder.Embed(ctx, query)
	if len(vector) == 0 {
		e.logger.Debug("query embedding unavailable, skipping vector search", zap.String("event_id", eventID))
		return nil, nil
	}

	embedded, err := e.chunks.CountEmbeddedChunks(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if embedded == 0 {
		return nil, nil
	}

	return e.chunks.SearchChunks(ctx, eventID, vector, model, e.cfg.SimilarityThreshold, limit)
}

func (e *Engine) recentChunks(ctx context.Context, eventID, _ string, limit int) ([]string, error) {
	return e.chunks.RecentChunks(ctx, eventID, limit)
}

func (e *Engine) anyChunks(ctx context.Context, eventID, _ string, limit int) ([]string, error) {
	return e.chunks.AnyChunks(ctx, eventID, limit)
}
