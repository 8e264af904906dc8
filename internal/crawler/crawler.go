// Package crawler implements the bounded BFS ingestion pipeline: fetch,
// extract, chunk, embed, persist.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hackdesk/eventpilot/internal/chunker"
	"github.com/hackdesk/eventpilot/internal/extract"
	"github.com/hackdesk/eventpilot/internal/metrics"
	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// ErrNoModel is returned when neither the request nor the stored event
// carries a model id. The crawl is rejected before any fetch occurs.
var ErrNoModel = errors.New("no model configured for event")

// Config controls crawl behavior.
type Config struct {
	MaxDepthDefault    int
	MaxPagesDefault    int
	EmbeddingBatchSize int
	ArchivePrefix      string
	ArchiveContentType string
	CompletionTopic    string
}

// Crawler runs one BFS ingestion pass per event. A single event's crawl is
// expected to run at most once concurrently; a duplicate trigger is wasted
// work, not a correctness hazard, since the later run rewrites the same
// summary fields.
type Crawler struct {
	events    pipeline.EventStore
	pages     pipeline.PageStore
	chunks    pipeline.ChunkStore
	fetcher   pipeline.Fetcher
	embedder  pipeline.Embedder
	chunker   *chunker.Chunker
	blobs     pipeline.BlobStore
	publisher pipeline.Publisher
	hasher    pipeline.Hasher
	clock     pipeline.Clock
	ids       pipeline.IDGenerator
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Crawler. The blob store and publisher are optional; nil
// disables raw-page archival and completion notifications respectively.
func New(
	events pipeline.EventStore,
	pages pipeline.PageStore,
	chunks pipeline.ChunkStore,
	fetcher pipeline.Fetcher,
	embedder pipeline.Embedder,
	textChunker *chunker.Chunker,
	blobs pipeline.BlobStore,
	publisher pipeline.Publisher,
	hasher pipeline.Hasher,
	clock pipeline.Clock,
	ids pipeline.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if textChunker == nil {
		textChunker = chunker.New(0, 0)
	}
	if cfg.MaxDepthDefault <= 0 {
		cfg.MaxDepthDefault = 1
	}
	if cfg.MaxPagesDefault <= 0 {
		cfg.MaxPagesDefault = 10
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 8
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "pages"
	}
	if cfg.ArchiveContentType == "" {
		cfg.ArchiveContentType = "text/html; charset=utf-8"
	}
	metrics.Init()
	return &Crawler{
		events:    events,
		pages:     pages,
		chunks:    chunks,
		fetcher:   fetcher,
		embedder:  embedder,
		chunker:   textChunker,
		blobs:     blobs,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
	}
}

type queueItem struct {
	url   string
	depth int
}

// runBounds holds the resolved per-run limits after defaults are applied.
type runBounds struct {
	maxDepth        int
	maxPages        int
	includeExternal bool
}

// runTally accumulates counters across one BFS pass.
type runTally struct {
	chunksCreated  int
	wordsProcessed int
	urlsProcessed  int
	embeddingCount int
}

// Run executes the full ingestion pass for one event. The event moves
// pending -> crawling -> {completed, failed}; completed requires at least
// one persisted chunk. Per-page failures are logged and skipped, never
// abort the run.
func (c *Crawler) Run(ctx context.Context, eventID string, params pipeline.CrawlParams) (pipeline.CrawlResult, error) {
	event, err := c.events.GetEvent(ctx, eventID)
	if err != nil {
		return pipeline.CrawlResult{}, fmt.Errorf("load event: %w", err)
	}

	modelID := params.ModelID
	if modelID == "" {
		modelID = event.ModelID
	}
	if modelID == "" {
		return pipeline.CrawlResult{}, ErrNoModel
	}

	bounds := runBounds{
		maxDepth:        c.cfg.MaxDepthDefault,
		maxPages:        c.cfg.MaxPagesDefault,
		includeExternal: params.IncludeExternal,
	}
	// An explicit max_depth of 0 means the root page only; absent means the
	// configured default.
	if params.MaxDepth != nil && *params.MaxDepth >= 0 {
		bounds.maxDepth = *params.MaxDepth
	}
	if params.MaxPages != nil && *params.MaxPages > 0 {
		bounds.maxPages = *params.MaxPages
	}

	if err := c.events.UpdateEventStatus(ctx, eventID, pipeline.EventStatusCrawling, modelID); err != nil {
		return pipeline.CrawlResult{}, fmt.Errorf("mark event crawling: %w", err)
	}

	startedAt := c.clock.Now()
	tally := c.crawl(ctx, event, bounds)

	// The terminal status is decided by what actually landed in the
	// store, not by the in-run tally.
	persisted, err := c.chunks.CountChunks(ctx, eventID)
	if err != nil {
		c.logger.Error("count chunks failed", zap.String("event_id", eventID), zap.Error(err))
		persisted = tally.chunksCreated
	}

	finishedAt := c.clock.Now()
	summary := pipeline.CrawlSummary{
		ChunksCreated:  tally.chunksCreated,
		WordsProcessed: tally.wordsProcessed,
		URLsProcessed:  tally.urlsProcessed,
		EmbeddingCount: tally.embeddingCount,
		StartedAt:      &startedAt,
		FinishedAt:     &finishedAt,
	}

	status := pipeline.EventStatusCompleted
	if persisted == 0 {
		status = pipeline.EventStatusFailed
		summary.LastError = "no content chunks were created during crawl"
	}

	if err := c.events.UpdateEventSummary(ctx, eventID, status, summary); err != nil {
		return pipeline.CrawlResult{}, fmt.Errorf("record crawl summary: %w", err)
	}
	metrics.ObserveCrawlRun(string(status))

	c.publishCompletion(ctx, eventID, status, tally, summary.LastError)

	return pipeline.CrawlResult{
		Success:        status == pipeline.EventStatusCompleted,
		ChunksCreated:  tally.chunksCreated,
		WordsProcessed: tally.wordsProcessed,
		URLsProcessed:  tally.urlsProcessed,
	}, nil
}

// crawl drives the FIFO frontier. The visited set is keyed on normalized
// absolute URLs and covers queued entries too, so nothing is fetched or
// enqueued twice within a run.
func (c *Crawler) crawl(ctx context.Context, event pipeline.Event, bounds runBounds) runTally {
	var tally runTally

	root, err := pipeline.NormalizeURL(event.RootURL)
	if err != nil {
		c.logger.Error("invalid root url", zap.String("event_id", event.ID), zap.String("url", event.RootURL), zap.Error(err))
		return tally
	}

	queue := []queueItem{{url: root, depth: 0}}
	seen := map[string]bool{root: true}

	for len(queue) > 0 && tally.urlsProcessed < bounds.maxPages {
		if ctx.Err() != nil {
			return tally
		}
		item := queue[0]
		queue = queue[1:]
		if item.depth > bounds.maxDepth {
			continue
		}

		links, ok := c.processPage(ctx, event.ID, item.url, &tally)
		if !ok {
			continue
		}

		if item.depth >= bounds.maxDepth {
			continue
		}
		next := links.Internal
		if bounds.includeExternal {
			next = append(next, links.External...)
		}
		for _, raw := range next {
			if len(queue)+tally.urlsProcessed >= bounds.maxPages {
				break
			}
			normalized, err := pipeline.NormalizeURL(raw)
			if err != nil || seen[normalized] {
				continue
			}
			seen[normalized] = true
			queue = append(queue, queueItem{url: normalized, depth: item.depth + 1})
		}
	}
	return tally
}

// processPage fetches, extracts, archives, persists, chunks, and embeds one
// page. It returns the discovered links and whether the page was processed.
func (c *Crawler) processPage(ctx context.Context, eventID, pageURL string, tally *runTally) (extract.Links, bool) {
	resp, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		c.logger.Warn("page fetch failed",
			zap.String("event_id", eventID),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		metrics.ObservePage(pageURL, "fetch_failed")
		return extract.Links{}, false
	}
	tally.urlsProcessed++

	html := string(resp.Body)
	text := extract.Text(html)
	info := extract.Info(html, text)
	links := extract.PageLinks(html, pageURL)
	words := extract.WordCount(text)

	title := info.Title
	if title == "" {
		title = extract.HostnameOf(pageURL)
	}

	contentHash := ""
	if c.hasher != nil {
		if h, err := c.hasher.Hash(resp.Body); err == nil {
			contentHash = h
		}
	}

	pageID, err := c.ids.NewID()
	if err != nil {
		c.logger.Error("generate page id failed", zap.Error(err))
		return links, false
	}

	page := pipeline.CrawledPage{
		ID:            pageID,
		EventID:       eventID,
		URL:           pageURL,
		Title:         title,
		Text:          text,
		Info:          info,
		WordCount:     words,
		InternalLinks: len(links.Internal),
		ExternalLinks: len(links.External),
		ArchiveURI:    c.archivePage(ctx, eventID, contentHash, resp.Body),
		ContentHash:   contentHash,
		FetchedAt:     c.clock.Now(),
	}
	if _, err := c.pages.CreatePage(ctx, page); err != nil {
		// A page left over from an earlier run keeps its chunks; only the
		// link discovery is repeated.
		if errors.Is(err, pipeline.ErrPageExists) {
			metrics.ObservePage(pageURL, "duplicate")
			return links, true
		}
		c.logger.Error("persist page failed",
			zap.String("event_id", eventID),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		metrics.ObservePage(pageURL, "persist_failed")
		return links, false
	}

	tally.wordsProcessed += words
	c.embedAndStoreChunks(ctx, eventID, pageID, c.chunker.Split(text), tally)
	metrics.ObservePage(pageURL, "processed")
	return links, true
}

// embedAndStoreChunks dispatches embedding calls in small concurrent
// batches. Every chunk is persisted whether or not its embedding succeeded;
// an embedding failure degrades that one chunk to text-only.
func (c *Crawler) embedAndStoreChunks(ctx context.Context, eventID, pageID string, texts []string, tally *runTally) {
	batchSize := c.cfg.EmbeddingBatchSize
	before := tally.chunksCreated

	var mu sync.Mutex
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(position int, text string) {
				defer wg.Done()
				vector, model := c.embedder.Embed(ctx, text)
				metrics.ObserveEmbedding(len(vector) > 0)

				chunkID, err := c.ids.NewID()
				if err != nil {
					c.logger.Error("generate chunk id failed", zap.Error(err))
					return
				}
				chunk := pipeline.ContentChunk{
					ID:             chunkID,
					EventID:        eventID,
					PageID:         pageID,
					Position:       position,
					Text:           text,
					Embedding:      vector,
					EmbeddingModel: model,
					CreatedAt:      c.clock.Now(),
				}
				if err := c.chunks.CreateChunk(ctx, chunk); err != nil {
					c.logger.Error("persist chunk failed",
						zap.String("event_id", eventID),
						zap.Int("position", position),
						zap.Error(err),
					)
					return
				}
				mu.Lock()
				tally.chunksCreated++
				if chunk.HasEmbedding() {
					tally.embeddingCount++
				}
				mu.Unlock()
			}(i, texts[i])
		}
		wg.Wait()
	}
	metrics.AddChunks(tally.chunksCreated - before)
}

// archivePage writes the raw HTML to the blob store when one is configured.
// Archive failures are logged and ignored; the page record simply carries
// no archive URI.
func (c *Crawler) archivePage(ctx context.Context, eventID, contentHash string, body []byte) string {
	if c.blobs == nil || contentHash == "" {
		return ""
	}
	objectPath := path.Join(c.cfg.ArchivePrefix, eventID, contentHash+".html")
	uri, err := c.blobs.PutObject(ctx, objectPath, c.cfg.ArchiveContentType, strings.NewReader(string(body)))
	if err != nil {
		c.logger.Warn("archive page failed", zap.String("path", objectPath), zap.Error(err))
		return ""
	}
	return uri
}

func (c *Crawler) publishCompletion(ctx context.Context, eventID string, status pipeline.EventStatus, tally runTally, errText string) {
	if c.publisher == nil {
		return
	}
	payload := pipeline.CrawlCompletion{
		EventID:        eventID,
		Status:         status,
		ChunksCreated:  tally.chunksCreated,
		WordsProcessed: tally.wordsProcessed,
		URLsProcessed:  tally.urlsProcessed,
		Error:          errText,
	}
	if _, err := c.publisher.Publish(ctx, c.cfg.CompletionTopic, payload); err != nil {
		c.logger.Error("publish crawl completion failed", zap.String("event_id", eventID), zap.Error(err))
	}
}
