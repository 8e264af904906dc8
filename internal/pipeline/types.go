// Package pipeline defines core types shared across the ingestion and chat subsystems.
package pipeline

import (
	"time"
)

// EventStatus represents the lifecycle state of an event's ingestion.
type EventStatus string

// Event status values persisted in the event store.
const (
	EventStatusPending   EventStatus = "pending"
	EventStatusCrawling  EventStatus = "crawling"
	EventStatusCompleted EventStatus = "completed"
	EventStatusFailed    EventStatus = "failed"
)

// Terminal reports whether the status is a final state.
func (s EventStatus) Terminal() bool {
	return s == EventStatusCompleted || s == EventStatusFailed
}

// Event is the unit of ingestion: one public event page and everything
// crawled under it.
type Event struct {
	ID        string       `json:"id"`
	RootURL   string       `json:"root_url"`
	Name      string       `json:"name"`
	ModelID   string       `json:"model_id,omitempty"`
	Status    EventStatus  `json:"status"`
	Summary   CrawlSummary `json:"crawl_summary"`
	CreatedAt time.Time    `json:"created_at"`
}

// CrawlSummary captures counters recorded on the event after a crawl run.
type CrawlSummary struct {
	ChunksCreated  int        `json:"chunks_created"`
	WordsProcessed int        `json:"words_processed"`
	URLsProcessed  int        `json:"urls_processed"`
	EmbeddingCount int        `json:"embedding_count"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

// CrawlParams captures per-run configuration requested by the client. The
// bound fields are pointers so an explicit 0 (crawl the root page only) is
// distinguishable from an absent value, which selects the configured default.
type CrawlParams struct {
	MaxDepth        *int   `json:"max_depth,omitempty"`
	MaxPages        *int   `json:"max_pages,omitempty"`
	IncludeExternal bool   `json:"include_external"`
	ModelID         string `json:"model_id,omitempty"`
}

// CrawlResult is returned by the ingestion trigger.
type CrawlResult struct {
	Success        bool `json:"success"`
	ChunksCreated  int  `json:"chunks_created"`
	WordsProcessed int  `json:"words_processed"`
	URLsProcessed  int  `json:"urls_processed"`
}

// PageInfo is the best-effort structured extraction attached to a page.
// Empty categories are normal, never an error.
type PageInfo struct {
	Title        string   `json:"title,omitempty"`
	Dates        []string `json:"dates,omitempty"`
	Prizes       []string `json:"prizes,omitempty"`
	Deadlines    []string `json:"deadlines,omitempty"`
	Location     string   `json:"location,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// CrawledPage is persisted once per visited URL and never mutated afterwards.
type CrawledPage struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	URL           string    `json:"url"`
	Title         string    `json:"title"`
	Text          string    `json:"text"`
	Info          PageInfo  `json:"info"`
	WordCount     int       `json:"word_count"`
	InternalLinks int       `json:"internal_links"`
	ExternalLinks int       `json:"external_links"`
	ArchiveURI    string    `json:"archive_uri,omitempty"`
	ContentHash   string    `json:"content_hash,omitempty"`
	FetchedAt     time.Time `json:"fetched_at"`
}

// ContentChunk is the retrieval unit. Embedding is nullable: a chunk without
// a vector is a first-class state, not a failure.
type ContentChunk struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	PageID         string    `json:"page_id"`
	Position       int       `json:"position"`
	Text           string    `json:"text"`
	Embedding      []float32 `json:"-"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// HasEmbedding reports whether the chunk carries a vector.
func (c ContentChunk) HasEmbedding() bool {
	return len(c.Embedding) > 0
}

// ChatMessage is an assistant turn appended by the orchestrator.
type ChatMessage struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  MessageMeta    `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// MessageMeta records how an assistant answer was produced.
type MessageMeta struct {
	ContextChunks int    `json:"context_chunks"`
	Model         string `json:"model"`
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// CrawlCompletion is published after a run reaches a terminal status.
type CrawlCompletion struct {
	EventID        string      `json:"event_id"`
	Status         EventStatus `json:"status"`
	ChunksCreated  int         `json:"chunks_created"`
	WordsProcessed int         `json:"words_processed"`
	URLsProcessed  int         `json:"urls_processed"`
	Error          string      `json:"error,omitempty"`
}
