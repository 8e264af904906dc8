package pipeline

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrEventNotFound is returned by stores when an event id is unknown.
var ErrEventNotFound = errors.New("event not found")

// ErrPageExists is returned by CreatePage when the event already has a page
// for the same URL, typically on a re-triggered crawl.
var ErrPageExists = errors.New("page already exists for url")

// EventStore persists event lifecycle state. Status transitions are owned
// exclusively by the crawler.
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	UpdateEventStatus(ctx context.Context, eventID string, status EventStatus, modelID string) error
	UpdateEventSummary(ctx context.Context, eventID string, status EventStatus, summary CrawlSummary) error
}

// PageStore persists crawled pages.
type PageStore interface {
	CreatePage(ctx context.Context, page CrawledPage) (string, error)
}

// ChunkStore persists and reads content chunks.
type ChunkStore interface {
	CreateChunk(ctx context.Context, chunk ContentChunk) error
	CountChunks(ctx context.Context, eventID string) (int, error)
	CountEmbeddedChunks(ctx context.Context, eventID string) (int, error)
	// SearchChunks returns chunk texts ordered by descending cosine
	// similarity to the query vector, restricted to one event and to
	// vectors produced by the same embedding model.
	SearchChunks(ctx context.Context, eventID string, query []float32, model string, threshold float64, limit int) ([]string, error)
	// RecentChunks returns chunk texts in reverse chronological order,
	// regardless of embedding presence.
	RecentChunks(ctx context.Context, eventID string, limit int) ([]string, error)
	// AnyChunks returns up to limit chunk texts with no ordering guarantee.
	AnyChunks(ctx context.Context, eventID string, limit int) ([]string, error)
}

// MessageStore appends chat messages.
type MessageStore interface {
	CreateMessage(ctx context.Context, msg ChatMessage) (ChatMessage, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Embedder turns text into a vector, or nil when every provider fails.
// The second return value names the model that produced the vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, string)
}

// Completer is the opaque chat completion provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}

// CompletionRequest is the provider-agnostic completion call.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Tools       []ToolSpec
}

// ToolSpec declares a callable tool to the completion provider.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is one tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// CompletionResponse carries either text content or tool calls.
type CompletionResponse struct {
	Content   string
	ToolCalls []ToolCall
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Publisher pushes crawl completion notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, completion CrawlCompletion) (string, error)
}

// Hasher computes digests for content identity and archive paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
