package memory

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackdesk/eventpilot/internal/id/uuid"
	"github.com/hackdesk/eventpilot/internal/pipeline"
)

func seedChunks(t *testing.T, store *Store) {
	t.Helper()
	base := time.Unix(1700000000, 0).UTC()
	chunks := []pipeline.ContentChunk{
		{ID: "c1", EventID: "ev-1", Text: "registration closes June 1", Embedding: []float32{1, 0}, EmbeddingModel: "model-a", CreatedAt: base},
		{ID: "c2", EventID: "ev-1", Text: "prizes total ten thousand", Embedding: []float32{0.9, 0.1}, EmbeddingModel: "model-a", CreatedAt: base.Add(time.Minute)},
		{ID: "c3", EventID: "ev-1", Text: "embedded with another model", Embedding: []float32{1, 0}, EmbeddingModel: "model-b", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "c4", EventID: "ev-1", Text: "never embedded", CreatedAt: base.Add(3 * time.Minute)},
		{ID: "c5", EventID: "ev-2", Text: "different event", Embedding: []float32{1, 0}, EmbeddingModel: "model-a", CreatedAt: base},
	}
	for _, chunk := range chunks {
		require.NoError(t, store.CreateChunk(context.Background(), chunk))
	}
}

func TestGetEvent(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	store.PutEvent(pipeline.Event{ID: "ev-1", Name: "Spring Hack", Status: pipeline.EventStatusPending})

	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, "Spring Hack", event.Name)

	_, err = store.GetEvent(context.Background(), "missing")
	require.ErrorIs(t, err, pipeline.ErrEventNotFound)
}

func TestUpdateEventStatus(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	store.PutEvent(pipeline.Event{ID: "ev-1", ModelID: "gpt-4o", Status: pipeline.EventStatusPending})

	require.NoError(t, store.UpdateEventStatus(context.Background(), "ev-1", pipeline.EventStatusCrawling, ""))
	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.EventStatusCrawling, event.Status)
	// Empty model id leaves the stored one alone.
	require.Equal(t, "gpt-4o", event.ModelID)

	require.NoError(t, store.UpdateEventStatus(context.Background(), "ev-1", pipeline.EventStatusCrawling, "deepseek-r1"))
	event, err = store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, "deepseek-r1", event.ModelID)

	err = store.UpdateEventStatus(context.Background(), "missing", pipeline.EventStatusCrawling, "")
	require.ErrorIs(t, err, pipeline.ErrEventNotFound)
}

func TestUpdateEventSummary(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	store.PutEvent(pipeline.Event{ID: "ev-1", Status: pipeline.EventStatusCrawling})

	started := time.Unix(1700000000, 0).UTC()
	summary := pipeline.CrawlSummary{ChunksCreated: 7, URLsProcessed: 3, StartedAt: &started}
	require.NoError(t, store.UpdateEventSummary(context.Background(), "ev-1", pipeline.EventStatusCompleted, summary))

	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.EventStatusCompleted, event.Status)
	require.Equal(t, 7, event.Summary.ChunksCreated)
}

func TestCreatePageRejectsDuplicateURL(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())

	_, err := store.CreatePage(context.Background(), pipeline.CrawledPage{
		ID:      "page-1",
		EventID: "ev-1",
		URL:     "https://example.com/rules",
	})
	require.NoError(t, err)

	_, err = store.CreatePage(context.Background(), pipeline.CrawledPage{
		ID:      "page-2",
		EventID: "ev-1",
		URL:     "https://example.com/rules",
	})
	require.ErrorIs(t, err, pipeline.ErrPageExists)

	// The same URL under another event is a different page.
	_, err = store.CreatePage(context.Background(), pipeline.CrawledPage{
		ID:      "page-3",
		EventID: "ev-2",
		URL:     "https://example.com/rules",
	})
	require.NoError(t, err)
}

func TestChunkCounts(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	seedChunks(t, store)

	total, err := store.CountChunks(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, 4, total)

	embedded, err := store.CountEmbeddedChunks(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, 3, embedded)
}

func TestSearchChunksFiltersByModel(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	seedChunks(t, store)

	texts, err := store.SearchChunks(context.Background(), "ev-1", []float32{1, 0}, "model-a", 0.5, 10)
	require.NoError(t, err)
	// Best match first; model-b and unembedded chunks are excluded.
	require.Equal(t, []string{"registration closes June 1", "prizes total ten thousand"}, texts)
}

func TestSearchChunksThresholdAndLimit(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	seedChunks(t, store)

	texts, err := store.SearchChunks(context.Background(), "ev-1", []float32{1, 0}, "model-a", 0.999, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"registration closes June 1"}, texts)

	texts, err = store.SearchChunks(context.Background(), "ev-1", []float32{1, 0}, "model-a", 0.5, 1)
	require.NoError(t, err)
	require.Len(t, texts, 1)
}

func TestRecentChunksNewestFirst(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	seedChunks(t, store)

	texts, err := store.RecentChunks(context.Background(), "ev-1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"never embedded", "embedded with another model"}, texts)
}

func TestAnyChunksInsertionOrder(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())
	seedChunks(t, store)

	texts, err := store.AnyChunks(context.Background(), "ev-1", 2)
	require.NoError(t, err)
	require.Equal(t, []string{"registration closes June 1", "prizes total ten thousand"}, texts)
}

func TestCreateMessageMintsID(t *testing.T) {
	t.Parallel()

	store := NewStore(uuid.NewGenerator())

	saved, err := store.CreateMessage(context.Background(), pipeline.ChatMessage{
		SessionID: "sess-1",
		Role:      "assistant",
		Content:   "hello",
	})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	withID, err := store.CreateMessage(context.Background(), pipeline.ChatMessage{
		ID:        "msg-fixed",
		SessionID: "sess-1",
		Role:      "assistant",
		Content:   "again",
	})
	require.NoError(t, err)
	require.Equal(t, "msg-fixed", withID.ID)

	msgs := store.Messages("sess-1")
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[0].Content)
}

func TestBlobStore(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	uri, err := blobs.PutObject(context.Background(), "pages/ev-1/abc.html", "text/html", strings.NewReader("<html></html>"))
	require.NoError(t, err)
	require.Equal(t, "memory://pages/ev-1/abc.html", uri)

	data, ok := blobs.Object("pages/ev-1/abc.html")
	require.True(t, ok)
	require.Equal(t, []byte("<html></html>"), data)
}
