package crawler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hackdesk/eventpilot/internal/chunker"
	"github.com/hackdesk/eventpilot/internal/hash/sha256"
	"github.com/hackdesk/eventpilot/internal/id/uuid"
	"github.com/hackdesk/eventpilot/internal/pipeline"
	memorypublisher "github.com/hackdesk/eventpilot/internal/publisher/memory"
	memorystorage "github.com/hackdesk/eventpilot/internal/storage/memory"
)

type fakeFetcher struct {
	pages map[string]string
	calls map[string]int
}

func newFakeFetcher(pages map[string]string) *fakeFetcher {
	return &fakeFetcher{pages: pages, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (pipeline.FetchResponse, error) {
	f.calls[url]++
	body, ok := f.pages[url]
	if !ok {
		return pipeline.FetchResponse{}, fmt.Errorf("status 404 for %s", url)
	}
	return pipeline.FetchResponse{URL: url, StatusCode: 200, Body: []byte(body)}, nil
}

type fakeEmbedder struct {
	vector []float32
	model  string
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, string) {
	return f.vector, f.model
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func intp(n int) *int { return &n }

const paragraph = "This event gathers builders from everywhere for a weekend of rapid prototyping and late night demos, with mentors on site the entire time."

func pageHTML(links ...string) string {
	html := "<html><body><h1>Test Event</h1><p>" + paragraph + "</p>"
	for _, l := range links {
		html += fmt.Sprintf(`<a href=%q>link</a>`, l)
	}
	return html + "</body></html>"
}

func newTestCrawler(t *testing.T, store *memorystorage.Store, fetcher pipeline.Fetcher, embedder pipeline.Embedder, pub pipeline.Publisher, cfg Config) *Crawler {
	t.Helper()
	return New(
		store,
		store,
		store,
		fetcher,
		embedder,
		chunker.New(500, 10),
		memorystorage.NewBlobStore(),
		pub,
		sha256.New(),
		fixedClock{now: time.Unix(1700000000, 0).UTC()},
		uuid.NewGenerator(),
		cfg,
		nil,
	)
}

func seedEvent(store *memorystorage.Store, modelID string) {
	store.PutEvent(pipeline.Event{
		ID:      "ev-1",
		RootURL: "https://example.com/",
		Name:    "Test Event",
		ModelID: modelID,
		Status:  pipeline.EventStatusPending,
	})
}

func TestRunUnknownEvent(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewStore(uuid.NewGenerator())
	c := newTestCrawler(t, store, newFakeFetcher(nil), &fakeEmbedder{}, memorypublisher.New(), Config{CompletionTopic: "crawl-events"})

	_, err := c.Run(context.Background(), "missing", pipeline.CrawlParams{})
	require.ErrorIs(t, err, pipeline.ErrEventNotFound)
}

func TestRunRequiresModel(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "")
	c := newTestCrawler(t, store, newFakeFetcher(nil), &fakeEmbedder{}, memorypublisher.New(), Config{})

	_, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{})
	require.ErrorIs(t, err, ErrNoModel)

	// The event must not have moved out of pending.
	event, getErr := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, getErr)
	require.Equal(t, pipeline.EventStatusPending, event.Status)
}

func TestRunCompletesAndPersistsModel(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "")
	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":      pageHTML("/rules", "https://twitter.com/event"),
		"https://example.com/rules": pageHTML(),
	})
	pub := memorypublisher.New()
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{0.1, 0.2}, model: "test-embed"}, pub, Config{CompletionTopic: "crawl-events"})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{
		MaxDepth: intp(1),
		MaxPages: intp(5),
		ModelID:  "grok-4-fast-reasoning",
	})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.URLsProcessed)
	require.Greater(t, result.ChunksCreated, 0)
	require.Greater(t, result.WordsProcessed, 0)

	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.EventStatusCompleted, event.Status)
	require.Equal(t, "grok-4-fast-reasoning", event.ModelID)
	require.Equal(t, result.ChunksCreated, event.Summary.ChunksCreated)
	require.Equal(t, result.ChunksCreated, event.Summary.EmbeddingCount)
	require.NotNil(t, event.Summary.StartedAt)
	require.NotNil(t, event.Summary.FinishedAt)

	// External link is not followed by default.
	require.Zero(t, fetcher.calls["https://twitter.com/event"])

	completions := pub.Completions()
	require.Len(t, completions, 1)
	require.Equal(t, "crawl-events", completions[0].Topic)
	require.Equal(t, pipeline.EventStatusCompleted, completions[0].Completion.Status)
	require.Equal(t, result.ChunksCreated, completions[0].Completion.ChunksCreated)
}

func TestRunFailsWhenNoChunks(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	// Body too short to survive the chunker's minimum size.
	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/": "<html><body>hi</body></html>",
	})
	pub := memorypublisher.New()
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{}, pub, Config{CompletionTopic: "crawl-events"})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(3)})
	require.NoError(t, err)
	require.False(t, result.Success)

	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, pipeline.EventStatusFailed, event.Status)
	require.Contains(t, event.Summary.LastError, "no content chunks")

	completions := pub.Completions()
	require.Len(t, completions, 1)
	require.Equal(t, pipeline.EventStatusFailed, completions[0].Completion.Status)
	require.NotEmpty(t, completions[0].Completion.Error)
}

func TestRunHonorsMaxPages(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://example.com/": pageHTML("/p1", "/p2", "/p3", "/p4", "/p5"),
	}
	for i := 1; i <= 5; i++ {
		pages[fmt.Sprintf("https://example.com/p%d", i)] = pageHTML()
	}

	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, newFakeFetcher(pages), &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(2), MaxPages: intp(3)})
	require.NoError(t, err)
	require.Equal(t, 3, result.URLsProcessed)
}

func TestRunHonorsMaxDepth(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":     pageHTML("/lvl1"),
		"https://example.com/lvl1": pageHTML("/lvl2"),
		"https://example.com/lvl2": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{})

	_, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(10)})
	require.NoError(t, err)
	require.Equal(t, 1, fetcher.calls["https://example.com/"])
	require.Equal(t, 1, fetcher.calls["https://example.com/lvl1"])
	require.Zero(t, fetcher.calls["https://example.com/lvl2"])
}

func TestRunExplicitDepthZeroStaysOnRoot(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":      pageHTML("/child"),
		"https://example.com/child": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	// The config default would follow links; an explicit 0 must win.
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{MaxDepthDefault: 2})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(0), MaxPages: intp(10)})
	require.NoError(t, err)
	require.Equal(t, 1, result.URLsProcessed)
	require.Equal(t, 1, fetcher.calls["https://example.com/"])
	require.Zero(t, fetcher.calls["https://example.com/child"])
}

func TestRunAbsentBoundsUseDefaults(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":      pageHTML("/child"),
		"https://example.com/child": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{MaxDepthDefault: 1, MaxPagesDefault: 10})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{})
	require.NoError(t, err)
	require.Equal(t, 2, result.URLsProcessed)
}

func TestRunVisitsEquivalentURLsOnce(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":     pageHTML("/page", "/page#details", "https://EXAMPLE.com/page"),
		"https://example.com/page": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(10)})
	require.NoError(t, err)
	require.Equal(t, 2, result.URLsProcessed)
	require.Equal(t, 1, fetcher.calls["https://example.com/page"])
}

func TestRunKeepsChunksWhenEmbeddingFails(t *testing.T) {
	t.Parallel()

	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/": pageHTML(),
	})
	// Embedder with no providers: every chunk degrades to text-only.
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{}, memorypublisher.New(), Config{})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(1)})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Greater(t, result.ChunksCreated, 0)

	total, err := store.CountChunks(context.Background(), "ev-1")
	require.NoError(t, err)
	embedded, err := store.CountEmbeddedChunks(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, result.ChunksCreated, total)
	require.Zero(t, embedded)

	event, err := store.GetEvent(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Zero(t, event.Summary.EmbeddingCount)
}

func TestRunFetchFailureSkipsPage(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":   pageHTML("/ok", "/missing"),
		"https://example.com/ok": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{})

	result, err := c.Run(context.Background(), "ev-1", pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(10)})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 2, result.URLsProcessed)
	require.Equal(t, 1, fetcher.calls["https://example.com/missing"])
}

func TestRerunDoesNotDuplicateChunks(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher(map[string]string{
		"https://example.com/":      pageHTML("/rules"),
		"https://example.com/rules": pageHTML(),
	})
	store := memorystorage.NewStore(uuid.NewGenerator())
	seedEvent(store, "gpt-4o")
	c := newTestCrawler(t, store, fetcher, &fakeEmbedder{vector: []float32{1}, model: "m"}, memorypublisher.New(), Config{})

	params := pipeline.CrawlParams{MaxDepth: intp(1), MaxPages: intp(10)}
	first, err := c.Run(context.Background(), "ev-1", params)
	require.NoError(t, err)
	require.True(t, first.Success)

	second, err := c.Run(context.Background(), "ev-1", params)
	require.NoError(t, err)
	// The earlier run's chunks keep the event completed even though this
	// run ingested nothing new.
	require.True(t, second.Success)
	require.Zero(t, second.ChunksCreated)

	total, err := store.CountChunks(context.Background(), "ev-1")
	require.NoError(t, err)
	require.Equal(t, first.ChunksCreated, total)
	require.Len(t, store.Pages("ev-1"), 2)
}
