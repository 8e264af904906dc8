package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

func newEngine(chunks pipeline.ChunkStore, embedder pipeline.Embedder) *Engine {
	return New(chunks, embedder, Config{}, nil)
}

type fakeChunks struct {
	total        int
	totalErr     error
	embedded     int
	embeddedErr  error
	searchResult []string
	searchErr    error
	recentResult []string
	recentErr    error
	anyResult    []string

	searchCalls int
	recentCalls int
	anyCalls    int
	gotModel    string
	gotLimit    int
}

func (f *fakeChunks) CreateChunk(context.Context, pipeline.ContentChunk) error { return nil }

func (f *fakeChunks) CountChunks(context.Context, string) (int, error) {
	return f.total, f.totalErr
}

func (f *fakeChunks) CountEmbeddedChunks(context.Context, string) (int, error) {
	return f.embedded, f.embeddedErr
}

func (f *fakeChunks) SearchChunks(_ context.Context, _ string, _ []float32, model string, _ float64, limit int) ([]string, error) {
	f.searchCalls++
	f.gotModel = model
	f.gotLimit = limit
	return f.searchResult, f.searchErr
}

func (f *fakeChunks) RecentChunks(_ context.Context, _ string, _ int) ([]string, error) {
	f.recentCalls++
	return f.recentResult, f.recentErr
}

func (f *fakeChunks) AnyChunks(_ context.Context, _ string, _ int) ([]string, error) {
	f.anyCalls++
	return f.anyResult, nil
}

type fakeEmbedder struct {
	vector []float32
	model  string
}

func (f *fakeEmbedder) Embed(context.Context, string) ([]float32, string) {
	return f.vector, f.model
}

func TestFindRelevantContentEmptyEventShortCircuits(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{total: 0}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{1}, model: "m"})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Nil(t, got)
	require.Zero(t, chunks.searchCalls)
	require.Zero(t, chunks.recentCalls)
}

func TestFindRelevantContentVectorFirst(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{
		total:        3,
		embedded:     3,
		searchResult: []string{"best match", "second match"},
	}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{0.1, 0.2}, model: "text-embedding-3-large"})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Equal(t, []string{"best match", "second match"}, got)
	require.Equal(t, "text-embedding-3-large", chunks.gotModel)
	require.Equal(t, 5, chunks.gotLimit)
	require.Zero(t, chunks.recentCalls)
}

func TestFindRelevantContentFallsBackWhenQueryEmbeddingFails(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{total: 3, recentResult: []string{"recent chunk"}}
	e := newEngine(chunks, &fakeEmbedder{})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Equal(t, []string{"recent chunk"}, got)
	require.Zero(t, chunks.searchCalls)
}

func TestFindRelevantContentFallsBackWhenNoEmbeddedChunks(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{total: 4, embedded: 0, recentResult: []string{"text only"}}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{1}, model: "m"})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Equal(t, []string{"text only"}, got)
	require.Zero(t, chunks.searchCalls)
}

func TestFindRelevantContentFallsThroughToAny(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{
		total:     2,
		embedded:  2,
		searchErr: errors.New("index offline"),
		recentErr: errors.New("query timeout"),
		anyResult: []string{"anything"},
	}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{1}, model: "m"})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Equal(t, []string{"anything"}, got)
	require.Equal(t, 1, chunks.searchCalls)
	require.Equal(t, 1, chunks.recentCalls)
	require.Equal(t, 1, chunks.anyCalls)
}

func TestFindRelevantContentCountErrorStillCascades(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{
		totalErr:     errors.New("count failed"),
		embedded:     1,
		searchResult: []string{"found anyway"},
	}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{1}, model: "m"})

	got := e.FindRelevantContent(context.Background(), "ev", "question", 5)
	require.Equal(t, []string{"found anyway"}, got)
}

func TestFindRelevantContentDefaultLimit(t *testing.T) {
	t.Parallel()

	chunks := &fakeChunks{total: 1, embedded: 1, searchResult: []string{"x"}}
	e := newEngine(chunks, &fakeEmbedder{vector: []float32{1}, model: "m"})

	e.FindRelevantContent(context.Background(), "ev", "question", 0)
	require.Equal(t, DefaultLimit, chunks.gotLimit)
}
