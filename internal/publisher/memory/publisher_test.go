package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

func TestPublishRecordsCompletions(t *testing.T) {
	t.Parallel()

	pub := New()

	id, err := pub.Publish(context.Background(), "crawl-events", pipeline.CrawlCompletion{
		EventID: "ev-1",
		Status:  pipeline.EventStatusCompleted,
	})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id)

	id, err = pub.Publish(context.Background(), "crawl-events", pipeline.CrawlCompletion{
		EventID: "ev-2",
		Status:  pipeline.EventStatusFailed,
		Error:   "no content chunks were created during crawl",
	})
	require.NoError(t, err)
	require.Equal(t, "memory-2", id)

	completions := pub.Completions()
	require.Len(t, completions, 2)
	require.Equal(t, "crawl-events", completions[0].Topic)
	require.Equal(t, "ev-1", completions[0].Completion.EventID)
	require.Equal(t, pipeline.EventStatusFailed, completions[1].Completion.Status)
}
