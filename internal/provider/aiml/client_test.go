package aiml

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

func TestEmbedSendsAuthorizedRequest(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/embeddings", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL, APIKey: "secret"})
	vector, err := client.Embed(context.Background(), "text-embedding-3-large", "hello")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "text-embedding-3-large", gotBody["model"])
	require.Equal(t, "hello", gotBody["input"])
}

func TestEmbedRejectsEmptyVector(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Embed(context.Background(), "m", "text")
	require.Error(t, err)
}

func TestEmbedSurfacesAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Embed(context.Background(), "m", "text")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestCompleteDeclaresToolsWithAutoChoice(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "answer"}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), pipeline.CompletionRequest{
		Model:       "gpt-4o",
		System:      "sys",
		User:        "question",
		Temperature: 0.5,
		MaxTokens:   900,
		Tools: []pipeline.ToolSpec{
			{Name: "search_content", Description: "search", Parameters: map[string]any{"type": "object"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "answer", resp.Content)
	require.Empty(t, resp.ToolCalls)

	require.Equal(t, "auto", gotBody["tool_choice"])
	tools := gotBody["tools"].([]any)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	require.Equal(t, "search_content", fn["name"])
}

func TestCompleteMapsToolCalls(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"content": "",
					"tool_calls": []map[string]any{
						{"id": "call-1", "function": map[string]any{
							"name":      "get_event_info",
							"arguments": `{"info_type":"prizes"}`,
						}},
					},
				}},
			},
		})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	resp, err := client.Complete(context.Background(), pipeline.CompletionRequest{Model: "m", User: "q"})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	require.Equal(t, "call-1", resp.ToolCalls[0].ID)
	require.Equal(t, "get_event_info", resp.ToolCalls[0].Name)
	require.JSONEq(t, `{"info_type":"prizes"}`, resp.ToolCalls[0].Arguments)
}

func TestCompleteRejectsEmptyChoices(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := NewClient(Config{BaseURL: srv.URL})
	_, err := client.Complete(context.Background(), pipeline.CompletionRequest{Model: "m", User: "q"})
	require.Error(t, err)
}
