package chat

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestResolveModelShortIDs(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	require.Equal(t, "x-ai/grok-4-fast-reasoning", ResolveModel("grok-4-fast-reasoning", logger))
	require.Equal(t, "claude-3.7-sonnet-20250219", ResolveModel("claude-sonnet", logger))
	require.Equal(t, "deepseek/deepseek-r1", ResolveModel("deepseek-r1", logger))
}

func TestResolveModelPassesThroughQualifiedIDs(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	require.Equal(t, "x-ai/grok-4-fast-reasoning", ResolveModel("x-ai/grok-4-fast-reasoning", logger))
	require.Equal(t, "claude-3.7-sonnet-20250219", ResolveModel("claude-3.7-sonnet-20250219", logger))
	require.Equal(t, "some-vendor/brand-new-model", ResolveModel("some-vendor/brand-new-model", logger))
}

func TestResolveModelUnknownFallsBackToDefault(t *testing.T) {
	t.Parallel()

	logger := zap.NewNop()
	require.Equal(t, DefaultModelID, ResolveModel("not-a-model", logger))
	require.Equal(t, DefaultModelID, ResolveModel("", logger))
}
