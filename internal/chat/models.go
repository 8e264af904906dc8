package chat

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultModelID is used when a short model id has no table entry.
const DefaultModelID = "x-ai/grok-4-fast-reasoning"

// shortModelIDs maps UI-facing short ids to fully qualified provider ids.
var shortModelIDs = map[string]string{
	"grok-4-fast-reasoning": "x-ai/grok-4-fast-reasoning",
	"gpt-4o":                "gpt-4o",
	"gpt-4o-mini":           "gpt-4o-mini",
	"claude-sonnet":         "claude-3.7-sonnet-20250219",
	"deepseek-r1":           "deepseek/deepseek-r1",
	"llama-405b":            "meta-llama/Meta-Llama-3.1-405B-Instruct-Turbo",
}

// ResolveModel maps a requested model id to the id sent to the completion
// provider. Ids that already look fully qualified (a provider namespace
// separator or a dated release suffix) pass through untouched; known short
// ids resolve via the table; anything else falls back to DefaultModelID
// with a warning. Chat proceeds either way.
func ResolveModel(requested string, logger *zap.Logger) string {
	if requested == "" {
		logger.Warn("no model id requested, using default", zap.String("default", DefaultModelID))
		return DefaultModelID
	}
	if strings.Contains(requested, "/") || strings.Contains(requested, ".") {
		return requested
	}
	if full, ok := shortModelIDs[requested]; ok {
		return full
	}
	logger.Warn("unknown model id, using default",
		zap.String("requested", requested),
		zap.String("default", DefaultModelID),
	)
	return DefaultModelID
}
