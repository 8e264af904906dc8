// Package embedding provides vector generation with provider fallback.
// A failed embedding is a normal outcome here, not an error: callers get a
// nil vector and carry on with the text-only path.
package embedding

import (
	"context"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxInputChars bounds input to a provider-safe length before any call.
const MaxInputChars = 8000

// Provider is one embedding backend in the fallback chain.
type Provider interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

// step pairs a provider with the model it should be asked for. The model
// name doubles as the vector-space tag stored alongside each vector, so
// similarity search never compares vectors from different spaces.
type step struct {
	name     string
	model    string
	provider Provider
}

// Embedder walks an ordered provider chain until one yields a vector.
type Embedder struct {
	chain  []step
	logger *zap.Logger
}

// New builds an Embedder with an empty chain.
func New(logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Embedder{logger: logger}
}

// Add appends a provider to the chain. Earlier providers are preferred.
func (e *Embedder) Add(name, model string, provider Provider) *Embedder {
	if provider != nil && model != "" {
		e.chain = append(e.chain, step{name: name, model: model, provider: provider})
	}
	return e
}

// Embed truncates the input and tries each provider in order. It returns
// the vector and the model tag that produced it, or (nil, "") when every
// provider fails. Failures are logged, never propagated.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, string) {
	if len(text) > MaxInputChars {
		cut := MaxInputChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	for _, s := range e.chain {
		vector, err := s.provider.Embed(ctx, s.model, text)
		if err != nil {
			e.logger.Warn("embedding provider failed",
				zap.String("provider", s.name),
				zap.String("model", s.model),
				zap.Error(err),
			)
			continue
		}
		return vector, s.model
	}
	return nil, ""
}
