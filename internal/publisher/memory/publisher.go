// Package memory records crawl completions for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Publisher stores crawl completion notifications for inspection.
type Publisher struct {
	mu          sync.RWMutex
	completions []PublishedCompletion
}

// PublishedCompletion captures one publish call.
type PublishedCompletion struct {
	Topic      string
	Completion pipeline.CrawlCompletion
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the completion and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, completion pipeline.CrawlCompletion) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completions = append(p.completions, PublishedCompletion{Topic: topic, Completion: completion})
	return fmt.Sprintf("memory-%d", len(p.completions)), nil
}

// Completions returns the recorded publishes.
func (p *Publisher) Completions() []PublishedCompletion {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedCompletion, len(p.completions))
	copy(out, p.completions)
	return out
}
