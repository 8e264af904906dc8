// Package memory provides in-memory store implementations for development
// and tests. Similarity search runs a plain cosine scan over stored vectors.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Store holds events, pages, chunks and chat messages behind one mutex.
type Store struct {
	mu       sync.RWMutex
	events   map[string]pipeline.Event
	pages    map[string]pipeline.CrawledPage
	chunks   map[string][]pipeline.ContentChunk
	messages map[string][]pipeline.ChatMessage

	ids pipeline.IDGenerator
}

// NewStore constructs a Store. The id generator mints message ids when the
// caller leaves them blank.
func NewStore(ids pipeline.IDGenerator) *Store {
	return &Store{
		events:   make(map[string]pipeline.Event),
		pages:    make(map[string]pipeline.CrawledPage),
		chunks:   make(map[string][]pipeline.ContentChunk),
		messages: make(map[string][]pipeline.ChatMessage),
		ids:      ids,
	}
}

// PutEvent seeds or replaces an event. Development wiring and tests use it;
// the pipeline itself only updates status and summary.
func (s *Store) PutEvent(event pipeline.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ID] = event
}

// GetEvent returns the event or pipeline.ErrEventNotFound.
func (s *Store) GetEvent(_ context.Context, eventID string) (pipeline.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	event, ok := s.events[eventID]
	if !ok {
		return pipeline.Event{}, pipeline.ErrEventNotFound
	}
	return event, nil
}

// UpdateEventStatus sets the event status and, when non-empty, the model id.
func (s *Store) UpdateEventStatus(_ context.Context, eventID string, status pipeline.EventStatus, modelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return pipeline.ErrEventNotFound
	}
	event.Status = status
	if modelID != "" {
		event.ModelID = modelID
	}
	s.events[eventID] = event
	return nil
}

// UpdateEventSummary records the terminal status and run counters.
func (s *Store) UpdateEventSummary(_ context.Context, eventID string, status pipeline.EventStatus, summary pipeline.CrawlSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.events[eventID]
	if !ok {
		return pipeline.ErrEventNotFound
	}
	event.Status = status
	event.Summary = summary
	s.events[eventID] = event
	return nil
}

// CreatePage stores a crawled page and returns its id. A second page for
// the same event and URL is rejected with pipeline.ErrPageExists.
func (s *Store) CreatePage(_ context.Context, page pipeline.CrawledPage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.pages {
		if existing.EventID == page.EventID && existing.URL == page.URL {
			return "", pipeline.ErrPageExists
		}
	}
	s.pages[page.ID] = page
	return page.ID, nil
}

// Pages returns every stored page for an event, unordered.
func (s *Store) Pages(eventID string) []pipeline.CrawledPage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []pipeline.CrawledPage
	for _, page := range s.pages {
		if page.EventID == eventID {
			out = append(out, page)
		}
	}
	return out
}

// CreateChunk appends a chunk. The caller assigns ids and timestamps.
func (s *Store) CreateChunk(_ context.Context, chunk pipeline.ContentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks[chunk.EventID] = append(s.chunks[chunk.EventID], chunk)
	return nil
}

// CountChunks returns the number of chunks stored for an event.
func (s *Store) CountChunks(_ context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks[eventID]), nil
}

// CountEmbeddedChunks returns the number of chunks carrying a vector.
func (s *Store) CountEmbeddedChunks(_ context.Context, eventID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, chunk := range s.chunks[eventID] {
		if chunk.HasEmbedding() {
			n++
		}
	}
	return n, nil
}

// SearchChunks scans the event's chunks embedded with the same model and
// returns texts above the similarity threshold, best first.
func (s *Store) SearchChunks(_ context.Context, eventID string, query []float32, model string, threshold float64, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		text       string
		similarity float64
	}
	var matches []scored
	for _, chunk := range s.chunks[eventID] {
		if !chunk.HasEmbedding() || chunk.EmbeddingModel != model {
			continue
		}
		sim := cosineSimilarity(query, chunk.Embedding)
		if sim >= threshold {
			matches = append(matches, scored{text: chunk.Text, similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].similarity > matches[j].similarity })

	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.text)
	}
	return out, nil
}

// RecentChunks returns chunk texts newest first, with or without vectors.
func (s *Store) RecentChunks(_ context.Context, eventID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := append([]pipeline.ContentChunk(nil), s.chunks[eventID]...)
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].CreatedAt.After(chunks[j].CreatedAt) })

	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, chunk.Text)
	}
	return out, nil
}

// AnyChunks returns up to limit chunk texts in insertion order.
func (s *Store) AnyChunks(_ context.Context, eventID string, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks := s.chunks[eventID]
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out = append(out, chunk.Text)
	}
	return out, nil
}

// CreateMessage appends a chat message, minting an id when missing.
func (s *Store) CreateMessage(_ context.Context, msg pipeline.ChatMessage) (pipeline.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.ID == "" && s.ids != nil {
		id, err := s.ids.NewID()
		if err != nil {
			return pipeline.ChatMessage{}, err
		}
		msg.ID = id
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return msg, nil
}

// Messages returns the stored messages for a session in insertion order.
func (s *Store) Messages(sessionID string) []pipeline.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]pipeline.ChatMessage(nil), s.messages[sessionID]...)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
