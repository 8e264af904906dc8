// Package chat answers user questions about an event, grounded on the
// chunks the ingestion pipeline stored for it.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackdesk/eventpilot/internal/metrics"
	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// Completion parameters for grounded answers.
const (
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 900
)

// Retriever finds the stored chunks most relevant to a query. It returns
// nil when the event has no usable content.
type Retriever interface {
	FindRelevantContent(ctx context.Context, eventID, query string, limit int) []string
}

// Request is one user turn.
type Request struct {
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	ModelID   string `json:"model_id,omitempty"`
}

// Response is the persisted assistant turn.
type Response struct {
	Content   string    `json:"content"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Config controls completion parameters.
type Config struct {
	Temperature float64
	MaxTokens   int
}

// Orchestrator runs the retrieve-then-generate loop for one chat turn and
// appends the assistant message. Every path produces an answer: missing
// content and provider failures degrade to explanatory text, never to a
// blank response.
type Orchestrator struct {
	events    pipeline.EventStore
	messages  pipeline.MessageStore
	retriever Retriever
	completer pipeline.Completer
	clock     pipeline.Clock
	cfg       Config
	logger    *zap.Logger
}

// New constructs an Orchestrator.
func New(
	events pipeline.EventStore,
	messages pipeline.MessageStore,
	retriever Retriever,
	completer pipeline.Completer,
	clock pipeline.Clock,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	metrics.Init()
	return &Orchestrator{
		events:    events,
		messages:  messages,
		retriever: retriever,
		completer: completer,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
	}
}

// Respond answers one user message. The event's status decides the wording
// when no content is available; retrieved chunks ground the provider call
// otherwise. The assistant message is persisted before returning.
func (o *Orchestrator) Respond(ctx context.Context, req Request) (Response, error) {
	if req.EventID == "" || req.SessionID == "" || req.Message == "" {
		return Response{}, fmt.Errorf("event_id, session_id and message are required")
	}

	event, err := o.events.GetEvent(ctx, req.EventID)
	if err != nil {
		return Response{}, fmt.Errorf("load event %s: %w", req.EventID, err)
	}

	requested := req.ModelID
	if requested == "" {
		requested = event.ModelID
	}
	model := ResolveModel(requested, o.logger)

	relevant := o.retriever.FindRelevantContent(ctx, req.EventID, req.Message, 0)

	var content string
	if len(relevant) == 0 {
		content = statusMessage(event.Status)
		metrics.ObserveChat(model, "status")
	} else {
		var kind string
		content, kind = o.generate(ctx, model, relevant, req.Message)
		metrics.ObserveChat(model, kind)
	}

	msg, err := o.messages.CreateMessage(ctx, pipeline.ChatMessage{
		SessionID: req.SessionID,
		Role:      "assistant",
		Content:   content,
		Metadata: pipeline.MessageMeta{
			ContextChunks: len(relevant),
			Model:         model,
		},
		CreatedAt: o.clock.Now(),
	})
	if err != nil {
		return Response{}, fmt.Errorf("save assistant message: %w", err)
	}

	o.logger.Info("chat turn answered",
		zap.String("event_id", req.EventID),
		zap.String("session_id", req.SessionID),
		zap.String("model", model),
		zap.Int("context_chunks", len(relevant)),
	)

	return Response{
		Content:   msg.Content,
		MessageID: msg.ID,
		CreatedAt: msg.CreatedAt,
	}, nil
}

// generate runs the grounded completion, dispatching tool calls when the
// model requests them. The second return value labels the answer path for
// metrics. Provider errors are demoted to an explanatory answer.
func (o *Orchestrator) generate(ctx context.Context, model string, chunks []string, userMessage string) (string, string) {
	resp, err := o.completer.Complete(ctx, pipeline.CompletionRequest{
		Model:       model,
		System:      systemPrompt(chunks),
		User:        userMessage,
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
		Tools:       toolSpecs(),
	})
	if err != nil {
		o.logger.Error("completion failed", zap.String("model", model), zap.Error(err))
		return recoverableAnswer(err), "error"
	}

	if len(resp.ToolCalls) == 0 {
		return resp.Content, "grounded"
	}

	results := make([]string, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		o.logger.Debug("running tool", zap.String("tool", call.Name))
		results = append(results, runTool(call, chunks))
	}

	final, err := o.completer.Complete(ctx, pipeline.CompletionRequest{
		Model:       DefaultModelID,
		System:      "You are an AI assistant. Based on the tool results provided, give a comprehensive and helpful answer to the user.",
		User:        fmt.Sprintf("Based on these tool results, please provide a complete answer:\n\n%s", strings.Join(results, "\n\n")),
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	})
	if err != nil {
		o.logger.Error("tool synthesis failed", zap.Error(err))
		return recoverableAnswer(err), "error"
	}
	return final.Content, "tools"
}

func systemPrompt(chunks []string) string {
	return fmt.Sprintf(`You are an AI assistant specialized in answering questions about events, hackathons, and competitions.

You have access to the following information about this specific event:

%s

Based on this information, answer the user's question accurately and helpfully. If you can't find specific information in the provided context, say so clearly. Always cite your sources when possible and provide specific details from the event information.

Be conversational but informative. Focus on providing practical and actionable information that would be useful to someone interested in participating in or learning about this event.`, strings.Join(chunks, "\n\n"))
}

func recoverableAnswer(err error) string {
	return fmt.Sprintf("I found some information but encountered an error while processing it: %v", err)
}

// statusMessage is the answer when retrieval produced nothing. The event's
// ingestion status picks the wording so users know what to do next.
func statusMessage(status pipeline.EventStatus) string {
	switch status {
	case pipeline.EventStatusCrawling:
		return `I'm currently crawling and indexing the content for this event. The process is still in progress, so I don't have all the information yet.

You can ask me questions now, and I'll do my best to answer based on what's been indexed so far. Once crawling completes, I'll have access to the full event details.

If you'd like, you can wait a moment and try again, or ask general questions about hackathons in the meantime.`
	case pipeline.EventStatusPending:
		return `The crawling process hasn't started yet for this event. This usually happens automatically, but if it's taking too long, you may want to check the event URL or recreate the assistant.

You can still ask me general questions about participating in hackathons, but I won't have specific details about this event until crawling completes.`
	case pipeline.EventStatusFailed:
		return `Unfortunately, the crawling process failed for this event. This could be due to:
- The URL being inaccessible or behind a login
- Network issues during crawling
- The page structure not being compatible with our crawler

You can try recreating the assistant with the event URL, or ask me general questions about hackathons.`
	default:
		return `I couldn't find any indexed content for this event yet. This usually means the crawl didn't extract readable text from the page or is still processing.

Here are a few things you can try:
- Recheck that the event URL is publicly accessible and not behind a login.
- Recreate the assistant and make sure crawling completes.
- If the event page is mostly images or scripts, I may not be able to read detailed rules.

You can still ask me general questions about participating in hackathons, but I won't have specific details about this event until its content is available.`
	}
}
