// Package api exposes the HTTP interface for the event ingestion and chat
// service. Routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/events/{event_id}/crawl to ingest an event page.
//   - POST /v1/chat to answer a question about an event.
//   - POST /v1/preview for a links-only look at a URL before ingestion.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackdesk/eventpilot/internal/chat"
	"github.com/hackdesk/eventpilot/internal/crawler"
	"github.com/hackdesk/eventpilot/internal/extract"
	"github.com/hackdesk/eventpilot/internal/metrics"
	"github.com/hackdesk/eventpilot/internal/pipeline"
)

const previewLinkCap = 20

// CrawlRunner triggers ingestion for one event.
type CrawlRunner interface {
	Run(ctx context.Context, eventID string, params pipeline.CrawlParams) (pipeline.CrawlResult, error)
}

// Responder answers one chat turn.
type Responder interface {
	Respond(ctx context.Context, req chat.Request) (chat.Response, error)
}

// Config controls server middleware behavior.
type Config struct {
	Timeout    time.Duration
	AuthAPIKey string
}

// Server wires HTTP handlers to the pipeline components.
type Server struct {
	router  chi.Router
	crawls  CrawlRunner
	chats   Responder
	fetcher pipeline.Fetcher
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(crawls CrawlRunner, chats Responder, fetcher pipeline.Fetcher, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	metrics.Init()
	s := &Server{
		crawls:  crawls,
		chats:   chats,
		fetcher: fetcher,
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(timeoutMiddleware(cfg.Timeout))
	if cfg.AuthAPIKey != "" {
		r.Use(apiKeyMiddleware(cfg.AuthAPIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/events/{event_id}/crawl", s.crawlEvent)
		r.Post("/chat", s.chatTurn)
		r.Post("/preview", s.previewURL)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	MaxDepth        *int   `json:"max_depth"`
	MaxPages        *int   `json:"max_pages"`
	IncludeExternal *bool  `json:"include_external"`
	ModelID         string `json:"model_id"`
}

// crawlEvent handles POST /v1/events/{event_id}/crawl. The crawl runs
// synchronously and the run counters come back in the response body.
func (s *Server) crawlEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "event_id")

	var req crawlRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}

	params := pipeline.CrawlParams{
		MaxDepth:        req.MaxDepth,
		MaxPages:        req.MaxPages,
		IncludeExternal: valueOrDefault(req.IncludeExternal, false),
		ModelID:         req.ModelID,
	}

	result, err := s.crawls.Run(r.Context(), eventID, params)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrEventNotFound):
			writeError(w, http.StatusNotFound, "event not found")
		case errors.Is(err, crawler.ErrNoModel):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("crawl failed", zap.String("event_id", eventID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "crawl failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// chatTurn handles POST /v1/chat.
func (s *Server) chatTurn(w http.ResponseWriter, r *http.Request) {
	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.EventID == "" || req.SessionID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "event_id, session_id and message are required")
		return
	}

	resp, err := s.chats.Respond(r.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEventNotFound) {
			writeError(w, http.StatusNotFound, "event not found")
			return
		}
		s.logger.Error("chat failed", zap.String("event_id", req.EventID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "chat failed")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type previewRequest struct {
	URL string `json:"url"`
}

type previewLinks struct {
	Internal []string `json:"internal"`
	External []string `json:"external"`
}

type previewResponse struct {
	URL       string       `json:"url"`
	Title     string       `json:"title"`
	LinkCount int          `json:"linkCount"`
	Internal  int          `json:"internal"`
	External  int          `json:"external"`
	Links     previewLinks `json:"links"`
	Error     string       `json:"error,omitempty"`
}

// previewURL handles POST /v1/preview. Fetch failures degrade to a payload
// carrying the error so callers can render something either way.
func (s *Server) previewURL(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	resp, err := s.fetcher.Fetch(r.Context(), req.URL)
	if err != nil {
		writeJSON(w, http.StatusOK, previewResponse{
			URL:   req.URL,
			Title: extract.HostnameOf(req.URL),
			Links: previewLinks{Internal: []string{}, External: []string{}},
			Error: err.Error(),
		})
		return
	}

	html := string(resp.Body)
	title := extract.Title(html)
	if title == "" {
		title = extract.HostnameOf(req.URL)
	}
	links := extract.PageLinks(html, req.URL)

	writeJSON(w, http.StatusOK, previewResponse{
		URL:       req.URL,
		Title:     title,
		LinkCount: len(links.Internal) + len(links.External),
		Internal:  len(links.Internal),
		External:  len(links.External),
		Links: previewLinks{
			Internal: capLinks(links.Internal, previewLinkCap),
			External: capLinks(links.External, previewLinkCap),
		},
	})
}

func capLinks(links []string, n int) []string {
	if links == nil {
		return []string{}
	}
	if len(links) > n {
		links = links[:n]
	}
	return links
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			duration := time.Since(start)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", duration.Milliseconds()),
			)
			metrics.ObserveHTTPRequest(r.Method, routePattern(r), ww.status, duration)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("error", rec))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
