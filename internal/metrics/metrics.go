// Package metrics exposes Prometheus collectors for the ingestion and chat
// pipeline.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerChunksTotal         prometheus.Counter
	crawlerRunsTotal           *prometheus.CounterVec
	embeddingResultsTotal      *prometheus.CounterVec
	retrievalStrategyTotal     *prometheus.CounterVec
	chatRequestsTotal          *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventpilot_pages_total",
				Help: "Total number of pages processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		crawlerChunksTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "eventpilot_chunks_total",
				Help: "Total number of content chunks persisted.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventpilot_crawl_runs_total",
				Help: "Total number of crawl runs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		embeddingResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventpilot_embedding_results_total",
				Help: "Embedding attempts, labeled by result (embedded or degraded).",
			},
			[]string{"result"},
		)

		retrievalStrategyTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventpilot_retrieval_strategy_total",
				Help: "Retrieval requests, labeled by the strategy that produced the result.",
			},
			[]string{"strategy"},
		)

		chatRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eventpilot_chat_requests_total",
				Help: "Chat requests, labeled by resolved model and answer kind.",
			},
			[]string{"model", "kind"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage increments the page counter for a fetch outcome.
func ObservePage(site string, outcome string) {
	crawlerPagesTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// AddChunks records persisted chunks.
func AddChunks(n int) {
	crawlerChunksTotal.Add(float64(n))
}

// ObserveCrawlRun increments the run counter for the given terminal status.
func ObserveCrawlRun(status string) {
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// ObserveEmbedding records one embedding attempt result.
func ObserveEmbedding(embedded bool) {
	result := "embedded"
	if !embedded {
		result = "degraded"
	}
	embeddingResultsTotal.WithLabelValues(result).Inc()
}

// ObserveRetrieval records which strategy answered a retrieval request.
func ObserveRetrieval(strategy string) {
	retrievalStrategyTotal.WithLabelValues(strategy).Inc()
}

// ObserveChat records a chat request with its resolved model and answer kind
// (grounded, status, or error).
func ObserveChat(model, kind string) {
	chatRequestsTotal.WithLabelValues(model, kind).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
