package crawler

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/hackdesk/eventpilot/internal/pipeline"
)

// FetcherConfig controls collector behavior.
type FetcherConfig struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher implements pipeline.Fetcher with a single-shot Colly
// collector per fetch. Colly handles redirects, cookies, and connection
// reuse; the BFS loop owns link discovery, so the collector never follows
// links itself.
type CollyFetcher struct {
	cfg           FetcherConfig
	baseCollector *colly.Collector
}

// NewCollyFetcher builds a CollyFetcher.
func NewCollyFetcher(cfg FetcherConfig) *CollyFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "eventpilot-bot/1.0 (+https://github.com/hackdesk/eventpilot)"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        20,
		IdleConnTimeout:     60 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &CollyFetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single HTTP GET and returns the body plus metadata.
// Non-2xx statuses are returned as errors so the BFS loop can skip the page.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (pipeline.FetchResponse, error) {
	var (
		result   pipeline.FetchResponse
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	collector.UserAgent = f.cfg.UserAgent
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = pipeline.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: %w", url, err)
		if r != nil {
			result.StatusCode = r.StatusCode
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(url); err != nil && fetchErr == nil {
			fetchErr = fmt.Errorf("visit %s: %w", url, err)
		}
		collector.Wait()
	}()

	select {
	case <-ctx.Done():
		return pipeline.FetchResponse{}, ctx.Err()
	case <-done:
	}

	if fetchErr != nil {
		return pipeline.FetchResponse{}, fetchErr
	}
	if result.StatusCode != http.StatusOK {
		return pipeline.FetchResponse{}, fmt.Errorf("fetch %s: status %d", url, result.StatusCode)
	}
	if len(result.Body) == 0 {
		return pipeline.FetchResponse{}, fmt.Errorf("fetch %s: empty body", url)
	}
	return result, nil
}
