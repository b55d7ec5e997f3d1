package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/cache"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/metrics"
)

const (
	// DefaultFeedURL is the Banka Slovenije daily ECB reference rate feed
	DefaultFeedURL = "https://www.bsi.si/_data/tecajnice/dtecbs-l.xml"

	defaultTimeout     = 60 * time.Second
	defaultMaxAttempts = 3
)

// BackoffFunc returns how long to wait before the given retry attempt (1-based)
type BackoffFunc func(attempt int) time.Duration

// QuadraticBackoff waits attempt² seconds
func QuadraticBackoff(attempt int) time.Duration {
	return time.Duration(attempt*attempt) * time.Second
}

// WorstCaseDuration is the longest FetchFeed can take when every attempt
// runs into the per-request timeout
func WorstCaseDuration(maxAttempts int, timeout time.Duration, backoff BackoffFunc) time.Duration {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	if backoff == nil {
		backoff = QuadraticBackoff
	}

	total := time.Duration(maxAttempts) * timeout
	for attempt := 1; attempt < maxAttempts; attempt++ {
		total += backoff(attempt)
	}
	return total
}

// BSIFeedClient downloads the raw rate feed over HTTP
type BSIFeedClient struct {
	url         string
	httpClient  *http.Client
	cache       *cache.FeedCache
	maxAttempts int
	backoff     BackoffFunc
	metrics     *metrics.Metrics
	logger      logger.Logger
}

// Option configures a BSIFeedClient
type Option func(*BSIFeedClient)

// WithCache serves repeated fetches of the same URL from c until the entry expires
func WithCache(c *cache.FeedCache) Option {
	return func(client *BSIFeedClient) {
		client.cache = c
	}
}

// WithMaxAttempts sets how many times a failing request is tried
func WithMaxAttempts(n int) Option {
	return func(client *BSIFeedClient) {
		if n > 0 {
			client.maxAttempts = n
		}
	}
}

// WithBackoff replaces the delay between attempts
func WithBackoff(b BackoffFunc) Option {
	return func(client *BSIFeedClient) {
		if b != nil {
			client.backoff = b
		}
	}
}

// WithMetrics records fetch outcomes on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(client *BSIFeedClient) {
		client.metrics = m
	}
}

// NewBSIFeedClient creates a new feed client. An empty url uses DefaultFeedURL.
func NewBSIFeedClient(url string, httpClient *http.Client, log logger.Logger, opts ...Option) *BSIFeedClient {
	if url == "" {
		url = DefaultFeedURL
	}
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultTimeout,
		}
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	c := &BSIFeedClient{
		url:         url,
		httpClient:  httpClient,
		maxAttempts: defaultMaxAttempts,
		backoff:     QuadraticBackoff,
		logger:      log.WithField("component", "feed_client"),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// URL returns the feed location
func (c *BSIFeedClient) URL() string {
	return c.url
}

// FetchFeed retrieves the complete feed body. Transport failures and 5xx
// responses are retried; any other non-2xx status fails immediately. All
// failures are reported as *entity.FetchError.
func (c *BSIFeedClient) FetchFeed(ctx context.Context) ([]byte, error) {
	if c.cache != nil {
		if body, ok := c.cache.Get(c.url); ok {
			c.logger.Debug("Feed served from cache", map[string]interface{}{"url": c.url})
			c.metrics.ObserveFetch(metrics.OutcomeCache, 0, len(body))
			return body, nil
		}
	}

	start := time.Now()
	body, err := c.fetchWithRetry(ctx)
	if err != nil {
		c.metrics.ObserveFetch(metrics.OutcomeError, time.Since(start), 0)
		return nil, err
	}

	c.metrics.ObserveFetch(metrics.OutcomeOK, time.Since(start), len(body))
	c.logger.Info("Feed downloaded", map[string]interface{}{
		"url":         c.url,
		"bytes":       len(body),
		"duration_ms": time.Since(start).Milliseconds(),
	})

	if c.cache != nil {
		c.cache.Put(c.url, body)
	}

	return body, nil
}

func (c *BSIFeedClient) fetchWithRetry(ctx context.Context) ([]byte, error) {
	var lastErr *entity.FetchError

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		body, fetchErr, retryable := c.fetchOnce(ctx)
		if fetchErr == nil {
			return body, nil
		}
		lastErr = fetchErr

		if !retryable || attempt == c.maxAttempts || ctx.Err() != nil {
			break
		}

		wait := c.backoff(attempt)
		c.logger.Warn("Feed request failed, retrying", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": c.maxAttempts,
			"retry_in":     wait.String(),
			"error":        fetchErr.Error(),
		})

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &entity.FetchError{URL: c.url, Err: ctx.Err()}
		case <-timer.C:
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single GET and reports whether a failure is worth retrying
func (c *BSIFeedClient) fetchOnce(ctx context.Context) ([]byte, *entity.FetchError, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, &entity.FetchError{URL: c.url, Err: fmt.Errorf("failed to create request: %w", err)}, false
	}
	req.Header.Set("Accept", "application/xml, text/xml")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &entity.FetchError{URL: c.url, Err: err}, !errors.Is(err, context.Canceled)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("Error closing response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &entity.FetchError{
			URL:        c.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}, resp.StatusCode >= 500
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &entity.FetchError{URL: c.url, Err: fmt.Errorf("failed to read response body: %w", err)}, true
	}

	return body, nil, false
}
