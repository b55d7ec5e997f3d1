// internal/infrastructure/api/bsi_feed_client_test.go
package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/cache"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<DtecBS>
  <tecajnica datum="2023-01-02">
    <tecaj oznaka="USD" sifra="840">1.0683</tecaj>
  </tecajnica>
</DtecBS>`

func noBackoff(int) time.Duration { return 0 }

func quietLogger() logger.Logger {
	return logger.NewJSONLogger(io.Discard, logger.ErrorLevel)
}

func TestFetchFeed(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		// Setup
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/_data/tecajnice/dtecbs-l.xml", r.URL.Path)
			w.Header().Set("Content-Type", "application/xml")
			w.Write([]byte(sampleFeed))
		}))
		defer mockServer.Close()

		client := NewBSIFeedClient(mockServer.URL+"/_data/tecajnice/dtecbs-l.xml", nil, quietLogger())

		// Execute
		body, err := client.FetchFeed(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, sampleFeed, string(body))
	})

	t.Run("Not found is not retried", func(t *testing.T) {
		// Setup
		var calls int32
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusNotFound)
		}))
		defer mockServer.Close()

		client := NewBSIFeedClient(mockServer.URL, nil, quietLogger(), WithBackoff(noBackoff))

		// Execute
		body, err := client.FetchFeed(context.Background())

		// Assert
		assert.Nil(t, body)
		var fetchErr *entity.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.Equal(t, mockServer.URL, fetchErr.URL)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("Server errors are retried", func(t *testing.T) {
		// Setup
		var calls int32
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Write([]byte(sampleFeed))
		}))
		defer mockServer.Close()

		client := NewBSIFeedClient(mockServer.URL, nil, quietLogger(), WithBackoff(noBackoff), WithMaxAttempts(3))

		// Execute
		body, err := client.FetchFeed(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, sampleFeed, string(body))
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("Gives up after max attempts", func(t *testing.T) {
		// Setup
		var calls int32
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer mockServer.Close()

		client := NewBSIFeedClient(mockServer.URL, nil, quietLogger(), WithBackoff(noBackoff), WithMaxAttempts(2))

		// Execute
		_, err := client.FetchFeed(context.Background())

		// Assert
		var fetchErr *entity.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, http.StatusBadGateway, fetchErr.StatusCode)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	})

	t.Run("Transport failure", func(t *testing.T) {
		// Setup: a closed server refuses connections
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := mockServer.URL
		mockServer.Close()

		client := NewBSIFeedClient(url, nil, quietLogger(), WithBackoff(noBackoff), WithMaxAttempts(2))

		// Execute
		_, err := client.FetchFeed(context.Background())

		// Assert
		var fetchErr *entity.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, 0, fetchErr.StatusCode)
	})

	t.Run("Cancelled during backoff", func(t *testing.T) {
		// Setup
		mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer mockServer.Close()

		ctx, cancel := context.WithCancel(context.Background())
		client := NewBSIFeedClient(mockServer.URL, nil, quietLogger(), WithBackoff(func(int) time.Duration {
			cancel()
			return time.Hour
		}))

		// Execute
		start := time.Now()
		_, err := client.FetchFeed(ctx)

		// Assert
		assert.True(t, errors.Is(err, context.Canceled))
		assert.Less(t, time.Since(start), 10*time.Second)
	})
}

func TestFetchFeedCache(t *testing.T) {
	// Setup
	var calls int32
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(sampleFeed))
	}))
	defer mockServer.Close()

	m := metrics.New()
	client := NewBSIFeedClient(mockServer.URL, nil, quietLogger(),
		WithCache(cache.NewFeedCache(time.Hour)),
		WithMetrics(m),
	)

	// Execute
	first, err := client.FetchFeed(context.Background())
	require.NoError(t, err)
	second, err := client.FetchFeed(context.Background())
	require.NoError(t, err)

	// Assert
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	count, err := testutil.GatherAndCount(m.Registry(), "bsirates_feed_fetches_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count) // one "ok" and one "cache" series
}

func TestNewBSIFeedClientDefaults(t *testing.T) {
	client := NewBSIFeedClient("", nil, nil)

	assert.Equal(t, DefaultFeedURL, client.URL())
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, defaultMaxAttempts, client.maxAttempts)
	assert.Equal(t, 4*time.Second, client.backoff(2))

	WithMaxAttempts(0)(client)
	assert.Equal(t, defaultMaxAttempts, client.maxAttempts)
}

func TestWorstCaseDuration(t *testing.T) {
	tests := []struct {
		name        string
		maxAttempts int
		timeout     time.Duration
		backoff     BackoffFunc
		expected    time.Duration
	}{
		{"Default retries", 3, 60 * time.Second, QuadraticBackoff, 185 * time.Second},
		{"Single attempt", 1, 10 * time.Second, nil, 10 * time.Second},
		{"Non-positive attempts use default", 0, time.Second, nil, 8 * time.Second},
		{"Custom backoff", 4, time.Second, func(int) time.Duration { return time.Second }, 7 * time.Second},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, WorstCaseDuration(tc.maxAttempts, tc.timeout, tc.backoff))
		})
	}
}
