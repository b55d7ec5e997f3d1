package internal

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/application/service"
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/domain/series"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/api"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/cache"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/db"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/metrics"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/parser"
	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var perfCurrencies = []string{
	"USD", "JPY", "BGN", "CZK", "DKK", "GBP", "HUF", "PLN", "RON", "SEK",
	"CHF", "ISK", "NOK", "TRY", "AUD", "BRL", "CAD", "CNY", "HKD", "IDR",
	"ILS", "INR", "KRW", "MXN", "MYR", "NZD", "PHP", "SGD", "THB", "ZAR",
}

// generateFeed builds a feed with one block per business day between from
// and to. Each currency is skipped on roughly one day in fifty.
func generateFeed(from, to time.Time) (string, int) {
	rng := rand.New(rand.NewSource(1))
	var b strings.Builder
	blocks := 0

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n<DtecBS>\n")
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		blocks++
		fmt.Fprintf(&b, "  <tecajnica datum=\"%s\">\n", entity.FormatDay(d))
		for i, code := range perfCurrencies {
			if rng.Intn(50) == 0 {
				continue
			}
			fmt.Fprintf(&b, "    <tecaj oznaka=\"%s\" sifra=\"%03d\">%.4f</tecaj>\n",
				code, 100+i, 0.5+rng.Float64()*150)
		}
		b.WriteString("  </tecajnica>\n")
	}
	b.WriteString("</DtecBS>\n")

	return b.String(), blocks
}

func TestPerformance(t *testing.T) {
	// Skip in short mode or CI
	if testing.Short() {
		t.Skip("Skipping performance test in short mode")
	}

	from := time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	feedXML, blocks := generateFeed(from, to)
	log := logger.NewJSONLogger(io.Discard, logger.ErrorLevel)

	var feed entity.Feed

	t.Run("Feed Parsing", func(t *testing.T) {
		startTime := time.Now()

		parsed, err := parser.NewBSIXMLParser(log).Parse([]byte(feedXML))
		require.NoError(t, err)
		feed = parsed

		duration := time.Since(startTime)
		assert.Equal(t, blocks, feed.Len())
		t.Logf("Feed parsing: %d blocks (%d bytes) in %v", blocks, len(feedXML), duration)
	})

	t.Run("Series Reconstruction", func(t *testing.T) {
		window, err := entity.NewDateWindow(from, to)
		require.NoError(t, err)
		days := window.Days()

		startTime := time.Now()

		for _, code := range perfCurrencies {
			res, err := series.Reconstruct(context.Background(), days, feed, code)
			require.NoError(t, err)
			assert.Len(t, res.Rates, len(days), code)
		}

		duration := time.Since(startTime)
		total := len(days) * len(perfCurrencies)
		t.Logf("Series reconstruction: %d rows in %v (%.0f rows/sec)",
			total, duration, float64(total)/duration.Seconds())
	})

	t.Run("Concurrent Series Requests", func(t *testing.T) {
		// Setup feed server, cached client and snapshot archive
		var downloads int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&downloads, 1)
			w.Write([]byte(feedXML))
		}))
		defer server.Close()

		dbPath, err := os.MkdirTemp("", "badger-perf-test")
		require.NoError(t, err)
		defer os.RemoveAll(dbPath)

		badgerDB, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
		require.NoError(t, err)
		defer badgerDB.Close()

		m := metrics.New()
		client := api.NewBSIFeedClient(server.URL, server.Client(), log,
			api.WithCache(cache.NewFeedCache(time.Hour)), api.WithMetrics(m))
		source := db.NewArchivingFeedRepository(client, server.URL, log, db.NewBadgerFeedArchive(badgerDB, 0))
		svc := service.NewSeriesService(source, parser.NewBSIXMLParser(log), log, m)

		// Warm the cache so workers share one download
		_, err = svc.AvailableCurrencies(context.Background())
		require.NoError(t, err)

		numRequests := 100
		concurrency := 10
		perWorker := numRequests / concurrency
		var failures int32

		startTime := time.Now()

		wg := sync.WaitGroup{}
		wg.Add(concurrency)

		for i := 0; i < concurrency; i++ {
			go func(workerID int) {
				defer wg.Done()

				ctx := context.Background()
				for j := 0; j < perWorker; j++ {
					start := to.AddDate(-1-(workerID+j)%5, 0, 0)
					window, err := entity.NewDateWindow(start, to)
					if err != nil {
						atomic.AddInt32(&failures, 1)
						continue
					}
					currency := perfCurrencies[(workerID*perWorker+j)%len(perfCurrencies)]

					if _, err := svc.BuildSeries(ctx, window, currency); err != nil {
						t.Logf("Error building series: %v", err)
						atomic.AddInt32(&failures, 1)
					}
				}
			}(i)
		}

		wg.Wait()
		duration := time.Since(startTime)

		// Calculate throughput
		throughput := float64(numRequests) / duration.Seconds()
		t.Logf("Series requests: %d requests in %v (%.2f req/sec)", numRequests, duration, throughput)

		assert.Zero(t, atomic.LoadInt32(&failures))
		assert.Equal(t, int32(1), atomic.LoadInt32(&downloads))
	})
}
