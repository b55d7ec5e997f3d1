// Package service internal/application/service/series_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/domain/repository"
	"github.com/damon-houk/bsi-rate-series/internal/domain/series"
	domainservice "github.com/damon-houk/bsi-rate-series/internal/domain/service"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/metrics"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/middleware"
)

// ReportWriter receives a series as it is produced
type ReportWriter interface {
	WriteSummary(summary entity.SeriesSummary) error
	WriteHeader() error
	WriteRow(rate entity.ResolvedRate) error
	Flush() error
}

// SeriesService fetches the feed and reconstructs daily rate series from it
type SeriesService struct {
	source  repository.FeedSource
	parser  domainservice.FeedParser
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewSeriesService creates a new series service
func NewSeriesService(source repository.FeedSource, parser domainservice.FeedParser, log logger.Logger, m *metrics.Metrics) *SeriesService {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &SeriesService{
		source:  source,
		parser:  parser,
		metrics: m,
		logger:  log,
	}
}

// AvailableCurrencies returns every currency code present in the feed
func (s *SeriesService) AvailableCurrencies(ctx context.Context) (entity.CurrencySet, error) {
	feed, err := s.loadFeed(ctx)
	if err != nil {
		return entity.CurrencySet{}, err
	}
	return feed.Currencies(), nil
}

// BuildSeries reconstructs the full series for window and returns it in memory
func (s *SeriesService) BuildSeries(ctx context.Context, window entity.DateWindow, currency string) (*entity.Series, error) {
	currency, err := s.prepare(window, currency)
	if err != nil {
		return nil, err
	}

	feed, err := s.loadFeed(ctx)
	if err != nil {
		return nil, err
	}

	res, err := series.Reconstruct(ctx, window.Days(), feed, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct series: %w", err)
	}
	s.finish(ctx, feed, currency, res.Stats)

	return &entity.Series{
		Summary: entity.SeriesSummary{
			Currency:   currency,
			Window:     window,
			Days:       window.Len(),
			Currencies: res.Currencies,
			Stats:      res.Stats,
		},
		Rates: res.Rates,
	}, nil
}

// StreamSeries reconstructs the series for window and writes it to w row by
// row. The feed is fetched and parsed before anything is written, so a fetch
// or format failure leaves w untouched. w is flushed on every return path,
// including cancellation.
func (s *SeriesService) StreamSeries(ctx context.Context, window entity.DateWindow, currency string, w ReportWriter) (stats entity.SeriesStats, err error) {
	currency, err = s.prepare(window, currency)
	if err != nil {
		return stats, err
	}

	feed, err := s.loadFeed(ctx)
	if err != nil {
		return stats, err
	}

	defer func() {
		if flushErr := w.Flush(); flushErr != nil && err == nil {
			err = flushErr
		}
	}()

	summary := entity.SeriesSummary{
		Currency:   currency,
		Window:     window,
		Days:       window.Len(),
		Currencies: feed.Currencies(),
	}
	if err = w.WriteSummary(summary); err != nil {
		return stats, err
	}
	if err = w.WriteHeader(); err != nil {
		return stats, err
	}

	stats, err = series.Walk(ctx, window.Days(), feed, currency, w.WriteRow)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Series aborted", map[string]interface{}{
				"request_id": middleware.GetRequestID(ctx),
				"currency":   currency,
				"written":    stats.Direct + stats.Carried,
			})
			return stats, err
		}
		return stats, fmt.Errorf("failed to write series: %w", err)
	}
	s.finish(ctx, feed, currency, stats)

	return stats, nil
}

func (s *SeriesService) prepare(window entity.DateWindow, currency string) (string, error) {
	if err := window.Validate(); err != nil {
		return "", err
	}
	return entity.NormalizeCurrency(currency)
}

func (s *SeriesService) loadFeed(ctx context.Context) (entity.Feed, error) {
	requestID := middleware.GetRequestID(ctx)

	raw, err := s.source.Fetch(ctx)
	if err != nil {
		s.logger.Error("Failed to fetch feed", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		return entity.Feed{}, fmt.Errorf("failed to fetch feed: %w", err)
	}

	start := time.Now()
	feed, err := s.parser.Parse(raw)
	if err != nil {
		s.logger.Error("Failed to parse feed", map[string]interface{}{
			"request_id": requestID,
			"bytes":      len(raw),
			"error":      err.Error(),
		})
		return entity.Feed{}, fmt.Errorf("failed to parse feed: %w", err)
	}

	s.logger.Debug("Feed loaded", map[string]interface{}{
		"request_id": requestID,
		"days":       feed.Len(),
		"parse_ms":   time.Since(start).Milliseconds(),
		"currencies": feed.Currencies().Len(),
	})

	return feed, nil
}

// finish records the run and warns about days that produced no row
func (s *SeriesService) finish(ctx context.Context, feed entity.Feed, currency string, stats entity.SeriesStats) {
	s.metrics.ObserveResolved(currency, stats)

	fields := map[string]interface{}{
		"request_id": middleware.GetRequestID(ctx),
		"currency":   currency,
		"direct":     stats.Direct,
		"carried":    stats.Carried,
		"omitted":    stats.Omitted,
	}

	if stats.Omitted > 0 {
		if first, ok := feed.FirstObservation(currency); ok {
			fields["first_observation"] = entity.FormatDay(first)
			s.logger.Warn("Days before the first published rate were omitted", fields)
		} else {
			s.logger.Warn("Currency does not appear in the feed", fields)
		}
		return
	}

	s.logger.Info("Series reconstructed", fields)
}
