// Package app wires configuration into the feed client, archives, parser and
// series service shared by the CLI and the HTTP server.
package app

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/application/service"
	"github.com/damon-houk/bsi-rate-series/internal/config"
	"github.com/damon-houk/bsi-rate-series/internal/domain/repository"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/api"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/cache"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/db"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/handler"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/metrics"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/middleware"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/parser"
	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/mux"
)

// ArchiveDisabled as the archive file path turns the file archive off
const ArchiveDisabled = "-"

// App holds the wired components
type App struct {
	cfg       *config.Config
	logger    logger.Logger
	metrics   *metrics.Metrics
	badgerDB  *badger.DB
	snapshots *db.BadgerFeedArchive
	client    *api.BSIFeedClient
	cache     *cache.FeedCache
	service   *service.SeriesService
}

// writeMargin is added to the worst-case feed download when sizing the
// server write timeout
const writeMargin = 15 * time.Second

// New builds every component from cfg. Logs are written to logOutput
// (stderr when nil).
func New(cfg *config.Config, logOutput io.Writer) (*App, error) {
	a := &App{cfg: cfg}

	a.initLogger(logOutput)
	a.initMetrics()

	archives, err := a.initArchives()
	if err != nil {
		return nil, err
	}

	a.initFeedClient()
	a.initService(archives)

	a.logger.Debug("Application initialized", map[string]interface{}{
		"feed_url":       cfg.Feed.URL,
		"archive_file":   cfg.Archive.File,
		"archive_badger": cfg.Archive.BadgerDir,
	})

	return a, nil
}

func (a *App) initLogger(out io.Writer) {
	a.logger = logger.NewJSONLogger(out, a.cfg.Level()).WithField("app", "bsirates")
	logger.SetDefaultLogger(a.logger)
}

func (a *App) initMetrics() {
	a.metrics = metrics.New()
}

func (a *App) initArchives() ([]repository.FeedArchive, error) {
	var archives []repository.FeedArchive

	if path := a.cfg.Archive.File; path != "" && path != ArchiveDisabled {
		archives = append(archives, db.NewFileFeedArchive(path))
	}

	if dir := a.cfg.Archive.BadgerDir; dir != "" {
		bdb, err := db.OpenBadger(dir)
		if err != nil {
			return nil, err
		}
		a.badgerDB = bdb
		a.snapshots = db.NewBadgerFeedArchive(bdb, a.cfg.Archive.TTL)
		archives = append(archives, a.snapshots)
	}

	return archives, nil
}

func (a *App) initFeedClient() {
	httpClient := &http.Client{Timeout: a.cfg.Feed.Timeout}

	opts := []api.Option{
		api.WithMaxAttempts(a.cfg.Feed.MaxAttempts),
		api.WithMetrics(a.metrics),
	}
	if a.cfg.Feed.CacheTTL > 0 {
		a.cache = cache.NewFeedCache(a.cfg.Feed.CacheTTL)
		opts = append(opts, api.WithCache(a.cache))
	}

	a.client = api.NewBSIFeedClient(a.cfg.Feed.URL, httpClient, a.logger, opts...)
}

func (a *App) initService(archives []repository.FeedArchive) {
	source := db.NewArchivingFeedRepository(a.client, a.client.URL(), a.logger, archives...)
	p := parser.NewBSIXMLParser(a.logger)
	a.service = service.NewSeriesService(source, p, a.logger, a.metrics)
}

// Config returns the configuration the app was built from
func (a *App) Config() *config.Config {
	return a.cfg
}

// Logger returns the application logger
func (a *App) Logger() logger.Logger {
	return a.logger
}

// Service returns the series service
func (a *App) Service() *service.SeriesService {
	return a.service
}

// Snapshots returns the Badger snapshot archive, or nil when it is disabled
func (a *App) Snapshots() *db.BadgerFeedArchive {
	return a.snapshots
}

// Router builds the HTTP API
func (a *App) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(a.logger))
	router.Use(middleware.MetricsMiddleware(a.metrics))

	seriesHandler := handler.NewSeriesHandler(a.service, a.cfg.Feed.Currency, a.logger)
	seriesHandler.SetMaxWindowDays(a.cfg.HTTPServer.MaxWindowDays)
	seriesHandler.RegisterRoutes(router)

	var lister handler.SnapshotLister
	if a.snapshots != nil {
		lister = a.snapshots
	}
	handler.NewCurrencyHandler(a.service, lister, a.logger).RegisterRoutes(router)

	router.Handle("/metrics", a.metrics.Handler()).Methods("GET")
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	}).Methods("GET")

	return router
}

// WriteTimeout is the server write timeout: HTTP_TIMEOUT, raised when needed
// so a request can outlast a feed download that exhausts every retry
func (a *App) WriteTimeout() time.Duration {
	fetch := api.WorstCaseDuration(a.cfg.Feed.MaxAttempts, a.cfg.Feed.Timeout, api.QuadraticBackoff) + writeMargin
	if fetch > a.cfg.HTTPServer.Timeout {
		return fetch
	}
	return a.cfg.HTTPServer.Timeout
}

// StartBackground launches the feed cache sweeper. It stops when ctx is done.
func (a *App) StartBackground(ctx context.Context) {
	if a.cache == nil {
		return
	}
	go a.cache.RunSweeper(ctx, a.cfg.Feed.CacheTTL, a.logger)
}

// Close releases the snapshot database
func (a *App) Close() error {
	if a.badgerDB == nil {
		return nil
	}
	err := a.badgerDB.Close()
	a.badgerDB = nil
	return err
}
