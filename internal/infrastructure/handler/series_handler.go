// Package handler internal/infrastructure/handler/series_handler.go
package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/application/service"
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/middleware"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/report"
	"github.com/gorilla/mux"
)

const tsvContentType = "text/tab-separated-values; charset=utf-8"

// DefaultMaxWindowDays is the largest window a request may ask for unless
// SetMaxWindowDays says otherwise
const DefaultMaxWindowDays = 36600

// SeriesHandler handles HTTP requests for reconstructed rate series
type SeriesHandler struct {
	service         *service.SeriesService
	defaultCurrency string
	maxDays         int
	now             func() time.Time
	logger          logger.Logger
}

// NewSeriesHandler creates a new series handler. defaultCurrency is used when
// the request names none.
func NewSeriesHandler(service *service.SeriesService, defaultCurrency string, log logger.Logger) *SeriesHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}
	if defaultCurrency == "" {
		defaultCurrency = "USD"
	}

	return &SeriesHandler{
		service:         service,
		defaultCurrency: defaultCurrency,
		maxDays:         DefaultMaxWindowDays,
		now:             time.Now,
		logger:          log,
	}
}

// SetMaxWindowDays caps the number of days a request may cover. Non-positive
// values are ignored.
func (h *SeriesHandler) SetMaxWindowDays(days int) {
	if days > 0 {
		h.maxDays = days
	}
}

// GetSeries handles GET /series?start=&end=&currency=&format=
func (h *SeriesHandler) GetSeries(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())
	query := r.URL.Query()

	h.logger.Info("Handling series request", map[string]interface{}{
		"request_id": requestID,
		"start":      query.Get("start"),
		"end":        query.Get("end"),
		"currency":   query.Get("currency"),
	})

	window, err := h.parseWindow(query.Get("start"), query.Get("end"))
	if err != nil {
		h.logger.Warn("Invalid date window", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, h.logger, "Invalid date window", err.Error(), http.StatusBadRequest, requestID)
		return
	}

	currency := query.Get("currency")
	if currency == "" {
		currency = h.defaultCurrency
	}

	switch format := strings.ToLower(query.Get("format")); format {
	case "", "json":
		h.writeJSON(w, r, window, currency, requestID)
	case "tsv", "text":
		h.writeTSV(w, r, window, currency, requestID)
	default:
		sendErrorResponse(w, h.logger, "Invalid format",
			"The 'format' query parameter must be 'json' or 'tsv'", http.StatusBadRequest, requestID)
	}
}

func (h *SeriesHandler) writeJSON(w http.ResponseWriter, r *http.Request, window entity.DateWindow, currency, requestID string) {
	result, err := h.service.BuildSeries(r.Context(), window, currency)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newSeriesResponse(result))
}

func (h *SeriesHandler) writeTSV(w http.ResponseWriter, r *http.Request, window entity.DateWindow, currency, requestID string) {
	cw := &countingWriter{w: w}
	w.Header().Set("Content-Type", tsvContentType)

	_, err := h.service.StreamSeries(r.Context(), window, currency, report.NewTextReport(cw))
	if err == nil {
		return
	}
	if cw.n == 0 {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	// Status is already sent; the client sees a truncated table
	h.logger.Error("Series stream interrupted", map[string]interface{}{
		"request_id": requestID,
		"written":    cw.n,
		"error":      err.Error(),
	})
}

// parseWindow reads the start (required) and end (default today) parameters
func (h *SeriesHandler) parseWindow(startParam, endParam string) (entity.DateWindow, error) {
	if startParam == "" {
		return entity.DateWindow{}, fmt.Errorf("%w: the 'start' query parameter is required", entity.ErrInvalidWindow)
	}

	start, err := entity.ParseDay(startParam)
	if err != nil {
		return entity.DateWindow{}, err
	}

	end := h.now()
	if endParam != "" {
		if end, err = entity.ParseDay(endParam); err != nil {
			return entity.DateWindow{}, err
		}
	}

	window, err := entity.NewDateWindow(start, end)
	if err != nil {
		return entity.DateWindow{}, err
	}
	if n := window.Len(); n > h.maxDays {
		return entity.DateWindow{}, fmt.Errorf("%w: %d days requested, at most %d allowed",
			entity.ErrInvalidWindow, n, h.maxDays)
	}

	return window, nil
}

// RegisterRoutes registers the series handler routes
func (h *SeriesHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/series", h.GetSeries).Methods("GET")

	h.logger.Info("Series routes registered", map[string]interface{}{
		"routes": []string{
			"GET /series",
		},
	})
}

// countingWriter records whether anything reached the client
type countingWriter struct {
	w http.ResponseWriter
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}
