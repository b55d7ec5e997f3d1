package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/damon-houk/bsi-rate-series/internal/application/service"
	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
)

const defaultSnapshotLimit = 20

// SnapshotLister lists archived copies of the feed, newest first
type SnapshotLister interface {
	List(ctx context.Context, limit int) ([]entity.FeedSnapshot, error)
}

// CurrencyHandler handles HTTP requests about the feed itself: the currencies
// it carries and the archived copies of it
type CurrencyHandler struct {
	service   *service.SeriesService
	snapshots SnapshotLister
	logger    logger.Logger
}

// NewCurrencyHandler creates a new currency handler. snapshots may be nil when
// no snapshot archive is configured.
func NewCurrencyHandler(service *service.SeriesService, snapshots SnapshotLister, log logger.Logger) *CurrencyHandler {
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	return &CurrencyHandler{
		service:   service,
		snapshots: snapshots,
		logger:    log,
	}
}

// GetCurrencies handles GET /currencies
func (h *CurrencyHandler) GetCurrencies(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	h.logger.Info("Handling currencies request", map[string]interface{}{
		"request_id": requestID,
	})

	set, err := h.service.AvailableCurrencies(r.Context())
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CurrenciesResponse{
		Currencies: set.Codes(),
		Count:      set.Len(),
	})
}

// GetSnapshots handles GET /snapshots?limit=
func (h *CurrencyHandler) GetSnapshots(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if h.snapshots == nil {
		sendErrorResponse(w, h.logger, "Snapshot archive disabled",
			"Set ARCHIVE_BADGER_DIR to keep snapshots of the feed", http.StatusNotFound, requestID)
		return
	}

	limit := defaultSnapshotLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			sendErrorResponse(w, h.logger, "Invalid limit",
				"The 'limit' query parameter must be a positive integer", http.StatusBadRequest, requestID)
			return
		}
		limit = n
	}

	list, err := h.snapshots.List(r.Context(), limit)
	if err != nil {
		sendServiceError(w, h.logger, err, requestID)
		return
	}

	resp := make([]SnapshotResponse, 0, len(list))
	for _, s := range list {
		resp = append(resp, SnapshotResponse{
			ID:        s.ID,
			Source:    s.Source,
			FetchedAt: s.FetchedAt.UTC().Format(time.RFC3339),
			Size:      s.Size,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// RegisterRoutes registers the currency handler routes
func (h *CurrencyHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/currencies", h.GetCurrencies).Methods("GET")
	router.HandleFunc("/snapshots", h.GetSnapshots).Methods("GET")

	h.logger.Info("Currency routes registered", map[string]interface{}{
		"routes": []string{
			"GET /currencies",
			"GET /snapshots",
		},
	})
}
