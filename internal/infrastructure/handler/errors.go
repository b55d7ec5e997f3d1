package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/damon-houk/bsi-rate-series/internal/domain/entity"
	"github.com/damon-houk/bsi-rate-series/internal/infrastructure/logger"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error       string `json:"error"`
	Status      int    `json:"status"`
	Description string `json:"description,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// sendErrorResponse sends a standardized error response
func sendErrorResponse(w http.ResponseWriter, log logger.Logger, message, description string, statusCode int, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:       message,
		Status:      statusCode,
		Description: description,
		RequestID:   requestID,
	}

	log.Debug("Sending error response", map[string]interface{}{
		"request_id":  requestID,
		"status_code": statusCode,
		"message":     message,
	})

	json.NewEncoder(w).Encode(resp)
}

// sendServiceError maps an error from the series service to a response
func sendServiceError(w http.ResponseWriter, log logger.Logger, err error, requestID string) {
	var (
		fetchErr  *entity.FetchError
		formatErr *entity.FeedFormatError
	)

	switch {
	case errors.Is(err, entity.ErrInvalidWindow):
		sendErrorResponse(w, log, "Invalid date window", err.Error(), http.StatusBadRequest, requestID)
	case errors.Is(err, entity.ErrInvalidCurrency):
		sendErrorResponse(w, log, "Invalid currency code", err.Error(), http.StatusBadRequest, requestID)
	case errors.As(err, &fetchErr):
		log.Error("Feed unavailable", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Rate feed unavailable",
			"The exchange rate feed could not be retrieved. Please try again later.",
			http.StatusBadGateway, requestID)
	case errors.As(err, &formatErr):
		log.Error("Feed unreadable", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Rate feed unreadable",
			"The exchange rate feed was retrieved but could not be parsed.",
			http.StatusBadGateway, requestID)
	case errors.Is(err, context.Canceled):
		// Client went away; nobody is left to read a response
		log.Warn("Request cancelled", map[string]interface{}{"request_id": requestID})
	default:
		log.Error("Unexpected error", map[string]interface{}{
			"request_id": requestID,
			"error":      err.Error(),
		})
		sendErrorResponse(w, log, "Internal server error",
			"An unexpected error occurred. Please try again later.",
			http.StatusInternalServerError, requestID)
	}
}
