package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/backend"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps workflow and backend errors to HTTP status codes.
func handleError(w http.ResponseWriter, err error) {
	var se *backend.StatusError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusUnprocessableEntity, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrStaleValidation):
		respondError(w, http.StatusConflict, "stale_validation", err.Error())
	case errors.Is(err, checkout.ErrAcknowledgementRequired):
		respondError(w, http.StatusConflict, "acknowledgement_required", err.Error())
	case errors.Is(err, checkout.ErrNotReady):
		respondError(w, http.StatusConflict, "not_ready", err.Error())
	case errors.Is(err, checkout.ErrOrderRejected):
		respondError(w, http.StatusConflict, "order_rejected", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, backend.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, backend.ErrTransport):
		respondError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.As(err, &se):
		respondError(w, http.StatusBadGateway, "backend_error", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, "request_cancelled", "request cancelled")
	default:
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
