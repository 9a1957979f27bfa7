package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
)

type Workflow interface {
	RequestCheckout(ctx context.Context) (checkout.Outcome, error)
	Current() checkout.Outcome
	Acknowledge() error
	ApplyCorrections() (int, error)
	PlaceOrder(ctx context.Context, details domain.OrderDetails) (*domain.OrderConfirmation, error)
}

type CheckoutHandler struct {
	workflow Workflow
	timeout  time.Duration
}

func NewCheckoutHandler(workflow Workflow, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		workflow: workflow,
		timeout:  timeout,
	}
}

type CorrectionsResponseDTO struct {
	Changed int              `json:"changed"`
	State   checkout.Outcome `json:"checkout"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) RequestCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	out, err := h.workflow.RequestCheckout(ctx)
	if errors.Is(err, checkout.ErrAcknowledgementRequired) {
		respondJSON(w, http.StatusConflict, out)
		return
	}
	if err != nil {
		handleError(w, err)
		return
	}

	switch {
	case out.State == domain.CheckoutStateReadyToSubmit:
		respondJSON(w, http.StatusOK, out)
	case out.Category == domain.IssueCategoryTransport:
		respondJSON(w, http.StatusServiceUnavailable, out)
	default:
		respondJSON(w, http.StatusConflict, out)
	}
}

// GET /api/v1/checkout
func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.workflow.Current())
}

// POST /api/v1/checkout/acknowledge
func (h *CheckoutHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	if err := h.workflow.Acknowledge(); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.workflow.Current())
}

// POST /api/v1/checkout/corrections
func (h *CheckoutHandler) ApplyCorrections(w http.ResponseWriter, r *http.Request) {
	changed, err := h.workflow.ApplyCorrections()
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, CorrectionsResponseDTO{Changed: changed, State: h.workflow.Current()})
}

// POST /api/v1/orders
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.OrderDetails
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.AddressID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_address_id", "address_id must be positive")
		return
	}
	if req.PaymentMethod == "" {
		respondError(w, http.StatusBadRequest, "missing_payment_method", "payment_method is required")
		return
	}

	conf, err := h.workflow.PlaceOrder(ctx, req)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, conf)
}
