package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartStore interface {
	Add(desc domain.LineDescriptor, qty int) (domain.CartLine, bool)
	SetQuantity(key string, qty int) (domain.CartLine, bool)
	Remove(key string) bool
	Clear()
	Snapshot() domain.CartSnapshot
}

type ProductFetcher interface {
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
}

type CartHandler struct {
	store    CartStore
	products ProductFetcher
	timeout  time.Duration
	log      *zap.Logger
}

func NewCartHandler(store CartStore, products ProductFetcher, timeout time.Duration, log *zap.Logger) *CartHandler {
	return &CartHandler{
		store:    store,
		products: products,
		timeout:  timeout,
		log:      log,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type CartResponseDTO struct {
	Revision   uint64            `json:"revision"`
	Lines      []domain.CartLine `json:"lines"`
	TotalItems int               `json:"total_items"`
	TotalLines int               `json:"total_lines"`
	TotalPrice decimal.Decimal   `json:"total_price"`
}

func newCartResponse(s domain.CartSnapshot) CartResponseDTO {
	resp := CartResponseDTO{
		Revision:   s.Revision,
		Lines:      s.Lines,
		TotalLines: len(s.Lines),
		TotalPrice: decimal.Zero,
	}
	for _, l := range s.Lines {
		resp.TotalItems += l.Quantity
		resp.TotalPrice = resp.TotalPrice.Add(l.Subtotal())
	}
	return resp
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newCartResponse(h.store.Snapshot()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	product, err := h.products.GetProduct(ctx, req.ProductID)
	if err != nil {
		logger.FromContext(ctx, h.log).Warn("product fetch failed",
			zap.Int64("product_id", req.ProductID),
			zap.Error(err))
		handleError(w, err)
		return
	}
	if product.AvailableQuantity <= 0 {
		respondError(w, http.StatusConflict, "out_of_stock", "product is out of stock")
		return
	}

	line, ok := h.store.Add(product.Descriptor(), req.Quantity)
	if !ok {
		respondError(w, http.StatusBadGateway, "invalid_product", "product has no usable key")
		return
	}
	respondJSON(w, http.StatusCreated, line)
}

// PUT /api/v1/cart/items/{key}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	line, ok := h.store.SetQuantity(key, req.Quantity)
	if !ok {
		respondError(w, http.StatusNotFound, "not_found", "item not in cart")
		return
	}
	respondJSON(w, http.StatusOK, line)
}

// DELETE /api/v1/cart/items/{key}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.store.Remove(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.store.Clear()
	w.WriteHeader(http.StatusNoContent)
}
