package backend

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

const idempotencyHeader = "Idempotency-Key"

// PlaceOrder submits a validated cart. The idempotency key makes retries of the
// same attempt safe on the backend.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.OrderConfirmation, error) {
	header := http.Header{}
	if req.IdempotencyKey != "" {
		header.Set(idempotencyHeader, req.IdempotencyKey)
	}

	var conf domain.OrderConfirmation
	if err := c.Do(ctx, http.MethodPost, "/api/v1/orders", header, req, &conf); err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	return &conf, nil
}
