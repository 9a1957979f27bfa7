package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var ErrProductNotFound = errors.New("product not found")

// GetProduct fetches the add-to-cart payload for one product.
func (c *Client) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	var p domain.Product
	err := c.Do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/products/%d", productID), nil, nil, &p)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %d", ErrProductNotFound, productID)
		}
		return nil, fmt.Errorf("get product %d: %w", productID, err)
	}
	if p.ProductID == 0 {
		p.ProductID = productID
	}
	return &p, nil
}
