package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type CartCache interface {
	Get(ctx context.Context, ownerID string) (*domain.CartRecord, error)
	Set(ctx context.Context, ownerID string, record *domain.CartRecord) error
	Delete(ctx context.Context, ownerID string) error
}

var ErrCacheMiss = errors.New("cache miss")
