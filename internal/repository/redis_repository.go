package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisRepository keeps the cart record as a JSON value without expiry.
type RedisRepository struct {
	client *redis.Client
	key    string
}

func NewRedisRepository(client *redis.Client, namespace, ownerID string) *RedisRepository {
	return &RedisRepository{
		client: client,
		key:    recordKey(namespace, ownerID),
	}
}

func (r *RedisRepository) Load(ctx context.Context) (*domain.CartRecord, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return DecodeRecord(data)
}

func (r *RedisRepository) Save(ctx context.Context, record *domain.CartRecord) error {
	data, err := EncodeRecord(record)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func recordKey(namespace, ownerID string) string {
	return fmt.Sprintf("%s:cart:%s", namespace, ownerID)
}
