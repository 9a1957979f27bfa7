package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

func NewRedisCache(client *redis.Client, namespace string) *RedisCache {
	return &RedisCache{
		client:    client,
		namespace: namespace,
		baseTTL:   15 * time.Minute,
	}
}

type RedisCache struct {
	client    *redis.Client
	namespace string
	baseTTL   time.Duration
}

func (r RedisCache) Get(ctx context.Context, ownerID string) (*domain.CartRecord, error) {
	key := r.cacheKey(ownerID)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var record domain.CartRecord
	if err2 := json.Unmarshal(data, &record); err2 != nil {
		return nil, fmt.Errorf("unmarshal cart failed: %w", err2)
	}

	return &record, nil
}

func (r RedisCache) Set(ctx context.Context, ownerID string, record *domain.CartRecord) error {
	key := r.cacheKey(ownerID)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal cart failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, ownerID string) error {
	key := r.cacheKey(ownerID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}

func (r RedisCache) cacheKey(ownerID string) string {
	return fmt.Sprintf("%s:cart-cache:%s", r.namespace, ownerID)
}
