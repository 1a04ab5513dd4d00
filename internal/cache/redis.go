package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cache miss")

const defaultTTL = 12 * time.Hour

// RedisCache stores neighborhood lists as JSON. The catalog changes rarely, so entries live
// for hours; jitter spreads their expiry.
type RedisCache struct {
	client  redis.UniversalClient
	baseTTL time.Duration
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{
		client:  client,
		baseTTL: ttl,
	}
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]domain.Neighborhood, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("client.Get: %w", err)
	}

	var nbs []domain.Neighborhood
	if err := json.Unmarshal(data, &nbs); err != nil {
		return nil, fmt.Errorf("json.Unmarshal: %w", err)
	}

	return nbs, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, nbs []domain.Neighborhood) error {
	data, err := json.Marshal(nbs)
	if err != nil {
		return fmt.Errorf("json.Marshal: %w", err)
	}

	ttl := r.baseTTL
	if spread := int64(r.baseTTL / 10); spread > 0 {
		ttl += time.Duration(rand.Int64N(spread))
	}
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("client.Set: %w", err)
	}

	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("client.Del: %w", err)
	}
	return nil
}

func postalCodeKey(code string) string {
	return fmt.Sprintf("geo:postal:%s", code)
}

func cityKey(normalizedName string) string {
	return fmt.Sprintf("geo:city:%s", normalizedName)
}
