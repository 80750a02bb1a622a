package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

const (
	stockKeyPrefix    = "stock:"
	dashboardKey      = "dashboard:stock"
	idempotencyKeyTTL = 24 * time.Hour
)

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('DECRBY', key, quantity)
	return 1
end

return 0
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

// StockKey is the counter key of one size. Labels are escaped so that a
// separator inside a color or size label cannot collide with another key.
func StockKey(key domain.SizeKey) string {
	return stockKeyPrefix + url.QueryEscape(key.ProductID) + ":" +
		url.QueryEscape(key.Color) + ":" + url.QueryEscape(key.Size)
}

func (r *RedisAdapter) SetStock(ctx context.Context, key domain.SizeKey, quantity int) error {
	return r.client.Set(ctx, StockKey(key), quantity, 0).Err()
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, key domain.SizeKey, quantity int) (bool, error) {
	result, err := decrementStockScript.Run(ctx, r.client, []string{StockKey(key)}, quantity).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, key domain.SizeKey, quantity int) error {
	return r.client.IncrBy(ctx, StockKey(key), int64(quantity)).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) GetDashboard(ctx context.Context) (*domain.Dashboard, error) {
	b, err := r.client.Get(ctx, dashboardKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var d domain.Dashboard
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("decode cached dashboard: %w", err)
	}
	return &d, nil
}

func (r *RedisAdapter) SetDashboard(ctx context.Context, d domain.Dashboard, ttl time.Duration) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode dashboard: %w", err)
	}
	return r.client.Set(ctx, dashboardKey, b, ttl).Err()
}

func (r *RedisAdapter) InvalidateDashboard(ctx context.Context) error {
	return r.client.Del(ctx, dashboardKey).Err()
}
