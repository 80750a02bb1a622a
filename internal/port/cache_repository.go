package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

type CacheRepository interface {
	// SetStock overwrites the remaining counter of one size
	SetStock(ctx context.Context, key domain.SizeKey, quantity int) error

	// DecrementStock atomically decreases stock in cache, returns false if insufficient
	DecrementStock(ctx context.Context, key domain.SizeKey, quantity int) (bool, error)

	// IncrementStock restores stock (for rollback on failure)
	IncrementStock(ctx context.Context, key domain.SizeKey, quantity int) error

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// GetDashboard returns the cached dashboard, nil on miss
	GetDashboard(ctx context.Context) (*domain.Dashboard, error)

	SetDashboard(ctx context.Context, dashboard domain.Dashboard, ttl time.Duration) error

	InvalidateDashboard(ctx context.Context) error
}
