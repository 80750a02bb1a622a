package port

import (
	"context"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

type EventPublisher interface {
	PublishStockAlert(ctx context.Context, alert domain.StockAlert) error
}
