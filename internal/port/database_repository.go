package port

import (
	"context"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

// CatalogRepository is the read side of the product catalog.
type CatalogRepository interface {
	// ListProducts returns one page (1-based) and the catalog size, or -1 when
	// the source does not report it
	ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, int, error)

	// GetProduct returns nil when the product does not exist
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type DatabaseRepository interface {
	// CreateOrder persists a new order and books its quantity against the size's sold counter
	CreateOrder(ctx context.Context, order domain.Order) error
}

// CatalogWriter is implemented by catalog sources that accept edits.
type CatalogWriter interface {
	// UpsertProduct stores the product and reports how the remaining stock of
	// each size moved. Recorded sales of existing sizes are kept.
	UpsertProduct(ctx context.Context, product domain.Product) ([]domain.StockDelta, error)
}
