package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/port"
)

const maxCatalogPages = 10000

var (
	ErrProductNotFound = errors.New("product not found")
	ErrCatalogTooLarge = errors.New("catalog exceeds page limit")
	ErrCatalogNotWired = errors.New("catalog repository not configured")
	ErrCatalogReadOnly = errors.New("catalog source is read-only")
	ErrInvalidProduct  = errors.New("invalid product")
)

type InventoryConfig struct {
	Thresholds domain.Thresholds
	PageSize   int
	CacheTTL   time.Duration
}

// InventoryService serves the stock dashboard. Cache and publisher are
// optional; a nil cache disables caching and a nil publisher disables alerts.
type InventoryService struct {
	catalog   port.CatalogRepository
	cache     port.CacheRepository
	publisher port.EventPublisher
	writer    port.CatalogWriter
	cfg       InventoryConfig
	logger    *zap.Logger
}

func NewInventoryService(
	catalog port.CatalogRepository,
	cache port.CacheRepository,
	publisher port.EventPublisher,
	cfg InventoryConfig,
	logger *zap.Logger,
) *InventoryService {
	if cfg.PageSize <= 0 {
		cfg.PageSize = domain.DefaultPageSize
	}
	if cfg.Thresholds.LowStock <= 0 {
		cfg.Thresholds.LowStock = domain.DefaultLowStockThreshold
	}
	if cfg.Thresholds.StockGTE <= 0 {
		cfg.Thresholds.StockGTE = domain.DefaultStockGTE
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{
		catalog:   catalog,
		cache:     cache,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// WithCatalogWriter enables SaveProduct.
func (s *InventoryService) WithCatalogWriter(w port.CatalogWriter) *InventoryService {
	s.writer = w
	return s
}

func (s *InventoryService) Thresholds() domain.Thresholds {
	return s.cfg.Thresholds
}

// LoadCatalog pages through the catalog until a short page, an empty page, or
// the reported catalog size is reached.
func (s *InventoryService) LoadCatalog(ctx context.Context) ([]domain.Product, error) {
	if s.catalog == nil {
		return nil, ErrCatalogNotWired
	}

	var all []domain.Product
	for page := 1; page <= maxCatalogPages; page++ {
		items, total, err := s.catalog.ListProducts(ctx, page, s.cfg.PageSize)
		if err != nil {
			return nil, fmt.Errorf("list products page %d: %w", page, err)
		}
		all = append(all, items...)

		if len(items) < s.cfg.PageSize || (total >= 0 && len(all) >= total) {
			s.logger.Debug("catalog loaded",
				zap.Int("pages", page),
				zap.Int("products", len(all)))
			return all, nil
		}
	}
	return nil, ErrCatalogTooLarge
}

// Dashboard returns the cached dashboard or rebuilds it from the catalog.
// Alerts are published only when the dashboard is rebuilt.
func (s *InventoryService) Dashboard(ctx context.Context) (domain.Dashboard, error) {
	if s.cache != nil {
		cached, err := s.cache.GetDashboard(ctx)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if cached != nil {
			return *cached, nil
		}
	}

	products, err := s.LoadCatalog(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	d := BuildDashboard(products, s.cfg.Thresholds)

	if s.cache != nil {
		if err := s.cache.SetDashboard(ctx, d, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}

	s.publishAlerts(ctx, d)

	s.logger.Info("dashboard rebuilt",
		zap.Int("products", d.ProductCount),
		zap.Int("total_remaining", d.TotalRemaining),
		zap.Int("low_stock", len(d.LowStockIDs)),
		zap.Int("in_stock", len(d.InStockIDs)))

	return d, nil
}

func (s *InventoryService) publishAlerts(ctx context.Context, d domain.Dashboard) {
	if s.publisher == nil {
		return
	}

	now := time.Now().UTC()
	for _, sum := range d.Products {
		if sum.State != domain.StockStateSoldOut && !sum.HasLowStock {
			continue
		}
		alert := domain.StockAlert{
			ProductID:      sum.ProductID,
			Name:           sum.Name,
			State:          sum.State,
			TotalRemaining: sum.TotalRemaining,
			LowSizes:       sum.LowSizes,
			SoldOutSizes:   sum.SoldOutSizes,
			At:             now,
		}
		if err := s.publisher.PublishStockAlert(ctx, alert); err != nil {
			s.logger.Warn("stock alert publish failed",
				zap.String("product_id", sum.ProductID),
				zap.Error(err))
		}
	}
}

// LowStock lists products with at least one low size.
func (s *InventoryService) LowStock(ctx context.Context) ([]domain.StockSummary, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockSummary, 0, len(d.LowStockIDs))
	for _, sum := range d.Products {
		if sum.HasLowStock {
			out = append(out, sum)
		}
	}
	return out, nil
}

// InStock lists products whose total remaining reaches the overstock threshold.
func (s *InventoryService) InStock(ctx context.Context) ([]domain.StockSummary, error) {
	d, err := s.Dashboard(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.StockSummary, 0, len(d.InStockIDs))
	for _, sum := range d.Products {
		if sum.InStock {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (s *InventoryService) ProductStock(ctx context.Context, id string) (domain.StockSummary, error) {
	if s.catalog == nil {
		return domain.StockSummary{}, ErrCatalogNotWired
	}

	p, err := s.catalog.GetProduct(ctx, id)
	if err != nil {
		return domain.StockSummary{}, fmt.Errorf("get product %s: %w", id, err)
	}
	if p == nil {
		return domain.StockSummary{}, ErrProductNotFound
	}
	return Summarize(*p, s.cfg.Thresholds), nil
}

// Evaluate summarizes caller-supplied records without touching the catalog.
func (s *InventoryService) Evaluate(raw []domain.RawProduct) domain.Dashboard {
	return BuildDashboard(domain.NormalizeProducts(raw), s.cfg.Thresholds)
}

// SyncStockCounters seeds the per-size cache counters with remaining stock.
// Duplicate size labels within a variant share one counter.
func (s *InventoryService) SyncStockCounters(ctx context.Context) (int, error) {
	if s.cache == nil {
		return 0, nil
	}

	products, err := s.LoadCatalog(ctx)
	if err != nil {
		return 0, err
	}

	counters := sizeCounters(products...)
	if err := s.seedCounters(ctx, counters); err != nil {
		return 0, err
	}

	if err := s.cache.InvalidateDashboard(ctx); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
	}

	return len(counters), nil
}

// SaveProduct normalizes and stores one product, then shifts its size
// counters by the change in stored stock. Counters are never overwritten
// here, so units reserved by queued orders stay reserved.
func (s *InventoryService) SaveProduct(ctx context.Context, raw domain.RawProduct) (domain.StockSummary, error) {
	if s.writer == nil {
		return domain.StockSummary{}, ErrCatalogReadOnly
	}

	p := raw.Normalize()
	if p.ID == "" {
		return domain.StockSummary{}, fmt.Errorf("%w: id is required", ErrInvalidProduct)
	}

	deltas, err := s.writer.UpsertProduct(ctx, p)
	if err != nil {
		return domain.StockSummary{}, fmt.Errorf("upsert product %s: %w", p.ID, err)
	}

	if s.cache != nil {
		for _, d := range deltas {
			if err := s.cache.IncrementStock(ctx, d.Key, d.Delta); err != nil {
				s.logger.Error("stock counter adjust failed after save",
					zap.String("product_id", p.ID),
					zap.String("color", d.Key.Color),
					zap.String("size", d.Key.Size),
					zap.Int("delta", d.Delta),
					zap.Error(err))
				return domain.StockSummary{}, fmt.Errorf("adjust stock %s/%s/%s: %w", d.Key.ProductID, d.Key.Color, d.Key.Size, err)
			}
		}
		if err := s.cache.InvalidateDashboard(ctx); err != nil {
			s.logger.Warn("dashboard cache invalidate failed", zap.Error(err))
		}
	}

	s.logger.Info("product saved",
		zap.String("product_id", p.ID),
		zap.Int("variants", len(p.Variants)),
		zap.Int("adjusted_counters", len(deltas)))

	// Sold counters come from storage, not from the payload.
	if s.catalog != nil {
		stored, err := s.catalog.GetProduct(ctx, p.ID)
		if err != nil {
			s.logger.Warn("reload saved product failed", zap.String("product_id", p.ID), zap.Error(err))
		} else if stored != nil {
			p = *stored
		}
	}
	return Summarize(p, s.cfg.Thresholds), nil
}

func sizeCounters(products ...domain.Product) map[domain.SizeKey]int {
	counters := make(map[domain.SizeKey]int)
	for _, p := range products {
		for _, v := range p.Variants {
			for _, sz := range v.Sizes {
				key := domain.SizeKey{ProductID: p.ID, Color: v.Color, Size: sz.SizeLabel}
				counters[key] += Remaining(sz)
			}
		}
	}
	return counters
}

func (s *InventoryService) seedCounters(ctx context.Context, counters map[domain.SizeKey]int) error {
	for key, remaining := range counters {
		if err := s.cache.SetStock(ctx, key, remaining); err != nil {
			return fmt.Errorf("set stock %s/%s/%s: %w", key.ProductID, key.Color, key.Size, err)
		}
	}
	return nil
}
