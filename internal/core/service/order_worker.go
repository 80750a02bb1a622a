package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/port"
)

const persistTimeout = 5 * time.Second

// RunWorker drains the order queue until it is closed. A failed write puts
// the reserved units back into the cache counter.
func (s *OrderService) RunWorker(id int, db port.DatabaseRepository) {
	for order := range s.orderQueue {
		s.persist(id, order, db)
	}
}

func (s *OrderService) persist(id int, order domain.Order, db port.DatabaseRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	log := s.logger.With(zap.Int("worker", id), zap.String("order_id", order.ID))

	if err := db.CreateOrder(ctx, order); err != nil {
		log.Warn("failed to save order", zap.Error(err))

		// The write may have failed by exhausting ctx; the rollback gets its own budget.
		rbCtx, rbCancel := context.WithTimeout(context.WithoutCancel(ctx), s.persistTimeout)
		defer rbCancel()

		if rbErr := s.cache.IncrementStock(rbCtx, order.SizeKey(), order.Quantity); rbErr != nil {
			log.Error("CRITICAL rollback failed", zap.Error(rbErr))
		} else {
			log.Info("rolled back stock")
		}
		return
	}

	log.Info("saved order",
		zap.String("product_id", order.ProductID),
		zap.Int("quantity", order.Quantity),
		zap.String("total", order.Total.StringFixed(2)))

	if err := s.cache.InvalidateDashboard(ctx); err != nil {
		log.Warn("dashboard cache invalidate failed", zap.Error(err))
	}
}
