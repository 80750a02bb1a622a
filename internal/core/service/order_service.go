package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/port"
)

var (
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidOrder      = errors.New("invalid order")
	ErrPurchasesDisabled = errors.New("purchases disabled for this catalog source")
)

type OrderService struct {
	cache          port.CacheRepository
	orderQueue     chan domain.Order
	persistTimeout time.Duration
	logger         *zap.Logger
}

func NewOrderService(cache port.CacheRepository, queueSize int, logger *zap.Logger) *OrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderService{
		cache:          cache,
		orderQueue:     make(chan domain.Order, queueSize),
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

func validateOrder(o domain.Order) error {
	switch {
	case o.RequestID == "":
		return fmt.Errorf("%w: request_id is required", ErrInvalidOrder)
	case o.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidOrder)
	case o.ProductID == "":
		return fmt.Errorf("%w: product_id is required", ErrInvalidOrder)
	case o.Size == "":
		return fmt.Errorf("%w: size is required", ErrInvalidOrder)
	case o.Quantity <= 0:
		return fmt.Errorf("%w: quantity must be > 0", ErrInvalidOrder)
	case o.Total.IsNegative():
		return fmt.Errorf("%w: total must be >= 0", ErrInvalidOrder)
	}
	return nil
}

// Purchase reserves stock for one size in the cache and queues the order for
// persistence. The request id makes the call idempotent.
func (s *OrderService) Purchase(ctx context.Context, raw domain.RawOrder) (domain.Order, error) {
	order := raw.Normalize()
	if err := validateOrder(order); err != nil {
		return domain.Order{}, err
	}

	idempotencyKey := "order:" + order.RequestID

	ok, err := s.cache.SetIdempotency(ctx, idempotencyKey)
	if err != nil {
		return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
	}
	if !ok {
		return domain.Order{}, ErrDuplicateRequest
	}

	ok, err = s.cache.DecrementStock(ctx, order.SizeKey(), order.Quantity)
	if err != nil {
		return domain.Order{}, fmt.Errorf("stock decrement failed: %w", err)
	}
	if !ok {
		return domain.Order{}, ErrInsufficientStock
	}

	now := time.Now().UTC()
	order.ID = uuid.NewString()
	order.CreatedAt = now
	order.UpdatedAt = now

	select {
	case s.orderQueue <- order:
	case <-ctx.Done():
		if rbErr := s.cache.IncrementStock(context.WithoutCancel(ctx), order.SizeKey(), order.Quantity); rbErr != nil {
			s.logger.Error("rollback after cancelled enqueue failed",
				zap.String("order_id", order.ID),
				zap.Error(rbErr))
		}
		return domain.Order{}, ctx.Err()
	}

	return order, nil
}

func (s *OrderService) GetOrderQueue() <-chan domain.Order {
	return s.orderQueue
}

func (s *OrderService) Close() {
	close(s.orderQueue)
}
