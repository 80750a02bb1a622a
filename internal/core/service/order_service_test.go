package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

// Mock CacheRepository
type mockCacheRepo struct {
	mu             sync.Mutex
	stock          map[domain.SizeKey]int
	idempotencySet map[string]bool
	dashboard      *domain.Dashboard
	dashboardSets  int
	invalidations  int
	failRead       error
	honorCtx       bool
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{
		stock:          make(map[domain.SizeKey]int),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCacheRepo) stockOf(key domain.SizeKey) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[key]
}

func (m *mockCacheRepo) SetStock(ctx context.Context, key domain.SizeKey, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[key] = quantity
	return nil
}

func (m *mockCacheRepo) DecrementStock(ctx context.Context, key domain.SizeKey, quantity int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[key]
	if ok && current >= quantity {
		m.stock[key] = current - quantity
		return true, nil
	}
	return false, nil
}

func (m *mockCacheRepo) IncrementStock(ctx context.Context, key domain.SizeKey, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.honorCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	m.stock[key] += quantity
	return nil
}

func (m *mockCacheRepo) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCacheRepo) GetDashboard(ctx context.Context) (*domain.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead != nil {
		return nil, m.failRead
	}
	if m.dashboard == nil {
		return nil, nil
	}
	d := *m.dashboard
	return &d, nil
}

func (m *mockCacheRepo) SetDashboard(ctx context.Context, d domain.Dashboard, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboard = &d
	m.dashboardSets++
	return nil
}

func (m *mockCacheRepo) InvalidateDashboard(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboard = nil
	m.invalidations++
	return nil
}

// Mock DatabaseRepository
type mockDB struct {
	mu     sync.Mutex
	orders []domain.Order
	err    error
	hang   bool
}

func (m *mockDB) CreateOrder(ctx context.Context, order domain.Order) error {
	if m.hang {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, order)
	return nil
}

var testKey = domain.SizeKey{ProductID: "item-1", Color: "Black", Size: "M"}

func rawOrder(requestID string, quantity int) domain.RawOrder {
	return domain.RawOrder{
		RequestID: requestID,
		UserID:    "user-1",
		ProductID: testKey.ProductID,
		Color:     domain.Label(testKey.Color),
		Size:      domain.Label(testKey.Size),
		Quantity:  domain.Count(quantity),
		Total:     []byte(`"19.90"`),
	}
}

func drain(svc *OrderService) {
	go func() {
		for range svc.GetOrderQueue() {
		}
	}()
}

func TestPurchase_Success(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 10
	svc := NewOrderService(cache, 100, nil)
	defer svc.Close()
	drain(svc)

	order, err := svc.Purchase(context.Background(), rawOrder("req-1", 1))
	if err != nil {
		t.Errorf("expected success, got error: %v", err)
	}
	if order.ID == "" {
		t.Error("expected order ID")
	}

	if got := cache.stockOf(testKey); got != 9 {
		t.Errorf("expected stock 9, got %d", got)
	}
}

func TestPurchase_InsufficientStock(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 0
	svc := NewOrderService(cache, 100, nil)
	defer svc.Close()
	drain(svc)

	_, err := svc.Purchase(context.Background(), rawOrder("req-1", 1))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestPurchase_UnknownSize(t *testing.T) {
	cache := newMockCacheRepo()
	svc := NewOrderService(cache, 100, nil)
	defer svc.Close()
	drain(svc)

	_, err := svc.Purchase(context.Background(), rawOrder("req-1", 1))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Errorf("expected ErrInsufficientStock, got: %v", err)
	}
}

func TestPurchase_DuplicateRequest(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 10
	svc := NewOrderService(cache, 100, nil)
	defer svc.Close()
	drain(svc)

	// First request
	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 1)); err != nil {
		t.Fatalf("first purchase failed: %v", err)
	}

	// Duplicate request with same requestID
	_, err := svc.Purchase(context.Background(), rawOrder("req-1", 1))
	if !errors.Is(err, ErrDuplicateRequest) {
		t.Errorf("expected ErrDuplicateRequest, got: %v", err)
	}

	// Stock should only be decremented once
	if got := cache.stockOf(testKey); got != 9 {
		t.Errorf("expected stock 9, got %d", got)
	}
}

func TestPurchase_Validation(t *testing.T) {
	svc := NewOrderService(newMockCacheRepo(), 100, nil)
	defer svc.Close()

	tests := []struct {
		name   string
		mutate func(*domain.RawOrder)
	}{
		{"missing request id", func(r *domain.RawOrder) { r.RequestID = "" }},
		{"missing user", func(r *domain.RawOrder) { r.UserID = " " }},
		{"missing product", func(r *domain.RawOrder) { r.ProductID = "" }},
		{"missing size", func(r *domain.RawOrder) { r.Size = "" }},
		{"zero quantity", func(r *domain.RawOrder) { r.Quantity = 0 }},
		{"negative total", func(r *domain.RawOrder) { r.Total = []byte(`-5`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawOrder("req-v", 1)
			tt.mutate(&raw)
			_, err := svc.Purchase(context.Background(), raw)
			if !errors.Is(err, ErrInvalidOrder) {
				t.Errorf("expected ErrInvalidOrder, got: %v", err)
			}
		})
	}
}

func TestPurchase_Concurrent(t *testing.T) {
	initialStock := 20
	totalRequests := 50

	cache := newMockCacheRepo()
	cache.stock[testKey] = initialStock
	svc := NewOrderService(cache, 100, nil)
	defer svc.Close()
	drain(svc)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if _, err := svc.Purchase(context.Background(), rawOrder(fmt.Sprintf("req-%d", id), 1)); err == nil {
				successCount.Add(1)
			}
		}(i)
	}

	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	if got := cache.stockOf(testKey); got != 0 {
		t.Errorf("expected stock 0, got %d", got)
	}
}

func TestPurchase_OrderQueued(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 10
	svc := NewOrderService(cache, 100, nil)

	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 2)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	// Read from queue
	order := <-svc.GetOrderQueue()

	if order.UserID != "user-1" {
		t.Errorf("expected user-1, got %s", order.UserID)
	}
	if order.SizeKey() != testKey {
		t.Errorf("expected %+v, got %+v", testKey, order.SizeKey())
	}
	if order.Quantity != 2 {
		t.Errorf("expected quantity 2, got %d", order.Quantity)
	}
	if order.Total.StringFixed(2) != "19.90" {
		t.Errorf("expected total 19.90, got %s", order.Total)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("expected pending status, got %s", order.Status)
	}

	svc.Close()
}

func TestPurchase_CancelledWhileQueueFull(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 10
	svc := NewOrderService(cache, 1, nil)
	defer svc.Close()

	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 1)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Purchase(ctx, rawOrder("req-2", 3))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got: %v", err)
	}
	if got := cache.stockOf(testKey); got != 9 {
		t.Errorf("expected reserved units restored to 9, got %d", got)
	}
}

func TestRunWorker_PersistsAndInvalidates(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 5
	cache.dashboard = &domain.Dashboard{ProductCount: 1}
	db := &mockDB{}
	svc := NewOrderService(cache, 10, nil)

	done := make(chan struct{})
	go func() {
		svc.RunWorker(0, db)
		close(done)
	}()

	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 2)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	svc.Close()
	<-done

	if len(db.orders) != 1 {
		t.Fatalf("expected 1 saved order, got %d", len(db.orders))
	}
	if got := cache.stockOf(testKey); got != 3 {
		t.Errorf("expected stock 3, got %d", got)
	}
	if cache.invalidations != 1 || cache.dashboard != nil {
		t.Errorf("expected dashboard invalidated once, got %d", cache.invalidations)
	}
}

func TestRunWorker_RollbackOnFailure(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 5
	db := &mockDB{err: errors.New("db down")}
	svc := NewOrderService(cache, 10, nil)

	done := make(chan struct{})
	go func() {
		svc.RunWorker(0, db)
		close(done)
	}()

	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 2)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	svc.Close()
	<-done

	if got := cache.stockOf(testKey); got != 5 {
		t.Errorf("expected stock restored to 5, got %d", got)
	}
	if cache.invalidations != 0 {
		t.Errorf("expected no invalidation, got %d", cache.invalidations)
	}
}

func TestRunWorker_RollbackAfterWriteTimeout(t *testing.T) {
	cache := newMockCacheRepo()
	cache.stock[testKey] = 5
	cache.honorCtx = true
	db := &mockDB{hang: true}
	svc := NewOrderService(cache, 10, nil)
	svc.persistTimeout = 20 * time.Millisecond

	done := make(chan struct{})
	go func() {
		svc.RunWorker(0, db)
		close(done)
	}()

	if _, err := svc.Purchase(context.Background(), rawOrder("req-1", 2)); err != nil {
		t.Fatalf("purchase failed: %v", err)
	}
	svc.Close()
	<-done

	if got := cache.stockOf(testKey); got != 5 {
		t.Errorf("expected reserved units restored to 5, got %d", got)
	}
}
