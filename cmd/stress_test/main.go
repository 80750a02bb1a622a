package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/storefront-stock/internal/adapter/storage"
	"github.com/rl1809/storefront-stock/internal/config"
	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/core/service"
)

const (
	initialStock  = 20
	totalRequests = 50
	queueSize     = 100
)

var stressKey = domain.SizeKey{ProductID: "stress-tee", Color: "Black", Size: "M"}

func main() {
	cfg := config.Load()
	ctx := context.Background()

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect redis: %v\n", err)
		os.Exit(1)
	}
	defer rdb.Close()

	redisAdapter := storage.NewRedisAdapter(rdb)
	if err := redisAdapter.SetStock(ctx, stressKey, initialStock); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set stock: %v\n", err)
		os.Exit(1)
	}

	orderService := service.NewOrderService(redisAdapter, queueSize, nil)
	defer orderService.Close()

	// Drain the order queue in background
	go func() {
		for range orderService.GetOrderQueue() {
		}
	}()

	var successCount, soldOutCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(userID int) {
			defer wg.Done()

			_, err := orderService.Purchase(ctx, domain.RawOrder{
				RequestID: uuid.NewString(),
				UserID:    fmt.Sprintf("user-%d", userID),
				ProductID: stressKey.ProductID,
				Color:     domain.Label(stressKey.Color),
				Size:      domain.Label(stressKey.Size),
				Quantity:  1,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, service.ErrInsufficientStock):
				soldOutCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := successCount.Load()
	soldOut := soldOutCount.Load()

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Initial Stock:    %d\n", initialStock)
	fmt.Printf("Total Requests:   %d\n", totalRequests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Sold out:         %d\n", soldOut)
	fmt.Printf("Other errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if success == initialStock && soldOut == totalRequests-initialStock {
		fmt.Printf("PASS: exactly %d orders succeeded, %d sold out\n", initialStock, totalRequests-initialStock)
	} else {
		fmt.Printf("FAIL: expected %d success/%d sold out, got %d/%d\n",
			initialStock, totalRequests-initialStock, success, soldOut)
	}

	finalStock, _ := rdb.Get(ctx, storage.StockKey(stressKey)).Int()
	state := service.SizeState(domain.SizeEntry{Quantity: finalStock}, cfg.Thresholds)
	fmt.Printf("Final Redis Stock: %d (%s)\n", finalStock, state)

	if finalStock == 0 {
		fmt.Println("PASS: stock depleted to 0")
	} else {
		fmt.Printf("FAIL: expected stock 0, got %d\n", finalStock)
	}
}
