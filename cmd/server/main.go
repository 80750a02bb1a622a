package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/rl1809/storefront-stock/internal/adapter/catalog"
	"github.com/rl1809/storefront-stock/internal/adapter/handler"
	"github.com/rl1809/storefront-stock/internal/adapter/messaging"
	"github.com/rl1809/storefront-stock/internal/adapter/storage"
	"github.com/rl1809/storefront-stock/internal/config"
	"github.com/rl1809/storefront-stock/internal/core/service"
	"github.com/rl1809/storefront-stock/internal/logger"
	"github.com/rl1809/storefront-stock/internal/port"
)

const catalogTimeout = 30 * time.Second

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return fmt.Errorf("open mysql: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping mysql: %w", err)
	}
	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.Migrate(ctx); err != nil {
		return err
	}
	log.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	redisAdapter := storage.NewRedisAdapter(rdb)
	log.Info("connected to redis", zap.String("addr", cfg.RedisAddr))

	var (
		catalogRepo port.CatalogRepository
		writer      port.CatalogWriter
	)
	switch cfg.CatalogSource {
	case config.CatalogSourceHTTP:
		catalogRepo = catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogToken, catalogTimeout)
	default:
		catalogRepo = mysqlAdapter
		writer = mysqlAdapter
	}
	log.Info("catalog source selected", zap.String("source", cfg.CatalogSource))

	var publisher port.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, err := messaging.DialKafka(cfg.KafkaBrokers, cfg.KafkaAlertTopic)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
		log.Info("stock alerts enabled",
			zap.Strings("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.KafkaAlertTopic))
	}

	inventory := service.NewInventoryService(catalogRepo, redisAdapter, publisher, service.InventoryConfig{
		Thresholds: cfg.Thresholds,
		PageSize:   cfg.PageSize,
		CacheTTL:   cfg.SummaryCacheTTL,
	}, log.Named("inventory"))
	if writer != nil {
		inventory.WithCatalogWriter(writer)
	}

	var (
		orderService *service.OrderService
		wg           sync.WaitGroup
	)
	if cfg.PurchasesEnabled() {
		// Sync stock to Redis
		counters, err := inventory.SyncStockCounters(ctx)
		if err != nil {
			return fmt.Errorf("sync stock counters: %w", err)
		}
		log.Info("initialized stock counters", zap.Int("counters", counters))

		orderService = service.NewOrderService(redisAdapter, cfg.QueueSize, log.Named("orders"))

		// Start worker pool
		for i := 0; i < cfg.WorkerCount; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				orderService.RunWorker(id, mysqlAdapter)
			}(i)
		}
		log.Info("started workers", zap.Int("count", cfg.WorkerCount))
	} else {
		log.Warn("purchases disabled, orders are booked against the mysql catalog only",
			zap.String("source", cfg.CatalogSource))
	}

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: handler.NewHTTPHandler(inventory, orderService, log.Named("http")).Router(),
	}

	grpcServer := grpc.NewServer()
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(inventory, orderService, log.Named("grpc")))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("gRPC server listening", zap.String("addr", cfg.GRPCAddr))
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("HTTP shutdown", zap.Error(err))
		}
		log.Info("HTTP server stopped")

		grpcServer.GracefulStop()
		log.Info("gRPC server stopped")
		return nil
	})

	err = g.Wait()

	// Close order queue and wait for workers
	if orderService != nil {
		orderService.Close()
		wg.Wait()
		log.Info("workers stopped")
	}

	return err
}
