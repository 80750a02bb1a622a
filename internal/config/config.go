// Package config provides runtime configuration values for the service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

const (
	CatalogSourceMySQL = "mysql"
	CatalogSourceHTTP  = "http"
)

// Config holds configuration knobs for servers, stores and stock policy.
type Config struct {
	HTTPAddr        string
	GRPCAddr        string
	MySQLDSN        string
	RedisAddr       string
	CatalogSource   string
	CatalogURL      string
	CatalogToken    string
	KafkaBrokers    []string
	KafkaAlertTopic string
	Thresholds      domain.Thresholds
	PageSize        int
	SummaryCacheTTL time.Duration
	WorkerCount     int
	QueueSize       int
	ShutdownTimeout time.Duration
	LogLevel        string
	LogDevelopment  bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// posenv is atoienv restricted to positive values.
func posenv(key string, def int) int {
	if n := atoienv(key, def); n > 0 {
		return n
	}
	return def
}

func boolenv(key string, def bool) bool {
	b, err := strconv.ParseBool(getenv(key, ""))
	if err != nil {
		return def
	}
	return b
}

func durenvs(key string, defSec int) time.Duration {
	return time.Duration(posenv(key, defSec)) * time.Second
}

func listenv(key string) []string {
	var out []string
	for _, part := range strings.Split(getenv(key, ""), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load collects configuration from environment with defaults.
func Load() Config {
	source := strings.ToLower(getenv("CATALOG_SOURCE", CatalogSourceMySQL))
	if source != CatalogSourceHTTP {
		source = CatalogSourceMySQL
	}
	return Config{
		HTTPAddr:        getenv("HTTP_ADDR", ":8080"),
		GRPCAddr:        getenv("GRPC_ADDR", ":50051"),
		MySQLDSN:        getenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/storefront?parseTime=true"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		CatalogSource:   source,
		CatalogURL:      getenv("CATALOG_URL", "http://localhost:4000/api/products"),
		CatalogToken:    getenv("CATALOG_TOKEN", ""),
		KafkaBrokers:    listenv("KAFKA_BROKERS"),
		KafkaAlertTopic: getenv("KAFKA_ALERT_TOPIC", "stock-alerts"),
		Thresholds: domain.Thresholds{
			LowStock: posenv("LOW_STOCK_THRESHOLD", domain.DefaultLowStockThreshold),
			StockGTE: posenv("STOCK_GTE", domain.DefaultStockGTE),
		},
		PageSize:        posenv("PAGE_SIZE", domain.DefaultPageSize),
		SummaryCacheTTL: durenvs("SUMMARY_CACHE_TTL_S", 60),
		WorkerCount:     posenv("WORKER_COUNT", 10),
		QueueSize:       posenv("QUEUE_SIZE", 10000),
		ShutdownTimeout: durenvs("SHUTDOWN_TIMEOUT_S", 5),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogDevelopment:  boolenv("LOG_DEV", false),
	}
}

// PurchasesEnabled reports whether orders can be booked. Orders are written
// to the MySQL catalog, so a remote catalog leaves no rows to book against.
func (c Config) PurchasesEnabled() bool {
	return c.CatalogSource == CatalogSourceMySQL
}
