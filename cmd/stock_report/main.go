package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-stock/internal/adapter/catalog"
	"github.com/rl1809/storefront-stock/internal/adapter/storage"
	"github.com/rl1809/storefront-stock/internal/config"
	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/core/service"
	"github.com/rl1809/storefront-stock/internal/logger"
	"github.com/rl1809/storefront-stock/internal/port"
)

func main() {
	asJSON := flag.Bool("json", false, "print the dashboard as JSON")
	onlyLow := flag.Bool("low", false, "only list products with low-stock sizes")
	flag.Parse()

	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}

	err = run(cfg, log, os.Stdout, *asJSON, *onlyLow)
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "stock report: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, out io.Writer, asJSON, onlyLow bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	repo, closeRepo, err := openCatalog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer closeRepo()

	inventory := service.NewInventoryService(repo, nil, nil, service.InventoryConfig{
		Thresholds: cfg.Thresholds,
		PageSize:   cfg.PageSize,
	}, log)

	d, err := inventory.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("build dashboard: %w", err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	}
	return writeReport(out, d, onlyLow)
}

func openCatalog(ctx context.Context, cfg config.Config) (port.CatalogRepository, func(), error) {
	if cfg.CatalogSource == config.CatalogSourceHTTP {
		return catalog.NewHTTPClient(cfg.CatalogURL, cfg.CatalogToken, 30*time.Second), func() {}, nil
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	return storage.NewMySQLAdapter(db), func() { db.Close() }, nil
}

// writeReport prints one row per product followed by the dashboard totals.
func writeReport(out io.Writer, d domain.Dashboard, onlyLow bool) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tREMAINING\tSTATE\tLOW SIZES\tSOLD OUT SIZES")
	for _, sum := range d.Products {
		if onlyLow && !sum.HasLowStock {
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%d\t%s\t%s\t%d\n",
			sum.ProductID, sum.Name, sum.Active, sum.TotalRemaining, sum.State,
			lowSizes(sum), sum.SoldOutSizes)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	states := make([]string, 0, len(d.StateCounts))
	for state, n := range d.StateCounts {
		states = append(states, fmt.Sprintf("%s=%d", state, n))
	}
	sort.Strings(states)

	_, err := fmt.Fprintf(out, "\nproducts=%d remaining=%d low_stock=%d in_stock=%d (low<%d, in>=%d) %s\n",
		d.ProductCount, d.TotalRemaining, len(d.LowStockIDs), len(d.InStockIDs),
		d.Thresholds.LowStock, d.Thresholds.StockGTE, strings.Join(states, " "))
	return err
}

func lowSizes(sum domain.StockSummary) string {
	var labels []string
	for _, s := range sum.Sizes {
		if s.State == domain.SizeStateLow {
			labels = append(labels, s.Color+"/"+s.Size)
		}
	}
	if len(labels) == 0 {
		return "-"
	}
	return strings.Join(labels, ",")
}
