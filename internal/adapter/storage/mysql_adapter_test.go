package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/storefront?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := NewMySQLAdapter(db).Migrate(context.Background()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	return db
}

// resetProduct removes a product and its rows so reruns start from scratch.
func resetProduct(t *testing.T, adapter *MySQLAdapter, id string) {
	t.Helper()
	ctx := context.Background()
	stmts := []string{
		`DELETE s FROM product_sizes s JOIN product_variants v ON v.id = s.variant_id WHERE v.product_id = ?`,
		`DELETE FROM product_variants WHERE product_id = ?`,
		`DELETE FROM products WHERE id = ?`,
		`DELETE FROM orders WHERE product_id = ?`,
	}
	for _, stmt := range stmts {
		if _, err := adapter.db.ExecContext(ctx, stmt, id); err != nil {
			t.Fatalf("reset %s failed: %v", id, err)
		}
	}
}

func seedProduct(t *testing.T, adapter *MySQLAdapter, p domain.Product) {
	t.Helper()
	resetProduct(t, adapter, p.ID)
	if _, err := adapter.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("seed %s failed: %v", p.ID, err)
	}
}

func testOrder(productID string, quantity int) domain.Order {
	now := time.Now().UTC().Truncate(time.Second)
	return domain.Order{
		ID:        uuid.NewString(),
		RequestID: uuid.NewString(),
		UserID:    "test-user",
		ProductID: productID,
		Color:     "Black",
		Size:      "M",
		Quantity:  quantity,
		Total:     decimal.RequireFromString("29.90"),
		Status:    domain.OrderStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestGetProduct_RoundTrip(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	seedProduct(t, adapter, domain.Product{
		ID:       "mysql-test-tee",
		Name:     "Tee",
		IsActive: true,
		Variants: []domain.Variant{
			{Color: "Black", IsActive: true, Sizes: []domain.SizeEntry{
				{SizeLabel: "S", Quantity: 10, Sold: 8, IsActive: true},
				{SizeLabel: "M", Quantity: 20, Sold: 0, IsActive: false},
			}},
			{Color: "White", IsActive: false, Sizes: []domain.SizeEntry{}},
		},
	})

	p, err := adapter.GetProduct(ctx, "mysql-test-tee")
	if err != nil {
		t.Fatalf("GetProduct failed: %v", err)
	}
	if p == nil {
		t.Fatal("expected product, got nil")
	}
	if len(p.Variants) != 2 {
		t.Fatalf("expected 2 variants, got %d", len(p.Variants))
	}
	if len(p.Variants[0].Sizes) != 2 || p.Variants[0].Sizes[0].Sold != 8 {
		t.Errorf("unexpected sizes: %+v", p.Variants[0].Sizes)
	}
	if p.Variants[0].Sizes[1].IsActive {
		t.Error("expected M inactive")
	}
	if p.Variants[1].Color != "White" || len(p.Variants[1].Sizes) != 0 {
		t.Errorf("unexpected variant: %+v", p.Variants[1])
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	p, err := NewMySQLAdapter(db).GetProduct(context.Background(), "nonexistent-product")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p != nil {
		t.Error("expected nil for nonexistent product")
	}
}

func TestListProducts_Paging(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	seedProduct(t, adapter, domain.Product{ID: "mysql-test-a", Name: "A", IsActive: true})
	seedProduct(t, adapter, domain.Product{ID: "mysql-test-b", Name: "B", IsActive: true})

	first, total, err := adapter.ListProducts(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 product, got %d", len(first))
	}
	if total < 2 {
		t.Errorf("expected total >= 2, got %d", total)
	}

	second, _, err := adapter.ListProducts(ctx, 2, 1)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(second) != 1 || second[0].ID == first[0].ID {
		t.Errorf("expected a different product on page 2, got %+v", second)
	}
}

func TestCreateOrder_Success(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	seedProduct(t, adapter, domain.Product{
		ID: "mysql-test-order", Name: "Order item", IsActive: true,
		Variants: []domain.Variant{{Color: "Black", IsActive: true, Sizes: []domain.SizeEntry{
			{SizeLabel: "M", Quantity: 100, Sold: 0, IsActive: true},
		}}},
	})

	order := testOrder("mysql-test-order", 3)
	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// Verify order exists
	var count int
	db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE id = ?`, order.ID).Scan(&count)
	if count != 1 {
		t.Error("order not found in database")
	}

	// Verify sold counter moved
	p, _ := adapter.GetProduct(ctx, "mysql-test-order")
	if p == nil || p.Variants[0].Sizes[0].Sold != 3 {
		t.Errorf("expected sold 3, got %+v", p)
	}

	db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID)
}

func TestCreateOrder_NotEnoughStock(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	seedProduct(t, adapter, domain.Product{
		ID: "mysql-test-empty", Name: "Empty", IsActive: true,
		Variants: []domain.Variant{{Color: "Black", IsActive: true, Sizes: []domain.SizeEntry{
			{SizeLabel: "M", Quantity: 2, Sold: 2, IsActive: true},
		}}},
	})

	err := adapter.CreateOrder(ctx, testOrder("mysql-test-empty", 1))
	if !errors.Is(err, ErrNotEnoughStock) {
		t.Errorf("expected ErrNotEnoughStock, got: %v", err)
	}
}

func TestCreateOrder_SizeNotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	err := NewMySQLAdapter(db).CreateOrder(context.Background(), testOrder("nonexistent-product", 1))
	if !errors.Is(err, ErrSizeNotFound) {
		t.Errorf("expected ErrSizeNotFound, got: %v", err)
	}
}

func TestUpsertProduct_KeepsSoldAndReportsDeltas(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	ctx := context.Background()
	adapter := NewMySQLAdapter(db)

	seedProduct(t, adapter, domain.Product{
		ID: "mysql-test-upsert", Name: "Upsert", IsActive: true,
		Variants: []domain.Variant{{Color: "Black", IsActive: true, Sizes: []domain.SizeEntry{
			{SizeLabel: "M", Quantity: 10, IsActive: true},
			{SizeLabel: "L", Quantity: 4, IsActive: true},
		}}},
	})

	order := testOrder("mysql-test-upsert", 3)
	if err := adapter.CreateOrder(ctx, order); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	// A stale form: sold 0 on M, quantity raised to 12, L dropped, XL added.
	deltas, err := adapter.UpsertProduct(ctx, domain.Product{
		ID: "mysql-test-upsert", Name: "Upsert", IsActive: true,
		Variants: []domain.Variant{{Color: "Black", IsActive: true, Sizes: []domain.SizeEntry{
			{SizeLabel: "M", Quantity: 12, Sold: 0, IsActive: true},
			{SizeLabel: "XL", Quantity: 6, Sold: 1, IsActive: true},
		}}},
	})
	if err != nil {
		t.Fatalf("UpsertProduct failed: %v", err)
	}

	want := map[string]int{"M": 2, "L": -4, "XL": 5}
	if len(deltas) != len(want) {
		t.Fatalf("expected %d deltas, got %+v", len(want), deltas)
	}
	for _, d := range deltas {
		if want[d.Key.Size] != d.Delta {
			t.Errorf("size %s: expected delta %d, got %d", d.Key.Size, want[d.Key.Size], d.Delta)
		}
	}

	p, _ := adapter.GetProduct(ctx, "mysql-test-upsert")
	if p == nil || len(p.Variants[0].Sizes) != 2 {
		t.Fatalf("unexpected product: %+v", p)
	}
	if m := p.Variants[0].Sizes[0]; m.Quantity != 12 || m.Sold != 3 {
		t.Errorf("expected M quantity 12 sold 3, got %+v", m)
	}
}
