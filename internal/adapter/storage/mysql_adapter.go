package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrSizeNotFound   = errors.New("size not found")
	ErrNotEnoughStock = errors.New("not enough stock")
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id         VARCHAR(64)  NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL DEFAULT '',
		is_active  BOOLEAN      NOT NULL DEFAULT TRUE,
		created_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS product_variants (
		id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		product_id VARCHAR(64)  NOT NULL,
		color      VARCHAR(64)  NOT NULL DEFAULT '',
		is_active  BOOLEAN      NOT NULL DEFAULT TRUE,
		position   INT          NOT NULL DEFAULT 0,
		INDEX idx_variants_product (product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS product_sizes (
		id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
		variant_id BIGINT       NOT NULL,
		size_label VARCHAR(32)  NOT NULL DEFAULT '',
		quantity   INT          NOT NULL DEFAULT 0,
		sold       INT          NOT NULL DEFAULT 0,
		is_active  BOOLEAN      NOT NULL DEFAULT TRUE,
		position   INT          NOT NULL DEFAULT 0,
		version    INT          NOT NULL DEFAULT 0,
		updated_at DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
		INDEX idx_sizes_variant (variant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id         VARCHAR(64)    NOT NULL PRIMARY KEY,
		request_id VARCHAR(128)   NOT NULL,
		user_id    VARCHAR(64)    NOT NULL,
		product_id VARCHAR(64)    NOT NULL,
		color      VARCHAR(64)    NOT NULL DEFAULT '',
		size_label VARCHAR(32)    NOT NULL,
		quantity   INT            NOT NULL,
		total      DECIMAL(12, 2) NOT NULL DEFAULT 0,
		status     VARCHAR(16)    NOT NULL,
		created_at DATETIME       NOT NULL,
		updated_at DATETIME       NOT NULL,
		UNIQUE KEY uq_orders_request (request_id)
	)`,
}

type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// Migrate creates the catalog and order tables when they are missing.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT id, name, is_active
		FROM products
		ORDER BY id
		LIMIT ? OFFSET ?`,
		pageSize, (page-1)*pageSize,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.IsActive); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}

	if err := m.attachVariants(ctx, products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := m.db.QueryRowContext(ctx, `
		SELECT id, name, is_active
		FROM products WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.IsActive)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query product: %w", err)
	}

	products := []domain.Product{p}
	if err := m.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return &products[0], nil
}

// attachVariants loads variants and sizes for the given products in one
// query. A variant without sizes keeps an empty size list.
func (m *MySQLAdapter) attachVariants(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[string]int, len(products))
	args := make([]any, 0, len(products))
	for i, p := range products {
		index[p.ID] = i
		args = append(args, p.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(products)), ",")

	rows, err := m.db.QueryContext(ctx, `
		SELECT v.product_id, v.id, v.color, v.is_active,
		       s.size_label, s.quantity, s.sold, s.is_active
		FROM product_variants v
		LEFT JOIN product_sizes s ON s.variant_id = v.id
		WHERE v.product_id IN (`+placeholders+`)
		ORDER BY v.product_id, v.position, v.id, s.position, s.id`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("query variants: %w", err)
	}
	defer rows.Close()

	lastVariant := make(map[string]int64, len(products))
	for rows.Next() {
		var (
			productID  string
			variantID  int64
			color      string
			active     bool
			sizeLabel  sql.NullString
			quantity   sql.NullInt64
			sold       sql.NullInt64
			sizeActive sql.NullBool
		)
		if err := rows.Scan(&productID, &variantID, &color, &active,
			&sizeLabel, &quantity, &sold, &sizeActive); err != nil {
			return fmt.Errorf("scan variant: %w", err)
		}

		p := &products[index[productID]]
		if last, ok := lastVariant[productID]; !ok || last != variantID {
			p.Variants = append(p.Variants, domain.Variant{
				Color:    color,
				IsActive: active,
				Sizes:    []domain.SizeEntry{},
			})
			lastVariant[productID] = variantID
		}

		if !sizeLabel.Valid {
			continue
		}
		v := &p.Variants[len(p.Variants)-1]
		v.Sizes = append(v.Sizes, domain.SizeEntry{
			SizeLabel: sizeLabel.String,
			Quantity:  int(quantity.Int64),
			Sold:      int(sold.Int64),
			IsActive:  !sizeActive.Valid || sizeActive.Bool,
		})
	}
	return rows.Err()
}

// CreateOrder inserts the order and books its quantity against the size's
// sold counter in one transaction, guarded by the size row version.
func (m *MySQLAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var (
		sizeID         int64
		quantity, sold int
		version        int
	)
	err = tx.QueryRowContext(ctx, `
		SELECT s.id, s.quantity, s.sold, s.version
		FROM product_sizes s
		JOIN product_variants v ON v.id = s.variant_id
		WHERE v.product_id = ? AND v.color = ? AND s.size_label = ?
		ORDER BY (s.quantity - s.sold) DESC
		LIMIT 1`,
		order.ProductID, order.Color, order.Size,
	).Scan(&sizeID, &quantity, &sold, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSizeNotFound
	}
	if err != nil {
		return fmt.Errorf("query size: %w", err)
	}
	if quantity-sold < order.Quantity {
		return ErrNotEnoughStock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, request_id, user_id, product_id, color, size_label, quantity, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.RequestID, order.UserID, order.ProductID, order.Color, order.Size,
		order.Quantity, order.Total, order.Status, order.CreatedAt, order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE product_sizes
		SET sold = sold + ?, version = version + 1, updated_at = NOW()
		WHERE id = ? AND version = ?`,
		order.Quantity, sizeID, version,
	)
	if err != nil {
		return fmt.Errorf("update size: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOptimisticLock
	}

	return tx.Commit()
}

type storedSize struct {
	id       int64
	label    string
	quantity int
	sold     int
	taken    bool
}

func (s storedSize) remaining() int {
	return max(s.quantity-s.sold, 0)
}

type storedVariant struct {
	id    int64
	color string
	sizes []storedSize
	taken bool
}

// UpsertProduct stores a product with its variants and sizes. Existing rows
// are matched by color and size label in position order. A matched size keeps
// its sold counter and bumps its version; only quantity, flags and position
// come from the payload. The returned deltas are the change of remaining
// stock per size key.
func (m *MySQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) ([]domain.StockDelta, error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO products (id, name, is_active) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), is_active = VALUES(is_active), updated_at = NOW()`,
		p.ID, p.Name, p.IsActive,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert product: %w", err)
	}

	stored, err := loadStoredVariants(ctx, tx, p.ID)
	if err != nil {
		return nil, err
	}

	deltas := make(map[domain.SizeKey]int)
	for vi, v := range p.Variants {
		sv := takeVariant(stored, v.Color)

		var variantID int64
		if sv == nil {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO product_variants (product_id, color, is_active, position)
				VALUES (?, ?, ?, ?)`,
				p.ID, v.Color, v.IsActive, vi,
			)
			if err != nil {
				return nil, fmt.Errorf("insert variant: %w", err)
			}
			if variantID, err = res.LastInsertId(); err != nil {
				return nil, fmt.Errorf("variant id: %w", err)
			}
		} else {
			variantID = sv.id
			_, err := tx.ExecContext(ctx, `
				UPDATE product_variants SET is_active = ?, position = ? WHERE id = ?`,
				v.IsActive, vi, variantID,
			)
			if err != nil {
				return nil, fmt.Errorf("update variant: %w", err)
			}
		}

		for si, sz := range v.Sizes {
			key := domain.SizeKey{ProductID: p.ID, Color: v.Color, Size: sz.SizeLabel}

			old := takeSize(sv, sz.SizeLabel)
			if old == nil {
				_, err := tx.ExecContext(ctx, `
					INSERT INTO product_sizes (variant_id, size_label, quantity, sold, is_active, position)
					VALUES (?, ?, ?, ?, ?, ?)`,
					variantID, sz.SizeLabel, sz.Quantity, sz.Sold, sz.IsActive, si,
				)
				if err != nil {
					return nil, fmt.Errorf("insert size: %w", err)
				}
				deltas[key] += max(sz.Quantity-sz.Sold, 0)
				continue
			}

			_, err := tx.ExecContext(ctx, `
				UPDATE product_sizes
				SET quantity = ?, is_active = ?, position = ?, version = version + 1, updated_at = NOW()
				WHERE id = ?`,
				sz.Quantity, sz.IsActive, si, old.id,
			)
			if err != nil {
				return nil, fmt.Errorf("update size: %w", err)
			}
			deltas[key] += max(sz.Quantity-old.sold, 0) - old.remaining()
		}
	}

	// Rows the payload no longer names.
	for i := range stored {
		sv := &stored[i]
		for _, old := range sv.sizes {
			if old.taken {
				continue
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM product_sizes WHERE id = ?`, old.id); err != nil {
				return nil, fmt.Errorf("delete size: %w", err)
			}
			deltas[domain.SizeKey{ProductID: p.ID, Color: sv.color, Size: old.label}] -= old.remaining()
		}
		if !sv.taken {
			if _, err := tx.ExecContext(ctx, `DELETE FROM product_variants WHERE id = ?`, sv.id); err != nil {
				return nil, fmt.Errorf("delete variant: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return sortedDeltas(deltas), nil
}

func loadStoredVariants(ctx context.Context, tx *sql.Tx, productID string) ([]storedVariant, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT v.id, v.color, s.id, s.size_label, s.quantity, s.sold
		FROM product_variants v
		LEFT JOIN product_sizes s ON s.variant_id = v.id
		WHERE v.product_id = ?
		ORDER BY v.position, v.id, s.position, s.id
		FOR UPDATE`, productID)
	if err != nil {
		return nil, fmt.Errorf("query stored variants: %w", err)
	}
	defer rows.Close()

	var out []storedVariant
	for rows.Next() {
		var (
			variantID int64
			color     string
			sizeID    sql.NullInt64
			label     sql.NullString
			quantity  sql.NullInt64
			sold      sql.NullInt64
		)
		if err := rows.Scan(&variantID, &color, &sizeID, &label, &quantity, &sold); err != nil {
			return nil, fmt.Errorf("scan stored variant: %w", err)
		}

		if len(out) == 0 || out[len(out)-1].id != variantID {
			out = append(out, storedVariant{id: variantID, color: color})
		}
		if !sizeID.Valid {
			continue
		}
		v := &out[len(out)-1]
		v.sizes = append(v.sizes, storedSize{
			id:       sizeID.Int64,
			label:    label.String,
			quantity: int(quantity.Int64),
			sold:     int(sold.Int64),
		})
	}
	return out, rows.Err()
}

func takeVariant(stored []storedVariant, color string) *storedVariant {
	for i := range stored {
		if !stored[i].taken && stored[i].color == color {
			stored[i].taken = true
			return &stored[i]
		}
	}
	return nil
}

func takeSize(v *storedVariant, label string) *storedSize {
	if v == nil {
		return nil
	}
	for i := range v.sizes {
		if !v.sizes[i].taken && v.sizes[i].label == label {
			v.sizes[i].taken = true
			return &v.sizes[i]
		}
	}
	return nil
}

func sortedDeltas(deltas map[domain.SizeKey]int) []domain.StockDelta {
	out := make([]domain.StockDelta, 0, len(deltas))
	for key, d := range deltas {
		if d != 0 {
			out = append(out, domain.StockDelta{Key: key, Delta: d})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Key, out[j].Key
		if a.Color != b.Color {
			return a.Color < b.Color
		}
		return a.Size < b.Size
	})
	return out
}
