package domain

import "time"

const (
	DefaultLowStockThreshold = 5
	DefaultStockGTE          = 200
	DefaultPageSize          = 500
)

// Thresholds drives stock classification.
// A size is low when 0 < remaining < LowStock; a product is in stock
// (overstocked) when its total remaining is >= StockGTE.
type Thresholds struct {
	LowStock int `json:"low_stock_threshold"`
	StockGTE int `json:"stock_gte"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		LowStock: DefaultLowStockThreshold,
		StockGTE: DefaultStockGTE,
	}
}

type StockState string

const (
	StockStateSoldOut     StockState = "sold_out"
	StockStateLow         StockState = "low_stock"
	StockStateNormal      StockState = "normal"
	StockStateOverstocked StockState = "overstocked"
)

type SizeStockState string

const (
	SizeStateSoldOut SizeStockState = "sold_out"
	SizeStateLow     SizeStockState = "low"
	SizeStateHealthy SizeStockState = "healthy"
)

type SizeStock struct {
	Color     string         `json:"color"`
	Size      string         `json:"size"`
	Remaining int            `json:"remaining"`
	State     SizeStockState `json:"state"`
	Active    bool           `json:"active"`
}

// StockSummary is the read-side projection of one product.
type StockSummary struct {
	ProductID      string      `json:"product_id"`
	Name           string      `json:"name"`
	Active         bool        `json:"active"`
	TotalRemaining int         `json:"total_remaining"`
	HasLowStock    bool        `json:"has_low_stock"`
	InStock        bool        `json:"in_stock"`
	State          StockState  `json:"state"`
	LowSizes       int         `json:"low_sizes"`
	SoldOutSizes   int         `json:"sold_out_sizes"`
	Sizes          []SizeStock `json:"sizes"`
}

type Dashboard struct {
	Thresholds     Thresholds         `json:"thresholds"`
	ProductCount   int                `json:"product_count"`
	TotalRemaining int                `json:"total_remaining"`
	StateCounts    map[StockState]int `json:"state_counts"`
	LowStockIDs    []string           `json:"low_stock_ids"`
	InStockIDs     []string           `json:"in_stock_ids"`
	Products       []StockSummary     `json:"products"`
}

// StockAlert is emitted for products that need restocking attention.
type StockAlert struct {
	ProductID      string     `json:"product_id"`
	Name           string     `json:"name"`
	State          StockState `json:"state"`
	TotalRemaining int        `json:"total_remaining"`
	LowSizes       int        `json:"low_sizes"`
	SoldOutSizes   int        `json:"sold_out_sizes"`
	At             time.Time  `json:"at"`
}
