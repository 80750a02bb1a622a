package service

import (
	"github.com/rl1809/storefront-stock/internal/core/domain"
)

// Remaining is quantity minus sold, floored at zero.
func Remaining(s domain.SizeEntry) int {
	quantity := max(s.Quantity, 0)
	sold := max(s.Sold, 0)
	return max(quantity-sold, 0)
}

// TotalRemaining sums remaining stock over every size of every variant.
// Inactive variants and sizes are counted.
func TotalRemaining(p domain.Product) int {
	total := 0
	for _, v := range p.Variants {
		for _, s := range v.Sizes {
			total += Remaining(s)
		}
	}
	return total
}

func isLow(remaining int, th domain.Thresholds) bool {
	return remaining > 0 && remaining < th.LowStock
}

// HasLowStock reports whether any size has 0 < remaining < th.LowStock.
func HasLowStock(p domain.Product, th domain.Thresholds) bool {
	for _, v := range p.Variants {
		for _, s := range v.Sizes {
			if isLow(Remaining(s), th) {
				return true
			}
		}
	}
	return false
}

// IsInStock reports whether the product's total remaining reaches th.StockGTE.
func IsInStock(p domain.Product, th domain.Thresholds) bool {
	return TotalRemaining(p) >= th.StockGTE
}

func SizeState(s domain.SizeEntry, th domain.Thresholds) domain.SizeStockState {
	r := Remaining(s)
	switch {
	case r == 0:
		return domain.SizeStateSoldOut
	case isLow(r, th):
		return domain.SizeStateLow
	default:
		return domain.SizeStateHealthy
	}
}

func classify(total int, low bool, th domain.Thresholds) domain.StockState {
	switch {
	case total == 0:
		return domain.StockStateSoldOut
	case total >= th.StockGTE:
		return domain.StockStateOverstocked
	case low:
		return domain.StockStateLow
	default:
		return domain.StockStateNormal
	}
}

// Classify resolves the product to one stock state. A sold-out product wins
// over everything, then overstock, then any low size.
func Classify(p domain.Product, th domain.Thresholds) domain.StockState {
	return classify(TotalRemaining(p), HasLowStock(p, th), th)
}

// Summarize computes the full read-side projection in a single pass.
func Summarize(p domain.Product, th domain.Thresholds) domain.StockSummary {
	sum := domain.StockSummary{
		ProductID: p.ID,
		Name:      p.Name,
		Active:    p.IsActive,
		Sizes:     make([]domain.SizeStock, 0),
	}

	for _, v := range p.Variants {
		for _, s := range v.Sizes {
			r := Remaining(s)
			st := SizeState(s, th)
			switch st {
			case domain.SizeStateLow:
				sum.LowSizes++
			case domain.SizeStateSoldOut:
				sum.SoldOutSizes++
			}
			sum.TotalRemaining += r
			sum.Sizes = append(sum.Sizes, domain.SizeStock{
				Color:     v.Color,
				Size:      s.SizeLabel,
				Remaining: r,
				State:     st,
				Active:    v.IsActive && s.IsActive,
			})
		}
	}

	sum.HasLowStock = sum.LowSizes > 0
	sum.InStock = sum.TotalRemaining >= th.StockGTE
	sum.State = classify(sum.TotalRemaining, sum.HasLowStock, th)
	return sum
}

// BuildDashboard summarizes every product and aggregates per-state counts.
func BuildDashboard(products []domain.Product, th domain.Thresholds) domain.Dashboard {
	d := domain.Dashboard{
		Thresholds:  th,
		StateCounts: make(map[domain.StockState]int, 4),
		LowStockIDs: make([]string, 0),
		InStockIDs:  make([]string, 0),
		Products:    make([]domain.StockSummary, 0, len(products)),
	}

	for _, p := range products {
		sum := Summarize(p, th)
		d.ProductCount++
		d.TotalRemaining += sum.TotalRemaining
		d.StateCounts[sum.State]++
		if sum.HasLowStock {
			d.LowStockIDs = append(d.LowStockIDs, sum.ProductID)
		}
		if sum.InStock {
			d.InStockIDs = append(d.InStockIDs, sum.ProductID)
		}
		d.Products = append(d.Products, sum)
	}

	return d
}
