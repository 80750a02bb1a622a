package domain

// SizeEntry is the smallest sellable unit: one size within one color variant.
// Sold may exceed Quantity in raw data after returns or manual adjustments.
type SizeEntry struct {
	SizeLabel string `json:"size"`
	Quantity  int    `json:"quantity"`
	Sold      int    `json:"sold"`
	IsActive  bool   `json:"isActive"`
}

type Variant struct {
	Color    string      `json:"color"`
	IsActive bool        `json:"isActive"`
	Sizes    []SizeEntry `json:"sizes"`
}

type Product struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"isActive"`
	Variants []Variant `json:"variants"`
}

// SizeKey addresses a single size entry of a product.
type SizeKey struct {
	ProductID string `json:"product_id"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

// Find returns the size entry matching color and size label.
func (p Product) Find(color, size string) (SizeEntry, bool) {
	for _, v := range p.Variants {
		if v.Color != color {
			continue
		}
		for _, s := range v.Sizes {
			if s.SizeLabel == size {
				return s, true
			}
		}
	}
	return SizeEntry{}, false
}

// StockDelta is the net change of one size counter caused by a catalog edit.
type StockDelta struct {
	Key   SizeKey
	Delta int
}
