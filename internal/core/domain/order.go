package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

type Order struct {
	ID        string
	RequestID string
	UserID    string
	ProductID string
	Color     string
	Size      string
	Quantity  int
	Total     decimal.Decimal
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Order) SizeKey() SizeKey {
	return SizeKey{ProductID: o.ProductID, Color: o.Color, Size: o.Size}
}

// RawOrder accepts the order shapes sent by the storefront and admin
// clients, which disagree on the name of the total field.
type RawOrder struct {
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Color     Label  `json:"color"`
	Size      Label  `json:"size"`
	Quantity  Count  `json:"quantity"`

	Total            json.RawMessage `json:"total"`
	TotalAmount      json.RawMessage `json:"totalAmount"`
	TotalAmountSnake json.RawMessage `json:"total_amount"`
	TotalPrice       json.RawMessage `json:"totalPrice"`
	Amount           json.RawMessage `json:"amount"`
}

// ResolveTotal returns the first present and parseable total in the order
// total, totalAmount, total_amount, totalPrice, amount. Zero if none.
func (r RawOrder) ResolveTotal() decimal.Decimal {
	for _, raw := range []json.RawMessage{r.Total, r.TotalAmount, r.TotalAmountSnake, r.TotalPrice, r.Amount} {
		if d, ok := parseMoney(raw); ok {
			return d
		}
	}
	return decimal.Zero
}

func parseMoney(raw json.RawMessage) (decimal.Decimal, bool) {
	b := bytes.TrimSpace(raw)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return decimal.Zero, false
	}
	s := string(b)
	if b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return decimal.Zero, false
		}
		s = strings.TrimSpace(s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Normalize builds a pending order. ID and timestamps are left to the caller.
func (r RawOrder) Normalize() Order {
	return Order{
		RequestID: strings.TrimSpace(r.RequestID),
		UserID:    strings.TrimSpace(r.UserID),
		ProductID: strings.TrimSpace(r.ProductID),
		Color:     string(r.Color),
		Size:      string(r.Size),
		Quantity:  int(r.Quantity),
		Total:     r.ResolveTotal(),
		Status:    OrderStatusPending,
	}
}
