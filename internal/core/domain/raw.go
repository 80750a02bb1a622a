package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Upstream catalog records are entered through admin forms and arrive in
// several shapes. The Raw* types decode any of them without failing and
// Normalize maps them onto the canonical Product.

// maxCount bounds one counter so that summing many of them stays far from
// int overflow.
const maxCount = 1 << 30

// Count is a non-negative integer decoded from a number, a numeric string,
// null or anything else (which yields 0).
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	*c = Count(parseCount(b))
	return nil
}

func parseCount(b []byte) int {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return 0
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return 0
		}
		s = strings.TrimSpace(str)
	}
	// Hex floats and Inf spellings are not stock figures.
	if strings.ContainsAny(s, "xXiInN") {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= maxCount {
		return maxCount
	}
	return int(f)
}

// Label is a display name given either as a string, a number, or an
// embedded object carrying name/label/value.
type Label string

func (l *Label) UnmarshalJSON(b []byte) error {
	*l = ""
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err == nil {
			*l = Label(strings.TrimSpace(s))
		}
	case '{':
		var obj struct {
			Name  Label `json:"name"`
			Label Label `json:"label"`
			Value Label `json:"value"`
			ID    Label `json:"_id"`
		}
		if err := json.Unmarshal(b, &obj); err == nil {
			*l = firstLabel(obj.Name, obj.Label, obj.Value, obj.ID)
		}
	case '[':
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err == nil {
			*l = Label(b)
		}
	}
	return nil
}

func firstLabel(ls ...Label) Label {
	for _, l := range ls {
		if l != "" {
			return l
		}
	}
	return ""
}

// Flag is an optional boolean. Valid is false when the field was absent or
// unreadable.
type Flag struct {
	Valid bool
	Value bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	switch strings.ToLower(s) {
	case "true", "1", "yes":
		*f = Flag{Valid: true, Value: true}
	case "false", "0", "no":
		*f = Flag{Valid: true, Value: false}
	}
	return nil
}

// activeOf returns the first valid flag, defaulting to active.
func activeOf(flags ...Flag) bool {
	for _, f := range flags {
		if f.Valid {
			return f.Value
		}
	}
	return true
}

// List decodes a JSON array leniently: a non-array yields an empty list and
// elements that fail to decode are dropped.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(b []byte) error {
	*l = nil
	var items []json.RawMessage
	if err := json.Unmarshal(b, &items); err != nil {
		return nil
	}
	out := make(List[T], 0, len(items))
	for _, it := range items {
		if bytes.Equal(bytes.TrimSpace(it), []byte("null")) {
			continue
		}
		var v T
		if err := json.Unmarshal(it, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*l = out
	return nil
}

type RawSize struct {
	Size          Label `json:"size"`
	SizeLabel     Label `json:"sizeLabel"`
	Quantity      Count `json:"quantity"`
	Sold          Count `json:"sold"`
	IsActive      Flag  `json:"isActive"`
	IsActiveSnake Flag  `json:"is_active"`
}

func (r RawSize) Normalize() SizeEntry {
	return SizeEntry{
		SizeLabel: string(firstLabel(r.SizeLabel, r.Size)),
		Quantity:  int(r.Quantity),
		Sold:      int(r.Sold),
		IsActive:  activeOf(r.IsActive, r.IsActiveSnake),
	}
}

type RawVariant struct {
	Color         Label         `json:"color"`
	ColorName     Label         `json:"colorName"`
	IsActive      Flag          `json:"isActive"`
	IsActiveSnake Flag          `json:"is_active"`
	Sizes         List[RawSize] `json:"sizes"`
}

func (r RawVariant) Normalize() Variant {
	v := Variant{
		Color:    string(firstLabel(r.Color, r.ColorName)),
		IsActive: activeOf(r.IsActive, r.IsActiveSnake),
		Sizes:    make([]SizeEntry, 0, len(r.Sizes)),
	}
	for _, s := range r.Sizes {
		v.Sizes = append(v.Sizes, s.Normalize())
	}
	return v
}

type RawProduct struct {
	ID            Label            `json:"id"`
	MongoID       Label            `json:"_id"`
	Name          Label            `json:"name"`
	Title         Label            `json:"title"`
	IsActive      Flag             `json:"isActive"`
	IsActiveSnake Flag             `json:"is_active"`
	Variants      List[RawVariant] `json:"variants"`
}

func (r RawProduct) Normalize() Product {
	p := Product{
		ID:       string(firstLabel(r.ID, r.MongoID)),
		Name:     string(firstLabel(r.Name, r.Title)),
		IsActive: activeOf(r.IsActive, r.IsActiveSnake),
		Variants: make([]Variant, 0, len(r.Variants)),
	}
	for _, v := range r.Variants {
		p.Variants = append(p.Variants, v.Normalize())
	}
	return p
}

// NormalizeProducts maps a batch of raw records to canonical products.
func NormalizeProducts(raw []RawProduct) []Product {
	out := make([]Product, 0, len(raw))
	for _, r := range raw {
		out = append(out, r.Normalize())
	}
	return out
}
