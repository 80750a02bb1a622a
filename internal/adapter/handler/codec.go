package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc/encoding"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

// JSONCodecName is the content subtype clients pass with
// grpc.CallContentSubtype to reach the inventory service.
const JSONCodecName = "json"

var errNotProductList = errors.New("expected a product array or an object with products")

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func (jsonCodec) Name() string {
	return JSONCodecName
}

// decodeProducts accepts a bare product array or {"products": [...]}.
// Unreadable elements are dropped.
func decodeProducts(body []byte) ([]domain.RawProduct, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errNotProductList
	}

	switch body[0] {
	case '[':
		var list domain.List[domain.RawProduct]
		if err := json.Unmarshal(body, &list); err != nil {
			return nil, err
		}
		return list, nil
	case '{':
		var env struct {
			Products domain.List[domain.RawProduct] `json:"products"`
		}
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode products: %w", err)
		}
		return env.Products, nil
	default:
		return nil, errNotProductList
	}
}
