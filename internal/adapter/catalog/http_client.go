package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/storefront-stock/internal/core/domain"
)

const maxBodyBytes = 64 << 20

var ErrUnexpectedStatus = errors.New("unexpected catalog status")

// HTTPClient reads the product-listing endpoint of the storefront backend.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

// listEnvelope covers the listing shapes the backend has returned over time.
type listEnvelope struct {
	Products   domain.List[domain.RawProduct] `json:"products"`
	Data       domain.List[domain.RawProduct] `json:"data"`
	Items      domain.List[domain.RawProduct] `json:"items"`
	Total      *domain.Count                  `json:"total"`
	TotalCount *domain.Count                  `json:"totalCount"`
	Count      *domain.Count                  `json:"count"`
}

func (e listEnvelope) products() domain.List[domain.RawProduct] {
	switch {
	case len(e.Products) > 0:
		return e.Products
	case len(e.Data) > 0:
		return e.Data
	default:
		return e.Items
	}
}

func (e listEnvelope) total() int {
	for _, c := range []*domain.Count{e.Total, e.TotalCount, e.Count} {
		if c != nil {
			return int(*c)
		}
	}
	return -1
}

func (c *HTTPClient) ListProducts(ctx context.Context, page, pageSize int) ([]domain.Product, int, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))

	body, status, err := c.get(ctx, c.baseURL+"?"+q.Encode())
	if err != nil {
		return nil, 0, err
	}
	if status != http.StatusOK {
		return nil, 0, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var raw domain.List[domain.RawProduct]
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, 0, fmt.Errorf("decode product list: %w", err)
		}
		return domain.NormalizeProducts(raw), -1, nil
	}

	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("decode product list: %w", err)
	}
	return domain.NormalizeProducts(env.products()), env.total(), nil
}

func (c *HTTPClient) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	body, status, err := c.get(ctx, c.baseURL+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, status)
	}

	var env struct {
		Product *domain.RawProduct `json:"product"`
		Data    *domain.RawProduct `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}

	var raw domain.RawProduct
	switch {
	case env.Product != nil:
		raw = *env.Product
	case env.Data != nil:
		raw = *env.Data
	default:
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
	}

	p := raw.Normalize()
	if p.ID == "" {
		p.ID = id
	}
	return &p, nil
}

func (c *HTTPClient) get(ctx context.Context, target string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("read catalog response: %w", err)
	}
	return body, resp.StatusCode, nil
}
