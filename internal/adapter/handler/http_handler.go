package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/core/service"
)

const requestIDHeader = "X-Request-Id"

// HTTPHandler serves the inventory API. A nil order service turns the
// purchase route into a 503.
type HTTPHandler struct {
	inventory    *service.InventoryService
	orderService *service.OrderService
	logger       *zap.Logger
}

type PurchaseHTTPResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Total   string `json:"total,omitempty"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type StockListResponse struct {
	Thresholds domain.Thresholds     `json:"thresholds"`
	Count      int                   `json:"count"`
	Products   []domain.StockSummary `json:"products"`
}

func NewHTTPHandler(inventory *service.InventoryService, orderService *service.OrderService, logger *zap.Logger) *HTTPHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{inventory: inventory, orderService: orderService, logger: logger}
}

// Router builds the gin engine with request id and access log middleware.
func (h *HTTPHandler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(h.logger))

	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")
	{
		inv := api.Group("/inventory")
		inv.GET("/dashboard", h.Dashboard)
		inv.GET("/products/:id", h.ProductStock)
		inv.GET("/low-stock", h.LowStock)
		inv.GET("/in-stock", h.InStock)
		inv.POST("/evaluate", h.Evaluate)

		api.POST("/purchase", h.Purchase)
		api.PUT("/admin/products/:id", h.SaveProduct)
	}
	return r
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDHeader, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func accessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(requestIDHeader)))
	}
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// (GET /api/inventory/dashboard)
func (h *HTTPHandler) Dashboard(c *gin.Context) {
	d, err := h.inventory.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// (GET /api/inventory/products/:id)
func (h *HTTPHandler) ProductStock(c *gin.Context) {
	sum, err := h.inventory.ProductStock(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// (GET /api/inventory/low-stock)
func (h *HTTPHandler) LowStock(c *gin.Context) {
	products, err := h.inventory.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StockListResponse{Thresholds: h.inventory.Thresholds(), Count: len(products), Products: products})
}

// (GET /api/inventory/in-stock)
func (h *HTTPHandler) InStock(c *gin.Context) {
	products, err := h.inventory.InStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, StockListResponse{Thresholds: h.inventory.Thresholds(), Count: len(products), Products: products})
}

// (POST /api/inventory/evaluate)
// Accepts a bare array of products or {"products": [...]}.
func (h *HTTPHandler) Evaluate(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	raw, err := decodeProducts(body)
	if err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	c.JSON(http.StatusOK, h.inventory.Evaluate(raw))
}

// (PUT /api/admin/products/:id)
func (h *HTTPHandler) SaveProduct(c *gin.Context) {
	var raw domain.RawProduct
	if err := c.ShouldBindJSON(&raw); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	raw.ID = domain.Label(c.Param("id"))

	sum, err := h.inventory.SaveProduct(c.Request.Context(), raw)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

// (POST /api/purchase)
func (h *HTTPHandler) Purchase(c *gin.Context) {
	var req domain.RawOrder
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, PurchaseHTTPResponse{
			Success: false,
			Message: "invalid request body",
		})
		return
	}

	if h.orderService == nil {
		status, message := statusOf(service.ErrPurchasesDisabled)
		c.JSON(status, PurchaseHTTPResponse{Success: false, Message: message})
		return
	}

	order, err := h.orderService.Purchase(c.Request.Context(), req)
	if err != nil {
		status, message := statusOf(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("purchase failed",
				zap.String("request_id", req.RequestID),
				zap.Error(err))
		}
		c.JSON(status, PurchaseHTTPResponse{
			Success: false,
			Message: message,
		})
		return
	}

	c.JSON(http.StatusOK, PurchaseHTTPResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: order.ID,
		Total:   order.Total.StringFixed(2),
	})
}

func (h *HTTPHandler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, RequestID: c.GetString(requestIDHeader)})
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	status, message := statusOf(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(requestIDHeader)),
			zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: message, RequestID: c.GetString(requestIDHeader)})
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate request"
	case errors.Is(err, service.ErrInsufficientStock):
		return http.StatusGone, "sold out"
	case errors.Is(err, service.ErrInvalidOrder), errors.Is(err, service.ErrInvalidProduct):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrCatalogReadOnly):
		return http.StatusMethodNotAllowed, "catalog is read-only"
	case errors.Is(err, service.ErrPurchasesDisabled):
		return http.StatusServiceUnavailable, "purchases disabled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
