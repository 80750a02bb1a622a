package handler

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront-stock/internal/core/domain"
	"github.com/rl1809/storefront-stock/internal/core/service"
)

const inventoryServiceName = "storefront.Inventory"

type ProductStockRequest struct {
	ProductID string `json:"product_id"`
}

// ListStockRequest filters the dashboard: "low", "in" or empty for all.
type ListStockRequest struct {
	Filter string `json:"filter"`
}

type PurchaseResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	OrderID string `json:"order_id,omitempty"`
	Total   string `json:"total,omitempty"`
}

// InventoryServer is the server API of storefront.Inventory.
type InventoryServer interface {
	GetProductStock(context.Context, *ProductStockRequest) (*domain.StockSummary, error)
	ListStock(context.Context, *ListStockRequest) (*StockListResponse, error)
	Purchase(context.Context, *domain.RawOrder) (*PurchaseResponse, error)
}

type GRPCHandler struct {
	inventory    *service.InventoryService
	orderService *service.OrderService
	logger       *zap.Logger
}

func NewGRPCHandler(inventory *service.InventoryService, orderService *service.OrderService, logger *zap.Logger) *GRPCHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GRPCHandler{inventory: inventory, orderService: orderService, logger: logger}
}

func RegisterInventoryServer(s grpc.ServiceRegistrar, srv InventoryServer) {
	s.RegisterService(&inventoryServiceDesc, srv)
}

func (h *GRPCHandler) GetProductStock(ctx context.Context, req *ProductStockRequest) (*domain.StockSummary, error) {
	if req.ProductID == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	sum, err := h.inventory.ProductStock(ctx, req.ProductID)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &sum, nil
}

func (h *GRPCHandler) ListStock(ctx context.Context, req *ListStockRequest) (*StockListResponse, error) {
	var (
		products []domain.StockSummary
		err      error
	)
	switch req.Filter {
	case "low":
		products, err = h.inventory.LowStock(ctx)
	case "in":
		products, err = h.inventory.InStock(ctx)
	case "":
		var d domain.Dashboard
		d, err = h.inventory.Dashboard(ctx)
		products = d.Products
	default:
		return nil, status.Errorf(codes.InvalidArgument, "unknown filter %q", req.Filter)
	}
	if err != nil {
		return nil, h.toStatus(err)
	}

	return &StockListResponse{
		Thresholds: h.inventory.Thresholds(),
		Count:      len(products),
		Products:   products,
	}, nil
}

func (h *GRPCHandler) Purchase(ctx context.Context, req *domain.RawOrder) (*PurchaseResponse, error) {
	if h.orderService == nil {
		return nil, h.toStatus(service.ErrPurchasesDisabled)
	}

	order, err := h.orderService.Purchase(ctx, *req)
	if err != nil {
		return nil, h.toStatus(err)
	}

	return &PurchaseResponse{
		Success: true,
		Message: "order placed successfully",
		OrderID: order.ID,
		Total:   order.Total.StringFixed(2),
	}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	switch {
	case errors.Is(err, service.ErrProductNotFound):
		return status.Error(codes.NotFound, "product not found")
	case errors.Is(err, service.ErrDuplicateRequest):
		return status.Error(codes.AlreadyExists, "duplicate request")
	case errors.Is(err, service.ErrInsufficientStock):
		return status.Error(codes.FailedPrecondition, "sold out")
	case errors.Is(err, service.ErrInvalidOrder):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrPurchasesDisabled):
		return status.Error(codes.Unimplemented, "purchases disabled")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request cancelled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		h.logger.Error("grpc request failed", zap.Error(err))
		return status.Error(codes.Internal, "internal error")
	}
}

func getProductStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ProductStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).GetProductStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + inventoryServiceName + "/GetProductStock",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).GetProductStock(ctx, req.(*ProductStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func listStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).ListStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + inventoryServiceName + "/ListStock",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).ListStock(ctx, req.(*ListStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func purchaseHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(domain.RawOrder)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InventoryServer).Purchase(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + inventoryServiceName + "/Purchase",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InventoryServer).Purchase(ctx, req.(*domain.RawOrder))
	}
	return interceptor(ctx, in, info, handler)
}

var inventoryServiceDesc = grpc.ServiceDesc{
	ServiceName: inventoryServiceName,
	HandlerType: (*InventoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetProductStock", Handler: getProductStockHandler},
		{MethodName: "ListStock", Handler: listStockHandler},
		{MethodName: "Purchase", Handler: purchaseHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "storefront/inventory",
}
