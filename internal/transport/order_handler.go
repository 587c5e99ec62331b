package transport

import (
	"net/http"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/middleware"
	"uniform-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderLineRequest is one cart line
type OrderLineRequest struct {
	ProductID    string `json:"product_id" validate:"required,uuid"`
	Quantity     int    `json:"quantity" validate:"gte=1,lte=100"`
	SelectedSize string `json:"selected_size" validate:"required,max=50"`
}

// CreateOrderRequest places a pay-on-collection order. Online orders go
// through checkout instead.
type CreateOrderRequest struct {
	CustomerName  string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string             `json:"customer_email" validate:"required,email"`
	PaymentMethod string             `json:"payment_method" validate:"required,oneof=delivery in-person"`
	Total         decimal.Decimal    `json:"total" validate:"gte=0"`
	Items         []OrderLineRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// UpdateStatusRequest changes the status of an order
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderHandler serves order placement and administration
type OrderHandler struct {
	orderService service.OrderService
	logger       *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orderService service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes registers order routes. limit throttles order placement and
// adminOnly guards administration.
func (h *OrderHandler) RegisterRoutes(r chi.Router, limit, adminOnly func(http.Handler) http.Handler) {
	r.With(limit).Post("/api/orders", h.CreateOrder)

	r.Route("/api/admin/orders", func(r chi.Router) {
		r.Use(adminOnly)
		r.Get("/", h.ListOrders)
		r.Get("/{id}", h.GetOrder)
		r.Patch("/{id}/status", h.UpdateStatus)
		r.Delete("/{id}", h.DeleteOrder)
	})
}

func orderLines(items []OrderLineRequest) []domain.OrderLine {
	lines := make([]domain.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, domain.OrderLine{
			ProductID:    uuid.MustParse(item.ProductID),
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
		})
	}
	return lines
}

// CreateOrder writes the order and notifies the shop and the customer. The
// response carries whichever notification results were recorded.
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Order validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	order, err := h.orderService.CreateOrderAndNotify(r.Context(), &domain.OrderInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
		Total:         req.Total,
		Status:        domain.OrderStatusPending,
		Items:         orderLines(req.Items),
	})
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, order)
}

// ListOrders lists orders newest first, optionally by status
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	var status *domain.OrderStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		parsed, err := domain.ParseOrderStatus(raw)
		if err != nil {
			respondWithServiceError(w, h.logger, err, "failed to list orders")
			return
		}
		status = &parsed
	}
	page, pageSize := pagination(r)

	orders, total, err := h.orderService.ListOrders(r.Context(), status, page, pageSize)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list orders")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newPage(orders, total, page, pageSize))
}

// GetOrder returns the assembled order
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get order")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// UpdateStatus applies a status from the allow-list
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	order, err := h.orderService.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update order status")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, order)
}

// DeleteOrder removes an order and its items
func (h *OrderHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "order")
	if !ok {
		return
	}

	if err := h.orderService.DeleteOrder(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete order")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
