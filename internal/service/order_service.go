package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"
	"uniform-shop/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderNotifier delivers a committed order to its notification channels.
// It must not fail the caller.
type OrderNotifier interface {
	Dispatch(ctx context.Context, order *domain.Order)
}

// OrderLoader supplies the order to write. It runs inside the order
// transaction, so anything it writes commits or rolls back with the order.
type OrderLoader func(ctx context.Context) (*domain.OrderInput, error)

// OrderService defines the interface for order placement and administration
type OrderService interface {
	// CreateOrderAndNotify validates in, writes the order with its items and
	// inventory adjustments in one transaction, then notifies the operator
	// and the customer. Notification failures never fail the call.
	CreateOrderAndNotify(ctx context.Context, in *domain.OrderInput) (*domain.Order, error)
	// PlaceOrder is CreateOrderAndNotify for callers that must consume other
	// state in the same transaction.
	PlaceOrder(ctx context.Context, load OrderLoader) (*domain.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	ListOrders(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	// UpdateStatus applies a status from the allow-list. A rejected value
	// leaves the stored status unchanged.
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

type orderService struct {
	tx            database.Transactor
	orderRepo     repository.OrderRepository
	inventoryRepo repository.InventoryRepository
	notifier      OrderNotifier
	logger        *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	tx database.Transactor,
	orderRepo repository.OrderRepository,
	inventoryRepo repository.InventoryRepository,
	notifier OrderNotifier,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		tx:            tx,
		orderRepo:     orderRepo,
		inventoryRepo: inventoryRepo,
		notifier:      notifier,
		logger:        logger,
	}
}

func (s *orderService) CreateOrderAndNotify(ctx context.Context, in *domain.OrderInput) (*domain.Order, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	return s.PlaceOrder(ctx, func(context.Context) (*domain.OrderInput, error) {
		return in, nil
	})
}

func (s *orderService) PlaceOrder(ctx context.Context, load OrderLoader) (*domain.Order, error) {
	var order *domain.Order

	err := s.tx.Transact(ctx, func(ctx context.Context) error {
		in, err := load(ctx)
		if err != nil {
			return err
		}
		if err := in.Validate(); err != nil {
			return err
		}

		order, err = s.writeOrder(ctx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.Int("items", len(order.Items)),
	)

	s.notifier.Dispatch(ctx, order)

	return order, nil
}

// writeOrder must run inside a transaction
func (s *orderService) writeOrder(ctx context.Context, in *domain.OrderInput) (*domain.Order, error) {
	now := time.Now().UTC()
	method, _ := domain.ParsePaymentMethod(string(in.PaymentMethod))

	order := &domain.Order{
		ID:            uuid.New(),
		CustomerName:  in.CustomerName,
		CustomerEmail: in.CustomerEmail,
		PaymentMethod: method,
		Total:         in.Total,
		Status:        in.Status,
		CheckoutID:    in.CheckoutID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, len(in.Items))
	for i, line := range in.Items {
		items[i] = domain.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			SelectedSize: line.SelectedSize,
		}
	}
	if err := s.orderRepo.CreateItems(ctx, items); err != nil {
		return nil, err
	}

	for _, line := range in.Items {
		if err := s.adjustInventory(ctx, order.ID, line); err != nil {
			return nil, err
		}
	}

	return s.orderRepo.FindDetailed(ctx, order.ID)
}

// adjustInventory takes stock for one line. Untracked sizes are skipped.
func (s *orderService) adjustInventory(ctx context.Context, orderID uuid.UUID, line domain.OrderLine) error {
	adj, err := s.inventoryRepo.Decrement(ctx, line.ProductID, line.SelectedSize, line.Quantity)
	if errors.Is(err, repository.ErrInventoryNotFound) {
		s.logger.Warn("No inventory entry for ordered size",
			zap.String("order_id", orderID.String()),
			zap.String("product_id", line.ProductID.String()),
			zap.String("size", line.SelectedSize),
		)
		return nil
	}
	if err != nil {
		return err
	}

	if adj.Before < line.Quantity {
		s.logger.Warn("Order exceeds stock on hand",
			zap.String("order_id", orderID.String()),
			zap.String("product_id", line.ProductID.String()),
			zap.String("size", line.SelectedSize),
			zap.Int("requested", line.Quantity),
			zap.Int("available", adj.Before),
		)
	}
	return nil
}

func (s *orderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return s.orderRepo.FindDetailed(ctx, id)
}

func (s *orderService) ListOrders(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.orderRepo.List(ctx, status, page, pageSize)
}

func (s *orderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, next); err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", id.String()),
		zap.String("status", string(next)),
	)

	order, err := s.orderRepo.FindDetailed(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to reload order: %w", err)
	}
	return order, nil
}

func (s *orderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if err := s.orderRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Order deleted", zap.String("order_id", id.String()))
	return nil
}
