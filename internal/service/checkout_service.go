package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutInput is a cart submitted for online payment
type CheckoutInput struct {
	CustomerName  string
	CustomerEmail string
	Items         []domain.OrderLine
}

// CheckoutService turns carts into hosted payment sessions and paid sessions
// into orders
type CheckoutService interface {
	CreateSession(ctx context.Context, in CheckoutInput) (*payment.Session, error)
	// HandleWebhook verifies and applies a payment provider event. A session
	// whose order already exists is acknowledged without effect.
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	// PurgeExpired removes temp orders older than the retention period
	PurgeExpired(ctx context.Context) (int64, error)
}

// CheckoutConfig holds the redirect base and temp order retention
type CheckoutConfig struct {
	PublicURL    string
	TempOrderTTL time.Duration
}

type checkoutService struct {
	provider      payment.Provider
	orders        OrderService
	productRepo   repository.ProductRepository
	tempOrderRepo repository.TempOrderRepository
	cfg           CheckoutConfig
	logger        *zap.Logger
	now           func() time.Time
}

// NewCheckoutService creates a new instance of CheckoutService
func NewCheckoutService(
	provider payment.Provider,
	orders OrderService,
	productRepo repository.ProductRepository,
	tempOrderRepo repository.TempOrderRepository,
	cfg CheckoutConfig,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutService{
		provider:      provider,
		orders:        orders,
		productRepo:   productRepo,
		tempOrderRepo: tempOrderRepo,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// CreateSession prices the cart from the catalog, opens a hosted checkout and
// parks the order until the provider confirms payment
func (s *checkoutService) CreateSession(ctx context.Context, in CheckoutInput) (*payment.Session, error) {
	order := &domain.OrderInput{
		CustomerName:  strings.TrimSpace(in.CustomerName),
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		PaymentMethod: domain.PaymentMethodOnline,
		Status:        domain.OrderStatusPending,
		Items:         in.Items,
	}
	if err := order.Validate(); err != nil {
		return nil, err
	}

	// Load every product in the cart at once
	ids := make([]uuid.UUID, 0, len(in.Items))
	for _, line := range in.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Price lines from the catalog, never from the client
	verr := &domain.ValidationError{}
	lineItems := make([]payment.LineItem, 0, len(in.Items))
	total := decimal.Zero
	for i, line := range in.Items {
		product, ok := products[line.ProductID]
		if !ok {
			verr.Fields = append(verr.Fields, domain.FieldError{
				Field:   fmt.Sprintf("items[%d].product_id", i),
				Message: "unknown product",
			})
			continue
		}
		lineItems = append(lineItems, payment.LineItem{
			Name:       fmt.Sprintf("%s (%s)", product.Name, line.SelectedSize),
			UnitAmount: product.Price,
			Quantity:   line.Quantity,
		})
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	order.Total = total
	if err := order.Validate(); err != nil {
		return nil, err
	}

	// Open hosted checkout
	tempID := uuid.New()
	base := strings.TrimRight(s.cfg.PublicURL, "/")
	session, err := s.provider.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		LineItems:     lineItems,
		CustomerEmail: order.CustomerEmail,
		SuccessURL:    base + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:     base + "/cart",
		Metadata:      map[string]string{"temp_order_id": tempID.String()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	// Park the order until the webhook confirms payment
	details, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order snapshot: %w", err)
	}

	now := s.now().UTC()
	temp := &domain.TempOrder{
		ID:           tempID,
		CheckoutID:   session.ID,
		OrderDetails: details,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.tempOrderRepo.Create(ctx, temp); err != nil {
		return nil, err
	}

	s.logger.Info("Checkout session created",
		zap.String("checkout_id", session.ID),
		zap.String("temp_order_id", tempID.String()),
		zap.String("total", total.StringFixed(2)),
	)

	return session, nil
}

func (s *checkoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}

	switch event.Type {
	case payment.EventCheckoutCompleted, payment.EventCheckoutAsyncSucceeded:
	case payment.EventCheckoutAsyncFailed:
		// The temp order stays until the janitor purges it
		s.logger.Warn("Delayed checkout payment failed", zap.String("event_id", event.ID))
		return nil
	default:
		s.logger.Debug("Ignoring payment event", zap.String("event_id", event.ID), zap.String("type", event.Type))
		return nil
	}

	session, err := event.Session()
	if err != nil {
		return err
	}

	// A delayed payment method completes unpaid and confirms later
	if session.PaymentStatus == payment.PaymentStatusUnpaid {
		s.logger.Info("Checkout completed, awaiting delayed payment",
			zap.String("checkout_id", session.ID),
			zap.String("type", event.Type),
		)
		return nil
	}

	// Consume the temp order and place the paid order in one transaction
	order, err := s.orders.PlaceOrder(ctx, func(ctx context.Context) (*domain.OrderInput, error) {
		temp, err := s.tempOrderRepo.Consume(ctx, session.ID)
		if err != nil {
			return nil, err
		}

		in, err := temp.Details()
		if err != nil {
			return nil, fmt.Errorf("failed to decode temp order %s: %w", temp.ID, err)
		}
		in.PaymentMethod = domain.PaymentMethodOnline
		in.Status = domain.OrderStatusPaid
		in.CheckoutID = &session.ID
		return in, nil
	})
	if errors.Is(err, repository.ErrTempOrderNotFound) || errors.Is(err, repository.ErrOrderAlreadyExists) {
		s.logger.Info("Checkout already processed", zap.String("checkout_id", session.ID), zap.String("event_id", event.ID))
		return nil
	}
	if err != nil {
		return err
	}

	s.logger.Info("Online order paid",
		zap.String("order_id", order.ID.String()),
		zap.String("checkout_id", session.ID),
		zap.String("type", event.Type),
	)
	return nil
}

func (s *checkoutService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.cfg.TempOrderTTL)
	purged, err := s.tempOrderRepo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		s.logger.Info("Purged abandoned checkouts", zap.Int64("count", purged), zap.Time("cutoff", cutoff))
	}
	return purged, nil
}
