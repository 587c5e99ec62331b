package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCollected OrderStatus = "collected"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every accepted status in lifecycle order
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusReady,
	OrderStatusCollected,
	OrderStatusCancelled,
}

// PaymentMethod says how the customer pays
type PaymentMethod string

const (
	PaymentMethodOnline   PaymentMethod = "online"
	PaymentMethodDelivery PaymentMethod = "delivery"
)

var (
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
)

// ParseOrderStatus checks s against the status allow-list. Matching is
// case-sensitive.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, status := range OrderStatuses {
		if string(status) == s {
			return status, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// ParsePaymentMethod accepts "in-person" as a synonym of delivery.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case string(PaymentMethodOnline):
		return PaymentMethodOnline, nil
	case string(PaymentMethodDelivery), "in-person":
		return PaymentMethodDelivery, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, s)
}

// Order represents a customer's confirmed purchase
type Order struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CustomerName       string          `json:"customer_name" db:"customer_name"`
	CustomerEmail      string          `json:"customer_email" db:"customer_email"`
	PaymentMethod      PaymentMethod   `json:"payment_method" db:"payment_method"`
	Total              decimal.Decimal `json:"total" db:"total"`
	Status             OrderStatus     `json:"status" db:"status"`
	CheckoutID         *string         `json:"checkout_id,omitempty" db:"checkout_id"`
	ChatMessageID      *int64          `json:"chat_message_id" db:"chat_message_id"`
	NotificationSentAt *time.Time      `json:"notification_sent_at" db:"notification_sent_at"`
	EmailMessageID     *string         `json:"email_message_id" db:"email_message_id"`
	EmailSentAt        *time.Time      `json:"email_sent_at" db:"email_sent_at"`
	Items              []OrderItemView `json:"items" db:"-"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderItem is one line of an order; immutable once written
type OrderItem struct {
	ID           uuid.UUID `json:"id" db:"id"`
	OrderID      uuid.UUID `json:"order_id" db:"order_id"`
	ProductID    uuid.UUID `json:"product_id" db:"product_id"`
	Quantity     int       `json:"quantity" db:"quantity"`
	SelectedSize string    `json:"selected_size" db:"selected_size"`
}

// OrderItemView is an order line joined with a snapshot of its product
type OrderItemView struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Images       []string        `json:"images"`
	Brand        string          `json:"brand"`
	Condition    Condition       `json:"condition"`
	Quantity     int             `json:"quantity"`
	SelectedSize string          `json:"selected_size"`
}

// LineTotal is price times quantity
func (v OrderItemView) LineTotal() decimal.Decimal {
	return v.Price.Mul(decimal.NewFromInt(int64(v.Quantity)))
}

// OrderLine is a requested cart entry
type OrderLine struct {
	ProductID    uuid.UUID `json:"product_id"`
	Quantity     int       `json:"quantity"`
	SelectedSize string    `json:"selected_size"`
}

// OrderInput carries everything needed to write an order
type OrderInput struct {
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Total         decimal.Decimal `json:"total"`
	Status        OrderStatus     `json:"status"`
	CheckoutID    *string         `json:"checkout_id,omitempty"`
	Items         []OrderLine     `json:"items"`
}

// FieldError describes one invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when input is rejected before any write
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// MaxOrderTotal is the largest total an order row can hold
var MaxOrderTotal = decimal.RequireFromString("99999999.99")

// Validate checks the input shape. Status defaults to pending when empty.
func (in *OrderInput) Validate() error {
	verr := &ValidationError{}

	if strings.TrimSpace(in.CustomerName) == "" {
		verr.add("customer_name", "is required")
	}
	if _, err := mail.ParseAddress(in.CustomerEmail); err != nil {
		verr.add("customer_email", "is not a valid email address")
	}
	if _, err := ParsePaymentMethod(string(in.PaymentMethod)); err != nil {
		verr.add("payment_method", "must be online or delivery")
	}
	// Totals are stored as NUMERIC(10,2)
	switch {
	case in.Total.IsNegative():
		verr.add("total", "must not be negative")
	case !in.Total.Equal(in.Total.Truncate(2)):
		verr.add("total", "must have at most 2 decimal places")
	case in.Total.GreaterThan(MaxOrderTotal):
		verr.add("total", "must not exceed "+MaxOrderTotal.StringFixed(2))
	}
	if in.Status == "" {
		in.Status = OrderStatusPending
	} else if _, err := ParseOrderStatus(string(in.Status)); err != nil {
		verr.add("status", "is not a known status")
	}

	if len(in.Items) == 0 {
		verr.add("items", "at least one item is required")
	}
	for i, item := range in.Items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.ProductID == uuid.Nil {
			verr.add(prefix+".product_id", "is required")
		}
		if item.Quantity < 1 {
			verr.add(prefix+".quantity", "must be at least 1")
		}
		if strings.TrimSpace(item.SelectedSize) == "" {
			verr.add(prefix+".selected_size", "is required")
		}
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}
