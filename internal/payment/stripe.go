// Package payment creates hosted checkout sessions and verifies the signed
// webhooks that confirm them.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"uniform-shop/internal/config"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"
	"go.uber.org/zap"
)

const (
	EventCheckoutCompleted = "checkout.session.completed"
	// EventCheckoutAsyncSucceeded confirms a delayed payment method, such as
	// a bank debit, after the session already completed unpaid
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
	EventCheckoutAsyncFailed    = "checkout.session.async_payment_failed"

	// PaymentStatusUnpaid is reported on completion while a delayed payment
	// is still pending
	PaymentStatusUnpaid = "unpaid"

	// SignatureTolerance is how old a webhook timestamp may be
	SignatureTolerance = 5 * time.Minute
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payment provider is not configured")
)

// LineItem is one priced entry on a checkout session
type LineItem struct {
	Name       string
	UnitAmount decimal.Decimal
	Quantity   int
}

// CheckoutRequest describes a session to open
type CheckoutRequest struct {
	LineItems     []LineItem
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// Session is a hosted checkout the customer is redirected to
type Session struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Event is a webhook delivery
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutSession is the object carried by checkout.session.* events
type CheckoutSession struct {
	ID            string            `json:"id"`
	CustomerEmail string            `json:"customer_email"`
	PaymentStatus string            `json:"payment_status"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// Session decodes the event object as a checkout session
func (e *Event) Session() (*CheckoutSession, error) {
	var s CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &s); err != nil {
		return nil, fmt.Errorf("failed to decode checkout session: %w", err)
	}
	return &s, nil
}

// Provider is the payment surface the checkout flow depends on
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error)
	VerifyWebhook(payload []byte, signatureHeader string) (*Event, error)
}

// StripeClient opens Stripe Checkout sessions and checks Stripe webhooks
type StripeClient struct {
	api           *client.API
	secretKey     string
	webhookSecret string
	currency      string
}

func NewStripeClient(cfg config.StripeConfig, logger *zap.Logger) *StripeClient {
	// Route API calls through the configured base URL and our logger
	backendConfig := &stripe.BackendConfig{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		LeveledLogger:     logger.Sugar(),
		MaxNetworkRetries: stripe.Int64(2),
	}
	if cfg.APIBaseURL != "" {
		backendConfig.URL = stripe.String(strings.TrimRight(cfg.APIBaseURL, "/"))
	}

	api := &client.API{}
	api.Init(cfg.SecretKey, stripe.NewBackendsWithConfig(backendConfig))

	return &StripeClient{
		api:           api,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		currency:      cfg.Currency,
	}
}

// minorUnits converts a decimal amount to the smallest currency unit
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func (c *StripeClient) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*Session, error) {
	if c.secretKey == "" {
		return nil, ErrNotConfigured
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	params.Context = ctx
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	// One price_data entry per cart line, priced in minor units
	for _, item := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(c.currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
				UnitAmount: stripe.Int64(minorUnits(item.UnitAmount)),
			},
			Quantity: stripe.Int64(int64(item.Quantity)),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	// Call Stripe
	cs, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	if cs.ID == "" || cs.URL == "" {
		return nil, errors.New("stripe returned an incomplete checkout session")
	}

	return &Session{ID: cs.ID, URL: cs.URL}, nil
}

// VerifyWebhook checks the Stripe-Signature header and decodes the event
func (c *StripeClient) VerifyWebhook(payload []byte, signatureHeader string) (*Event, error) {
	if c.webhookSecret == "" {
		return nil, ErrNotConfigured
	}

	// Check signature and timestamp tolerance
	verified, err := webhook.ConstructEventWithOptions(payload, signatureHeader, c.webhookSecret,
		webhook.ConstructEventOptions{
			Tolerance:                SignatureTolerance,
			IgnoreAPIVersionMismatch: true,
		})
	switch {
	case errors.Is(err, webhook.ErrNotSigned),
		errors.Is(err, webhook.ErrInvalidHeader),
		errors.Is(err, webhook.ErrNoValidSignature),
		errors.Is(err, webhook.ErrTooOld):
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case err != nil:
		return nil, fmt.Errorf("decode webhook event: %w", err)
	}

	event := &Event{ID: verified.ID, Type: string(verified.Type)}
	if verified.Data != nil {
		event.Data.Object = verified.Data.Raw
	}
	return event, nil
}
