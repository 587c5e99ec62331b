package transport

import (
	"errors"
	"io"
	"net/http"

	"uniform-shop/internal/middleware"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// maxWebhookBody caps provider webhook payloads
const maxWebhookBody = 1 << 20

// CheckoutRequest is a cart submitted for online payment
type CheckoutRequest struct {
	CustomerName  string             `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string             `json:"customer_email" validate:"required,email"`
	Items         []OrderLineRequest `json:"items" validate:"required,min=1,max=50,dive"`
}

// CheckoutResponse tells the storefront where to send the customer
type CheckoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// CheckoutHandler starts hosted payments and receives their outcome
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	logger          *zap.Logger
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkoutService service.CheckoutService, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		logger:          logger,
	}
}

// RegisterRoutes registers checkout routes. limit throttles session creation.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	r.With(limit).Post("/api/checkout/session", h.CreateSession)
	r.Post("/api/webhooks/stripe", h.StripeWebhook)
}

// CreateSession prices the cart from the catalog and opens a payment session
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Checkout validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	session, err := h.checkoutService.CreateSession(r.Context(), service.CheckoutInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		Items:         orderLines(req.Items),
	})
	if err != nil {
		status, _ := statusFor(err)
		if status == http.StatusInternalServerError {
			h.logger.Error("Failed to create checkout session", zap.Error(err))
			middleware.RespondWithError(w, http.StatusBadGateway, "payment provider unavailable")
			return
		}
		respondWithServiceError(w, h.logger, err, "failed to create checkout session")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CheckoutResponse{SessionID: session.ID, URL: session.URL})
}

// StripeWebhook applies a signed payment event. Failures other than a bad
// signature answer 500 so the provider redelivers.
func (h *CheckoutHandler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	err = h.checkoutService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payment.ErrInvalidSignature):
		h.logger.Warn("Rejected payment webhook", zap.Error(err), zap.String("remote_addr", r.RemoteAddr))
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		h.logger.Error("Failed to process payment webhook", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to process event")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]bool{"received": true})
}
