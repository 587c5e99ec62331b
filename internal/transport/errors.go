package transport

import (
	"errors"
	"net/http"
	"strconv"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/middleware"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/repository"
	"uniform-shop/internal/service"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// statusFor maps service and repository errors to an HTTP status and a
// message safe to show to callers
func statusFor(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, domain.ErrInvalidStatus),
		errors.Is(err, domain.ErrInvalidPaymentMethod):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, repository.ErrOrderItemInvalid):
		return http.StatusBadRequest, "order references an unknown product"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, service.ErrInvalidToken),
		errors.Is(err, repository.ErrRefreshTokenNotFound):
		return http.StatusUnauthorized, "invalid token"
	case errors.Is(err, service.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, payment.ErrInvalidSignature):
		return http.StatusBadRequest, "invalid signature"
	case errors.Is(err, repository.ErrOrderNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, repository.ErrProductNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, repository.ErrInventoryNotFound):
		return http.StatusNotFound, "size not stocked"
	case errors.Is(err, repository.ErrUserNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, repository.ErrUserAlreadyExists):
		return http.StatusConflict, "user with this email already exists"
	case errors.Is(err, repository.ErrProductInUse):
		return http.StatusConflict, "product is referenced by existing orders"
	case errors.Is(err, repository.ErrOrderAlreadyExists):
		return http.StatusConflict, "order already exists"
	case errors.Is(err, payment.ErrNotConfigured):
		return http.StatusServiceUnavailable, "online payment is not available"
	}
	return http.StatusInternalServerError, ""
}

// respondWithServiceError writes the error envelope for err. Unexpected
// errors are logged and reported with fallback.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		middleware.RespondWithDomainValidation(w, verr)
		return
	}

	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(fallback, zap.Error(err))
		middleware.RespondWithError(w, status, fallback)
		return
	}

	logger.Debug("Request rejected", zap.Int("status", status), zap.Error(err))
	middleware.RespondWithError(w, status, message)
}

// respondWithDecodeError reports a body that failed to decode or validate
func respondWithDecodeError(w http.ResponseWriter, err error) {
	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}
	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}

func parseID(w http.ResponseWriter, raw, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads page and page_size, falling back to 1 and 20
func pagination(r *http.Request) (int, int) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(r.URL.Query().Get("page_size"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

// Page wraps a listing with its paging metadata
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

func newPage[T any](items []T, total, page, pageSize int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
}
