package transport

import (
	"net/http"
	"net/url"
	"strings"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/middleware"
	"uniform-shop/internal/repository"
	"uniform-shop/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload for creating or replacing a product
type ProductRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=5000"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Brand       string          `json:"brand" validate:"max=100"`
	Condition   string          `json:"condition" validate:"required,oneof=new used"`
	Gender      string          `json:"gender" validate:"required,oneof=boys girls unisex"`
	Category    string          `json:"category" validate:"required,max=100"`
	Images      []string        `json:"images" validate:"max=20"`
}

// InventoryRequest sets the stock count of one size
type InventoryRequest struct {
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

// ProductHandler serves the catalog and its admin endpoints
type ProductHandler struct {
	productService service.ProductService
	logger         *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(productService service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		productService: productService,
		logger:         logger,
	}
}

// RegisterRoutes registers catalog routes. adminOnly guards the write side.
func (h *ProductHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Get("/{id}", h.GetProduct)
	})

	r.Route("/api/admin/products", func(r chi.Router) {
		r.Use(adminOnly)
		r.Post("/", h.CreateProduct)
		r.Put("/{id}", h.UpdateProduct)
		r.Delete("/{id}", h.DeleteProduct)
		r.Put("/{id}/inventory/{size}", h.SetInventory)
		r.Delete("/{id}/inventory/{size}", h.RemoveSize)
	})
}

func (req *ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Brand:       req.Brand,
		Condition:   domain.Condition(req.Condition),
		Gender:      domain.Gender(req.Gender),
		Category:    req.Category,
		Images:      req.Images,
	}
}

// ListProducts handles the public catalog listing
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		Category:  q.Get("category"),
		Gender:    domain.Gender(q.Get("gender")),
		Condition: domain.Condition(q.Get("condition")),
		Brand:     q.Get("brand"),
		Search:    q.Get("q"),
	}
	page, pageSize := pagination(r)
	sortOrder := repository.SortOrder(strings.ToUpper(q.Get("sort_order")))

	products, total, err := h.productService.ListProducts(r.Context(), filter, page, pageSize, q.Get("sort_by"), sortOrder)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list products")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newPage(products, total, page, pageSize))
}

// GetProduct returns one product with its stock per size
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to get product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct adds a product to the catalog
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.CreateProduct(r.Context(), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

// UpdateProduct replaces the editable fields of a product
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Product validation failed", zap.Error(err))
		respondWithDecodeError(w, err)
		return
	}

	product, err := h.productService.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update product")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// DeleteProduct removes a product that no order refers to
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(r.Context(), id); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete product")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetInventory sets the quantity on hand for one size
func (h *ProductHandler) SetInventory(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	var req InventoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, err)
		return
	}

	entry, err := h.productService.SetInventory(r.Context(), id, sizeParam(r), *req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update inventory")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, entry)
}

// RemoveSize stops stocking a size
func (h *ProductHandler) RemoveSize(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, chi.URLParam(r, "id"), "product")
	if !ok {
		return
	}

	if err := h.productService.RemoveSize(r.Context(), id, sizeParam(r)); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to remove size")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// sizeParam returns the size path segment; sizes such as "Age 7-8" arrive escaped
func sizeParam(r *http.Request) string {
	raw := chi.URLParam(r, "size")
	if size, err := url.PathUnescape(raw); err == nil {
		return size
	}
	return raw
}
