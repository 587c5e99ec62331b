package service

import (
	"context"
	"strings"
	"time"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductInput carries the editable catalog fields
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Brand       string
	Condition   domain.Condition
	Gender      domain.Gender
	Category    string
	Images      []string
}

// ProductService defines the interface for catalog management
type ProductService interface {
	CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	// GetProduct returns the product with its stock per size
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error)
	SetInventory(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error)
	RemoveSize(ctx context.Context, productID uuid.UUID, size string) error
}

type productService struct {
	productRepo   repository.ProductRepository
	inventoryRepo repository.InventoryRepository
	logger        *zap.Logger
}

// NewProductService creates a new instance of ProductService
func NewProductService(productRepo repository.ProductRepository, inventoryRepo repository.InventoryRepository, logger *zap.Logger) ProductService {
	return &productService{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		logger:        logger,
	}
}

// validate checks the catalog fields and reports every problem at once
func (in *ProductInput) validate() error {
	verr := &domain.ValidationError{}
	add := func(field, message string) {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: field, Message: message})
	}

	if strings.TrimSpace(in.Name) == "" {
		add("name", "is required")
	}
	if in.Price.IsNegative() {
		add("price", "must not be negative")
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		add("price", "must have at most two decimal places")
	}
	if !domain.ValidCondition(in.Condition) {
		add("condition", "must be new or used")
	}
	if !domain.ValidGender(in.Gender) {
		add("gender", "must be boys, girls or unisex")
	}
	if strings.TrimSpace(in.Category) == "" {
		add("category", "is required")
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

// apply copies the input onto p, trimming names
func (in *ProductInput) apply(p *domain.Product) {
	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.Brand = in.Brand
	p.Condition = in.Condition
	p.Gender = in.Gender
	p.Category = strings.TrimSpace(in.Category)
	p.Images = in.Images
	if p.Images == nil {
		p.Images = []string{}
	}
}

// CreateProduct adds a product with no stock
func (s *productService) CreateProduct(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Create product entity
	now := time.Now().UTC()
	product := &domain.Product{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	in.apply(product)

	// Save to database
	if err := s.productRepo.Create(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created", zap.String("product_id", product.ID.String()))
	return product, nil
}

func (s *productService) UpdateProduct(ctx context.Context, id uuid.UUID, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	// Load existing product
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(product)

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *productService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

func (s *productService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Attach stock per size
	if product.Inventory, err = s.inventoryRepo.ListByProduct(ctx, id); err != nil {
		return nil, err
	}
	return product, nil
}

// ListProducts pages through the catalog; out-of-range paging falls back to defaults
func (s *productService) ListProducts(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.productRepo.List(ctx, filter, page, pageSize, sortBy, sortOrder)
}

// SetInventory sets the stock of one size, creating the size if needed
func (s *productService) SetInventory(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error) {
	size = strings.TrimSpace(size)
	verr := &domain.ValidationError{}
	if size == "" {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "size", Message: "is required"})
	}
	if quantity < 0 {
		verr.Fields = append(verr.Fields, domain.FieldError{Field: "quantity", Message: "must not be negative"})
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}

	return s.inventoryRepo.Upsert(ctx, productID, size, quantity)
}

func (s *productService) RemoveSize(ctx context.Context, productID uuid.UUID, size string) error {
	return s.inventoryRepo.DeleteSize(ctx, productID, size)
}
