package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrProductInUse    = errors.New("product is referenced by existing orders")
)

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "ASC"
	SortOrderDesc SortOrder = "DESC"
)

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, price, brand, condition, gender, category, images, created_at, updated_at`

// Create inserts a new product into the database using parameterized queries
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO products (id, name, description, price, brand, condition, gender, category, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)
	`

	_, err = database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Brand,
		product.Condition,
		product.Gender,
		product.Category,
		images,
		product.CreatedAt,
		product.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// Update updates an existing product in the database using parameterized queries
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	images, err := encodeImages(product.Images)
	if err != nil {
		return err
	}

	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, brand = $5, condition = $6,
		    gender = $7, category = $8, images = $9::jsonb
		WHERE id = $1
		RETURNING updated_at
	`

	err = database.Conn(ctx, r.db).QueryRowContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.Brand,
		product.Condition,
		product.Gender,
		product.Category,
		images,
	).Scan(&product.UpdatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to update product: %w", err)
	}

	return nil
}

// Delete removes a product. Products that appear on an order are kept.
func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductInUse
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	return expectOneRow(result, ErrProductNotFound)
}

// FindByID retrieves a product by ID using parameterized queries
func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByIDs loads several products at once; missing ids are simply absent
// from the result
func (r *productRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	products := make(map[uuid.UUID]*domain.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM products WHERE id IN (%s)`, productColumns, strings.Join(placeholders, ", "))

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products[product.ID] = product
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// List retrieves products with optional filtering, pagination, and sorting
func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder SortOrder) ([]*domain.Product, int, error) {
	// Validate sort field to prevent SQL injection
	validSortFields := map[string]bool{
		"name":       true,
		"price":      true,
		"created_at": true,
	}

	if !validSortFields[sortBy] {
		sortBy = "created_at"
	}

	if sortOrder != SortOrderAsc && sortOrder != SortOrderDesc {
		sortOrder = SortOrderDesc
	}

	conditions := []string{}
	args := []interface{}{}

	addCondition := func(format string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(format, len(args)))
	}

	if filter.Category != "" {
		addCondition("category = $%d", filter.Category)
	}
	if filter.Gender != "" {
		addCondition("gender = $%d", filter.Gender)
	}
	if filter.Condition != "" {
		addCondition("condition = $%d", filter.Condition)
	}
	if filter.Brand != "" {
		addCondition("brand ILIKE $%d", filter.Brand)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	conn := database.Conn(ctx, r.db)

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products %s", whereClause)
	if err := conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`
		SELECT %s
		FROM products
		%s
		ORDER BY %s %s, id
		LIMIT $%d OFFSET $%d
	`, productColumns, whereClause, sortBy, sortOrder, len(args)+1, len(args)+2)

	args = append(args, pageSize, offset)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating products: %w", err)
	}

	return products, total, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var images []byte
	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&product.Price,
		&product.Brand,
		&product.Condition,
		&product.Gender,
		&product.Category,
		&images,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if product.Images, err = decodeImages(images); err != nil {
		return nil, err
	}
	return product, nil
}

func encodeImages(images []string) (string, error) {
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return "", fmt.Errorf("failed to encode images: %w", err)
	}
	return string(b), nil
}

func decodeImages(raw []byte) ([]string, error) {
	images := []string{}
	if len(raw) == 0 {
		return images, nil
	}
	if err := json.Unmarshal(raw, &images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}
	return images, nil
}
