package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"
)

var ErrTempOrderNotFound = errors.New("temp order not found")

// TempOrderRepository holds carts awaiting payment confirmation
type TempOrderRepository interface {
	Create(ctx context.Context, temp *domain.TempOrder) error
	FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.TempOrder, error)
	// Consume deletes and returns the row. A second call for the same
	// checkout returns ErrTempOrderNotFound.
	Consume(ctx context.Context, checkoutID string) (*domain.TempOrder, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type tempOrderRepository struct {
	db *sql.DB
}

// NewTempOrderRepository creates a new instance of TempOrderRepository
func NewTempOrderRepository(db *sql.DB) TempOrderRepository {
	return &tempOrderRepository{db: db}
}

// Create stores the cart snapshot keyed by checkout id
func (r *tempOrderRepository) Create(ctx context.Context, temp *domain.TempOrder) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO temp_orders (id, checkout_id, order_details, created_at, updated_at)
		VALUES ($1, $2, $3::jsonb, $4, $5)
	`, temp.ID, temp.CheckoutID, string(temp.OrderDetails), temp.CreatedAt, temp.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create temp order: %w", err)
	}
	return nil
}

func (r *tempOrderRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.TempOrder, error) {
	return r.scanOne(ctx, `
		SELECT id, checkout_id, order_details, created_at, updated_at
		FROM temp_orders
		WHERE checkout_id = $1
	`, checkoutID)
}

func (r *tempOrderRepository) Consume(ctx context.Context, checkoutID string) (*domain.TempOrder, error) {
	return r.scanOne(ctx, `
		DELETE FROM temp_orders
		WHERE checkout_id = $1
		RETURNING id, checkout_id, order_details, created_at, updated_at
	`, checkoutID)
}

// DeleteOlderThan purges abandoned checkouts and reports how many went
func (r *tempOrderRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM temp_orders WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge temp orders: %w", err)
	}
	return result.RowsAffected()
}

func (r *tempOrderRepository) scanOne(ctx context.Context, query, checkoutID string) (*domain.TempOrder, error) {
	temp := &domain.TempOrder{}
	var details []byte
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, checkoutID).Scan(
		&temp.ID,
		&temp.CheckoutID,
		&details,
		&temp.CreatedAt,
		&temp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTempOrderNotFound
		}
		return nil, fmt.Errorf("failed to load temp order: %w", err)
	}
	temp.OrderDetails = details
	return temp, nil
}
