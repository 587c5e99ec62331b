package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"

	"github.com/google/uuid"
)

var ErrInventoryNotFound = errors.New("inventory entry not found")

// Adjustment records the effect of one decrement
type Adjustment struct {
	Before int
	After  int
}

// InventoryRepository manages per-size stock counts
type InventoryRepository interface {
	Upsert(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.InventoryEntry, error)
	Get(ctx context.Context, productID uuid.UUID, size string) (*domain.InventoryEntry, error)
	// Decrement lowers the quantity by n, never below zero. It returns
	// ErrInventoryNotFound when no row exists for the pair.
	Decrement(ctx context.Context, productID uuid.UUID, size string, n int) (*Adjustment, error)
	DeleteSize(ctx context.Context, productID uuid.UUID, size string) error
}

type inventoryRepository struct {
	db *sql.DB
}

func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepository{db: db}
}

func (r *inventoryRepository) Upsert(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error) {
	query := `
		INSERT INTO inventory_entries (id, product_id, size, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id, size)
		DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id, product_id, size, quantity, updated_at
	`

	entry := &domain.InventoryEntry{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, uuid.New(), productID, size, quantity, time.Now()).Scan(
		&entry.ID,
		&entry.ProductID,
		&entry.Size,
		&entry.Quantity,
		&entry.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to upsert inventory: %w", err)
	}

	return entry, nil
}

func (r *inventoryRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.InventoryEntry, error) {
	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, `
		SELECT id, product_id, size, quantity, updated_at
		FROM inventory_entries
		WHERE product_id = $1
		ORDER BY size
	`, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}
	defer rows.Close()

	entries := []domain.InventoryEntry{}
	for rows.Next() {
		var e domain.InventoryEntry
		if err := rows.Scan(&e.ID, &e.ProductID, &e.Size, &e.Quantity, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan inventory entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating inventory: %w", err)
	}

	return entries, nil
}

func (r *inventoryRepository) Get(ctx context.Context, productID uuid.UUID, size string) (*domain.InventoryEntry, error) {
	e := &domain.InventoryEntry{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, product_id, size, quantity, updated_at
		FROM inventory_entries
		WHERE product_id = $1 AND size = $2
	`, productID, size).Scan(&e.ID, &e.ProductID, &e.Size, &e.Quantity, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	return e, nil
}

// Decrement runs as one statement so the row lock serialises concurrent
// checkouts of the same size and no decrement is lost.
func (r *inventoryRepository) Decrement(ctx context.Context, productID uuid.UUID, size string, n int) (*Adjustment, error) {
	query := `
		WITH current AS (
			SELECT id, quantity
			FROM inventory_entries
			WHERE product_id = $1 AND size = $2
			FOR UPDATE
		)
		UPDATE inventory_entries e
		SET quantity = GREATEST(current.quantity - $3, 0)
		FROM current
		WHERE e.id = current.id
		RETURNING current.quantity, e.quantity
	`

	adj := &Adjustment{}
	err := database.Conn(ctx, r.db).QueryRowContext(ctx, query, productID, size, n).Scan(&adj.Before, &adj.After)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInventoryNotFound
		}
		return nil, fmt.Errorf("failed to decrement inventory: %w", err)
	}

	return adj, nil
}

func (r *inventoryRepository) DeleteSize(ctx context.Context, productID uuid.UUID, size string) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`DELETE FROM inventory_entries WHERE product_id = $1 AND size = $2`, productID, size)
	if err != nil {
		return fmt.Errorf("failed to delete inventory entry: %w", err)
	}
	return expectOneRow(result, ErrInventoryNotFound)
}
