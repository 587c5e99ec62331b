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

var (
	ErrOrderNotFound      = errors.New("order not found")
	ErrOrderAlreadyExists = errors.New("order for this checkout already exists")
	ErrOrderItemInvalid   = errors.New("order item references an unknown product")
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	CreateItems(ctx context.Context, items []domain.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// FindDetailed returns the order with its items joined to a snapshot
	// of the product as it is now
	FindDetailed(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	FindByChatMessageID(ctx context.Context, messageID int64) (*domain.Order, error)
	List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error
	MarkChatNotified(ctx context.Context, id uuid.UUID, messageID int64, sentAt time.Time) error
	MarkEmailSent(ctx context.Context, id uuid.UUID, messageID string, sentAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

const orderColumns = `id, customer_name, customer_email, payment_method, total, status, checkout_id,
	chat_message_id, notification_sent_at, email_message_id, email_sent_at, created_at, updated_at`

// Create inserts the order row; a second order for one checkout id is ErrOrderAlreadyExists
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, customer_name, customer_email, payment_method, total, status, checkout_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := database.Conn(ctx, r.db).ExecContext(
		ctx,
		query,
		order.ID,
		order.CustomerName,
		order.CustomerEmail,
		order.PaymentMethod,
		order.Total,
		order.Status,
		order.CheckoutID,
		order.CreatedAt,
		order.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrOrderAlreadyExists
		}
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// CreateItems inserts the lines in the given order
func (r *orderRepository) CreateItems(ctx context.Context, items []domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, product_id, quantity, selected_size, position)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	conn := database.Conn(ctx, r.db)
	for i, item := range items {
		_, err := conn.ExecContext(ctx, query, item.ID, item.OrderID, item.ProductID, item.Quantity, item.SelectedSize, i)
		if err != nil {
			if isForeignKeyViolation(err) {
				return fmt.Errorf("%w: %s", ErrOrderItemInvalid, item.ProductID)
			}
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	return nil
}

// FindByID retrieves an order without its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(database.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	return order, nil
}

func (r *orderRepository) FindDetailed(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Items, err = r.listItems(ctx, order.ID); err != nil {
		return nil, err
	}

	return order, nil
}

// FindByChatMessageID retrieves the order a chat notification was sent for
func (r *orderRepository) FindByChatMessageID(ctx context.Context, messageID int64) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE chat_message_id = $1`

	order, err := scanOrder(database.Conn(ctx, r.db).QueryRowContext(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order by chat message: %w", err)
	}

	if order.Items, err = r.listItems(ctx, order.ID); err != nil {
		return nil, err
	}

	return order, nil
}

// List returns orders newest first, each with its items
func (r *orderRepository) List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	// Build the WHERE clause
	whereClause := ""
	args := []interface{}{}

	if status != nil {
		whereClause = "WHERE status = $1"
		args = append(args, *status)
	}

	conn := database.Conn(ctx, r.db)

	// Count total orders
	var total int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	// Build the main query with pagination
	query := fmt.Sprintf(`
		SELECT %s
		FROM orders
		%s
		ORDER BY created_at DESC, id
		LIMIT $%d OFFSET $%d
	`, orderColumns, whereClause, len(args)+1, len(args)+2)

	args = append(args, pageSize, (page-1)*pageSize)

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list orders: %w", err)
	}

	orders := []*domain.Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	rows.Close()

	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating orders: %w", err)
	}

	// Load items once the rows are closed
	for _, order := range orders {
		if order.Items, err = r.listItems(ctx, order.ID); err != nil {
			return nil, 0, err
		}
	}

	return orders, total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return expectOneRow(result, ErrOrderNotFound)
}

// MarkChatNotified stores the chat message id and send time
func (r *orderRepository) MarkChatNotified(ctx context.Context, id uuid.UUID, messageID int64, sentAt time.Time) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET chat_message_id = $2, notification_sent_at = $3 WHERE id = $1`, id, messageID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to record chat notification: %w", err)
	}
	return expectOneRow(result, ErrOrderNotFound)
}

// MarkEmailSent stores the confirmation Message-ID and send time
func (r *orderRepository) MarkEmailSent(ctx context.Context, id uuid.UUID, messageID string, sentAt time.Time) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET email_message_id = $2, email_sent_at = $3 WHERE id = $1`, id, messageID, sentAt)
	if err != nil {
		return fmt.Errorf("failed to record confirmation email: %w", err)
	}
	return expectOneRow(result, ErrOrderNotFound)
}

// Delete removes the order; its items go with it
func (r *orderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return expectOneRow(result, ErrOrderNotFound)
}

// listItems joins each line to the current product row
func (r *orderRepository) listItems(ctx context.Context, orderID uuid.UUID) ([]domain.OrderItemView, error) {
	query := `
		SELECT p.id, p.name, p.price, p.images, p.brand, p.condition, oi.quantity, oi.selected_size
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.position, oi.id
	`

	rows, err := database.Conn(ctx, r.db).QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItemView{}
	for rows.Next() {
		var item domain.OrderItemView
		var images []byte
		err := rows.Scan(
			&item.ProductID,
			&item.Name,
			&item.Price,
			&images,
			&item.Brand,
			&item.Condition,
			&item.Quantity,
			&item.SelectedSize,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		if item.Images, err = decodeImages(images); err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	order := &domain.Order{}
	err := row.Scan(
		&order.ID,
		&order.CustomerName,
		&order.CustomerEmail,
		&order.PaymentMethod,
		&order.Total,
		&order.Status,
		&order.CheckoutID,
		&order.ChatMessageID,
		&order.NotificationSentAt,
		&order.EmailMessageID,
		&order.EmailSentAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
