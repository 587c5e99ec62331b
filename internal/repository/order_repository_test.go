package repository

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"uniform-shop/internal/database"
	"uniform-shop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrder() *domain.Order {
	now := time.Now()
	return &domain.Order{
		ID:            uuid.New(),
		CustomerName:  "Jane Parent",
		CustomerEmail: "jane@example.com",
		PaymentMethod: domain.PaymentMethodDelivery,
		Total:         decimal.RequireFromString("37.50"),
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderRepository_CreateAndReadDetailed(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	blazer := newTestProduct(t, "Blazer", "25.00")
	skirt := newTestProduct(t, "Skirt", "12.50")

	order := newTestOrder()
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.CreateItems(ctx, []domain.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: skirt.ID, Quantity: 1, SelectedSize: "26W"},
		{ID: uuid.New(), OrderID: order.ID, ProductID: blazer.ID, Quantity: 1, SelectedSize: "Age 11"},
	}))

	first, err := repo.FindDetailed(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, skirt.ID, first.Items[0].ProductID, "items keep insertion order")
	assert.Equal(t, "Skirt", first.Items[0].Name)
	assert.True(t, first.Items[1].Price.Equal(decimal.RequireFromString("25.00")))
	assert.Nil(t, first.ChatMessageID)
	assert.Nil(t, first.EmailSentAt)

	second, err := repo.FindDetailed(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, reflect.DeepEqual(first, second), "repeated reads must be identical")
}

func TestOrderRepository_TransactionRollsBackOrderOnItemFailure(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testDB)
	tx := database.NewTransactor(testDB)

	product := newTestProduct(t, "Shorts", "9.00")
	order := newTestOrder()

	err := tx.Transact(ctx, func(ctx context.Context) error {
		if err := repo.Create(ctx, order); err != nil {
			return err
		}
		return repo.CreateItems(ctx, []domain.OrderItem{
			{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, Quantity: 1, SelectedSize: "S"},
			{ID: uuid.New(), OrderID: order.ID, ProductID: uuid.New(), Quantity: 1, SelectedSize: "M"},
		})
	})
	require.ErrorIs(t, err, ErrOrderItemInvalid)

	_, err = repo.FindByID(ctx, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	var items int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&items))
	assert.Zero(t, items)
}

func TestOrderRepository_NotificationFieldsAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	product := newTestProduct(t, "Cardigan", "18.00")
	order := newTestOrder()
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.CreateItems(ctx, []domain.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, Quantity: 2, SelectedSize: "Age 9"},
	}))

	messageID := time.Now().UnixNano()
	sentAt := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.MarkChatNotified(ctx, order.ID, messageID, sentAt))
	require.NoError(t, repo.MarkEmailSent(ctx, order.ID, "<abc@uniform-shop>", sentAt))

	found, err := repo.FindByChatMessageID(ctx, messageID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)
	require.NotNil(t, found.ChatMessageID)
	assert.Equal(t, messageID, *found.ChatMessageID)
	require.NotNil(t, found.EmailMessageID)
	assert.Equal(t, "<abc@uniform-shop>", *found.EmailMessageID)
	require.NotNil(t, found.NotificationSentAt)
	assert.True(t, found.NotificationSentAt.Equal(sentAt))
	assert.Len(t, found.Items, 1)

	_, err = repo.FindByChatMessageID(ctx, messageID+1)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderRepository_UpdateStatusAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	product := newTestProduct(t, "Jumper", "14.00")
	order := newTestOrder()
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.CreateItems(ctx, []domain.OrderItem{
		{ID: uuid.New(), OrderID: order.ID, ProductID: product.ID, Quantity: 1, SelectedSize: "L"},
	}))

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusReady))
	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusReady, got.Status)

	status := domain.OrderStatusReady
	orders, total, err := repo.List(ctx, &status, 1, 100)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, total, 1)
	for _, o := range orders {
		assert.Equal(t, domain.OrderStatusReady, o.Status)
	}

	require.NoError(t, repo.Delete(ctx, order.ID))
	var items int
	require.NoError(t, testDB.QueryRow(`SELECT COUNT(*) FROM order_items WHERE order_id = $1`, order.ID).Scan(&items))
	assert.Zero(t, items, "items are removed with their order")

	assert.ErrorIs(t, repo.Delete(ctx, order.ID), ErrOrderNotFound)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPaid), ErrOrderNotFound)
}

func TestOrderRepository_DuplicateCheckout(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository(testDB)

	checkoutID := "cs_test_" + uuid.NewString()
	first := newTestOrder()
	first.CheckoutID = &checkoutID
	require.NoError(t, repo.Create(ctx, first))

	second := newTestOrder()
	second.CheckoutID = &checkoutID
	err := repo.Create(ctx, second)
	assert.True(t, errors.Is(err, ErrOrderAlreadyExists), "got %v", err)
}
