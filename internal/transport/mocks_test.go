package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/repository"
	"uniform-shop/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// passThrough stands in for the auth, admin and rate limit middleware
func passThrough(next http.Handler) http.Handler { return next }

func jsonRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details struct {
			ValidationErrors []struct {
				Field   string `json:"field"`
				Message string `json:"message"`
			} `json:"validation_errors"`
		} `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func (e errorEnvelope) fields() []string {
	out := []string{}
	for _, v := range e.Error.Details.ValidationErrors {
		out = append(out, v.Field)
	}
	return out
}

type stubOrderService struct {
	created  []*domain.OrderInput
	createFn func(in *domain.OrderInput) (*domain.Order, error)
	orders   map[uuid.UUID]*domain.Order
	listed   *domain.OrderStatus
}

func newStubOrderService() *stubOrderService {
	return &stubOrderService{orders: make(map[uuid.UUID]*domain.Order)}
}

func (s *stubOrderService) CreateOrderAndNotify(ctx context.Context, in *domain.OrderInput) (*domain.Order, error) {
	s.created = append(s.created, in)
	if s.createFn != nil {
		return s.createFn(in)
	}
	return &domain.Order{ID: uuid.New(), CustomerName: in.CustomerName, Status: in.Status, PaymentMethod: in.PaymentMethod}, nil
}

func (s *stubOrderService) PlaceOrder(ctx context.Context, load service.OrderLoader) (*domain.Order, error) {
	in, err := load(ctx)
	if err != nil {
		return nil, err
	}
	return s.CreateOrderAndNotify(ctx, in)
}

func (s *stubOrderService) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (s *stubOrderService) ListOrders(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	s.listed = status
	out := []*domain.Order{}
	for _, o := range s.orders {
		if status == nil || o.Status == *status {
			out = append(out, o)
		}
	}
	return out, len(out), nil
}

func (s *stubOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*domain.Order, error) {
	next, err := domain.ParseOrderStatus(status)
	if err != nil {
		return nil, err
	}
	order, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	order.Status = next
	return order, nil
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

type stubProductService struct {
	products  map[uuid.UUID]*domain.Product
	inUse     map[uuid.UUID]bool
	inventory map[string]int
	lastList  domain.ProductFilter
	lastSort  string
}

func newStubProductService() *stubProductService {
	return &stubProductService{
		products:  make(map[uuid.UUID]*domain.Product),
		inUse:     make(map[uuid.UUID]bool),
		inventory: make(map[string]int),
	}
}

func (s *stubProductService) CreateProduct(ctx context.Context, in service.ProductInput) (*domain.Product, error) {
	p := &domain.Product{ID: uuid.New(), Name: in.Name, Price: in.Price, Condition: in.Condition, Gender: in.Gender, Category: in.Category, Images: in.Images}
	s.products[p.ID] = p
	return p, nil
}

func (s *stubProductService) UpdateProduct(ctx context.Context, id uuid.UUID, in service.ProductInput) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	p.Name = in.Name
	p.Price = in.Price
	return p, nil
}

func (s *stubProductService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if s.inUse[id] {
		return repository.ErrProductInUse
	}
	if _, ok := s.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *stubProductService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (s *stubProductService) ListProducts(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	s.lastList = filter
	s.lastSort = sortBy + " " + string(sortOrder)
	out := []*domain.Product{}
	for _, p := range s.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (s *stubProductService) SetInventory(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error) {
	if _, ok := s.products[productID]; !ok {
		return nil, repository.ErrProductNotFound
	}
	s.inventory[size] = quantity
	return &domain.InventoryEntry{ID: uuid.New(), ProductID: productID, Size: size, Quantity: quantity}, nil
}

func (s *stubProductService) RemoveSize(ctx context.Context, productID uuid.UUID, size string) error {
	if _, ok := s.inventory[size]; !ok {
		return repository.ErrInventoryNotFound
	}
	delete(s.inventory, size)
	return nil
}

type stubCheckoutService struct {
	sessionErr error
	webhookErr error
	inputs     []service.CheckoutInput
	payloads   [][]byte
	signatures []string
}

func (s *stubCheckoutService) CreateSession(ctx context.Context, in service.CheckoutInput) (*payment.Session, error) {
	s.inputs = append(s.inputs, in)
	if s.sessionErr != nil {
		return nil, s.sessionErr
	}
	return &payment.Session{ID: "cs_test_1", URL: "https://checkout.example.com/pay/cs_test_1"}, nil
}

func (s *stubCheckoutService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	s.payloads = append(s.payloads, payload)
	s.signatures = append(s.signatures, signature)
	return s.webhookErr
}

func (s *stubCheckoutService) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

type stubChatService struct {
	updates []tgbotapi.Update
	err     error
}

func (s *stubChatService) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	s.updates = append(s.updates, update)
	return s.err
}
