package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"uniform-shop/internal/domain"
	"uniform-shop/internal/notify"
	"uniform-shop/internal/payment"
	"uniform-shop/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDecimal(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type inventoryKey struct {
	productID uuid.UUID
	size      string
}

// shopStore is an in-memory stand-in for the shop tables. mockTransactor
// snapshots it so a failed transaction leaves no trace.
type shopStore struct {
	mu        sync.Mutex
	products  map[uuid.UUID]domain.Product
	inventory map[inventoryKey]int
	orders    map[uuid.UUID]domain.Order
	items     map[uuid.UUID][]domain.OrderItem
	temps     map[string]domain.TempOrder

	failCreateItems error
}

func newShopStore() *shopStore {
	return &shopStore{
		products:  map[uuid.UUID]domain.Product{},
		inventory: map[inventoryKey]int{},
		orders:    map[uuid.UUID]domain.Order{},
		items:     map[uuid.UUID][]domain.OrderItem{},
		temps:     map[string]domain.TempOrder{},
	}
}

type shopSnapshot struct {
	products  map[uuid.UUID]domain.Product
	inventory map[inventoryKey]int
	orders    map[uuid.UUID]domain.Order
	items     map[uuid.UUID][]domain.OrderItem
	temps     map[string]domain.TempOrder
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *shopStore) snapshot() shopSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return shopSnapshot{
		products:  cloneMap(s.products),
		inventory: cloneMap(s.inventory),
		orders:    cloneMap(s.orders),
		items:     cloneMap(s.items),
		temps:     cloneMap(s.temps),
	}
}

func (s *shopStore) restore(snap shopSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = snap.products
	s.inventory = snap.inventory
	s.orders = snap.orders
	s.items = snap.items
	s.temps = snap.temps
}

func (s *shopStore) addProduct(name, price string) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     mustDecimal(price),
		Brand:     "Trutex",
		Condition: domain.ConditionNew,
		Gender:    domain.GenderUnisex,
		Category:  "tops",
		Images:    []string{"/uploads/" + name + ".jpg"},
	}
	s.products[p.ID] = p
	return p
}

func (s *shopStore) setStock(productID uuid.UUID, size string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inventory[inventoryKey{productID, size}] = qty
}

func (s *shopStore) stock(productID uuid.UUID, size string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, ok := s.inventory[inventoryKey{productID, size}]
	return q, ok
}

func (s *shopStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *shopStore) itemCount(orderID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items[orderID])
}

func (s *shopStore) storedOrder(id uuid.UUID) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	return o, ok
}

type mockTransactor struct {
	store *shopStore
}

func (m *mockTransactor) Transact(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type mockOrderRepository struct {
	store *shopStore
}

func (m *mockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.CheckoutID != nil {
		for _, o := range s.orders {
			if o.CheckoutID != nil && *o.CheckoutID == *order.CheckoutID {
				return repository.ErrOrderAlreadyExists
			}
		}
	}
	stored := *order
	stored.Items = nil
	s.orders[order.ID] = stored
	return nil
}

func (m *mockOrderRepository) CreateItems(ctx context.Context, items []domain.OrderItem) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateItems != nil {
		return s.failCreateItems
	}
	for _, item := range items {
		if _, ok := s.products[item.ProductID]; !ok {
			return fmt.Errorf("%w: %s", repository.ErrOrderItemInvalid, item.ProductID)
		}
		s.items[item.OrderID] = append(s.items[item.OrderID], item)
	}
	return nil
}

func (m *mockOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (m *mockOrderRepository) detailed(o domain.Order) *domain.Order {
	o.Items = []domain.OrderItemView{}
	for _, item := range m.store.items[o.ID] {
		p := m.store.products[item.ProductID]
		o.Items = append(o.Items, domain.OrderItemView{
			ProductID:    p.ID,
			Name:         p.Name,
			Price:        p.Price,
			Images:       p.Images,
			Brand:        p.Brand,
			Condition:    p.Condition,
			Quantity:     item.Quantity,
			SelectedSize: item.SelectedSize,
		})
	}
	return &o
}

func (m *mockOrderRepository) FindDetailed(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return m.detailed(o), nil
}

func (m *mockOrderRepository) FindByChatMessageID(ctx context.Context, messageID int64) (*domain.Order, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.ChatMessageID != nil && *o.ChatMessageID == messageID {
			return m.detailed(o), nil
		}
	}
	return nil, repository.ErrOrderNotFound
}

func (m *mockOrderRepository) List(ctx context.Context, status *domain.OrderStatus, page, pageSize int) ([]*domain.Order, int, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := []*domain.Order{}
	for _, o := range s.orders {
		if status == nil || o.Status == *status {
			orders = append(orders, m.detailed(o))
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	total := len(orders)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return orders[start:end], total, nil
}

func (m *mockOrderRepository) update(id uuid.UUID, fn func(o *domain.Order)) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	fn(&o)
	s.orders[id] = o
	return nil
}

func (m *mockOrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) error {
	return m.update(id, func(o *domain.Order) { o.Status = status })
}

func (m *mockOrderRepository) MarkChatNotified(ctx context.Context, id uuid.UUID, messageID int64, sentAt time.Time) error {
	return m.update(id, func(o *domain.Order) {
		o.ChatMessageID = &messageID
		o.NotificationSentAt = &sentAt
	})
}

func (m *mockOrderRepository) MarkEmailSent(ctx context.Context, id uuid.UUID, messageID string, sentAt time.Time) error {
	return m.update(id, func(o *domain.Order) {
		o.EmailMessageID = &messageID
		o.EmailSentAt = &sentAt
	})
}

func (m *mockOrderRepository) Delete(ctx context.Context, id uuid.UUID) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.orders, id)
	delete(s.items, id)
	return nil
}

type mockInventoryRepository struct {
	store *shopStore
}

func (m *mockInventoryRepository) Upsert(ctx context.Context, productID uuid.UUID, size string, quantity int) (*domain.InventoryEntry, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[productID]; !ok {
		return nil, repository.ErrProductNotFound
	}
	s.inventory[inventoryKey{productID, size}] = quantity
	return &domain.InventoryEntry{ID: uuid.New(), ProductID: productID, Size: size, Quantity: quantity}, nil
}

func (m *mockInventoryRepository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.InventoryEntry, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := []domain.InventoryEntry{}
	for k, q := range s.inventory {
		if k.productID == productID {
			entries = append(entries, domain.InventoryEntry{ProductID: productID, Size: k.size, Quantity: q})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Size < entries[j].Size })
	return entries, nil
}

func (m *mockInventoryRepository) Get(ctx context.Context, productID uuid.UUID, size string) (*domain.InventoryEntry, error) {
	q, ok := m.store.stock(productID, size)
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	return &domain.InventoryEntry{ProductID: productID, Size: size, Quantity: q}, nil
}

func (m *mockInventoryRepository) Decrement(ctx context.Context, productID uuid.UUID, size string, n int) (*repository.Adjustment, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey{productID, size}
	before, ok := s.inventory[key]
	if !ok {
		return nil, repository.ErrInventoryNotFound
	}
	after := before - n
	if after < 0 {
		after = 0
	}
	s.inventory[key] = after
	return &repository.Adjustment{Before: before, After: after}, nil
}

func (m *mockInventoryRepository) DeleteSize(ctx context.Context, productID uuid.UUID, size string) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inventoryKey{productID, size}
	if _, ok := s.inventory[key]; !ok {
		return repository.ErrInventoryNotFound
	}
	delete(s.inventory, key)
	return nil
}

type mockProductRepository struct {
	store *shopStore
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return repository.ErrProductNotFound
	}
	s.products[product.ID] = *product
	return nil
}

func (m *mockProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	for _, items := range s.items {
		for _, item := range items {
			if item.ProductID == id {
				return repository.ErrProductInUse
			}
		}
	}
	delete(s.products, id)
	return nil
}

func (m *mockProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return &p, nil
}

func (m *mockProductRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]*domain.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = &p
		}
	}
	return out, nil
}

func (m *mockProductRepository) List(ctx context.Context, filter domain.ProductFilter, page, pageSize int, sortBy string, sortOrder repository.SortOrder) ([]*domain.Product, int, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.Product{}
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		p := p
		out = append(out, &p)
	}
	return out, len(out), nil
}

type mockTempOrderRepository struct {
	store *shopStore
}

func (m *mockTempOrderRepository) Create(ctx context.Context, temp *domain.TempOrder) error {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.temps[temp.CheckoutID] = *temp
	return nil
}

func (m *mockTempOrderRepository) FindByCheckoutID(ctx context.Context, checkoutID string) (*domain.TempOrder, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.temps[checkoutID]
	if !ok {
		return nil, repository.ErrTempOrderNotFound
	}
	return &t, nil
}

func (m *mockTempOrderRepository) Consume(ctx context.Context, checkoutID string) (*domain.TempOrder, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.temps[checkoutID]
	if !ok {
		return nil, repository.ErrTempOrderNotFound
	}
	delete(s.temps, checkoutID)
	return &t, nil
}

func (m *mockTempOrderRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s := m.store
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.temps {
		if t.CreatedAt.Before(cutoff) {
			delete(s.temps, id)
			n++
		}
	}
	return n, nil
}

type fakeChat struct {
	mu      sync.Mutex
	nextID  int64
	sendErr error
	editErr error
	sent    []string
	edits   []chatEdit
	answers map[string]string
}

type chatEdit struct {
	messageID   int64
	text        string
	withActions bool
}

func newFakeChat() *fakeChat {
	return &fakeChat{nextID: 100, answers: map[string]string{}}
}

func (f *fakeChat) Send(ctx context.Context, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, text)
	return f.nextID, nil
}

func (f *fakeChat) Edit(ctx context.Context, messageID int64, text string, withActions bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.editErr != nil {
		return f.editErr
	}
	f.edits = append(f.edits, chatEdit{messageID, text, withActions})
	return nil
}

func (f *fakeChat) AnswerCallback(ctx context.Context, callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers[callbackID] = text
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	err  error
	sent []notify.Email
}

func (f *fakeMailer) Send(ctx context.Context, email notify.Email) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, email)
	return fmt.Sprintf("<%d@test>", len(f.sent)), nil
}

type countingNotifier struct {
	mu     sync.Mutex
	orders []*domain.Order
}

func (c *countingNotifier) Dispatch(ctx context.Context, order *domain.Order) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, order)
}

// fakeProvider signs nothing; any signature other than "valid" is rejected
type fakeProvider struct {
	sessions []payment.CheckoutRequest
	err      error
}

func (f *fakeProvider) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sessions = append(f.sessions, req)
	id := fmt.Sprintf("cs_test_%d", len(f.sessions))
	return &payment.Session{ID: id, URL: "https://checkout.example/" + id}, nil
}

func (f *fakeProvider) VerifyWebhook(payload []byte, signature string) (*payment.Event, error) {
	if signature != "valid" {
		return nil, payment.ErrInvalidSignature
	}
	var event payment.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, errors.New("bad payload")
	}
	return &event, nil
}
