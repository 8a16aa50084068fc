package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"sixcare-checkout/internal/gateway"
	"sixcare-checkout/internal/models"
)

// fakeLedger is an in-memory Ledger for tests
type fakeLedger struct {
	mu           sync.Mutex
	products     map[string]models.Product
	cartItems    map[string]models.CartItemDetail
	cartOwners   map[string]string
	transactions map[string]*models.Transaction
	itemsByTx    map[int64][]models.TransactionItem
	nextID       int64

	failCreate bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		products:     make(map[string]models.Product),
		cartItems:    make(map[string]models.CartItemDetail),
		cartOwners:   make(map[string]string),
		transactions: make(map[string]*models.Transaction),
		itemsByTx:    make(map[int64][]models.TransactionItem),
	}
}

func (f *fakeLedger) addProduct(id, name string, price int64, stock int) {
	f.products[id] = models.Product{ID: id, Name: name, Price: price, Stock: stock}
}

func (f *fakeLedger) addCartItem(id, userID, productID string, quantity int) {
	p := f.products[productID]
	f.cartItems[id] = models.CartItemDetail{
		ID:          id,
		Quantity:    quantity,
		ProductID:   p.ID,
		ProductName: p.Name,
		Price:       p.Price,
		Stock:       p.Stock,
	}
	f.cartOwners[id] = userID
}

func (f *fakeLedger) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Product
	for _, id := range ids {
		if p, ok := f.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeLedger) GetCartItemsByIDs(_ context.Context, userID string, ids []string) ([]models.CartItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CartItemDetail
	for _, id := range ids {
		if item, ok := f.cartItems[id]; ok && f.cartOwners[id] == userID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeLedger) CreateTransaction(_ context.Context, t *models.Transaction, items []models.TransactionItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		// All-or-nothing: the real store rolls the order row back when an
		// item insert fails, so the fake records nothing at all.
		return errors.New("insert failed")
	}
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	stored := *t
	f.transactions[t.OrderID] = &stored
	for i := range items {
		items[i].TransactionID = t.ID
	}
	f.itemsByTx[t.ID] = append([]models.TransactionItem(nil), items...)
	return nil
}

func (f *fakeLedger) GetTransactionByOrderID(_ context.Context, orderID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[orderID]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (f *fakeLedger) GetTransactionItems(_ context.Context, transactionID int64) ([]models.TransactionItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.TransactionItemDetail
	for _, item := range f.itemsByTx[transactionID] {
		name := f.products[item.ProductID].Name
		out = append(out, models.TransactionItemDetail{
			ProductID:   item.ProductID,
			ProductName: name,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out, nil
}

func (f *fakeLedger) MarkPacking(_ context.Context, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[orderID]
	if !ok {
		return false, nil
	}
	if t.Status != models.StatusAwaitingPayment && t.Status != models.StatusFailed {
		return false, nil
	}
	t.Status = models.StatusPacking
	return true, nil
}

func (f *fakeLedger) UpdateTransactionStatus(_ context.Context, orderID, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.transactions[orderID]
	if !ok {
		return false, nil
	}
	t.Status = status
	return true, nil
}

func (f *fakeLedger) ListTransactionsByUser(_ context.Context, userID string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, t := range f.transactions {
		if t.UserID != nil && *t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

// fakeGateway records token requests and returns a canned result
type fakeGateway struct {
	mu       sync.Mutex
	requests []*gateway.TokenRequest
	result   *gateway.TokenResult
	err      error
	verify   bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		result: &gateway.TokenResult{Token: "snap-token-1", RedirectURL: "https://pay.example/v1"},
		verify: true,
	}
}

func (g *fakeGateway) RequestToken(_ context.Context, req *gateway.TokenRequest) (*gateway.TokenResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	g.requests = append(g.requests, req)
	return g.result, nil
}

func (g *fakeGateway) VerifyNotification(_ *gateway.Notification) bool {
	return g.verify
}

// fakeCache is an in-memory TokenCache
type fakeCache struct {
	mu     sync.Mutex
	tokens map[string][]byte
	seen   map[string]bool
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		tokens: make(map[string][]byte),
		seen:   make(map[string]bool),
	}
}

func (c *fakeCache) CachePaymentToken(_ context.Context, orderID string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[orderID] = payload
	return nil
}

func (c *fakeCache) GetPaymentToken(_ context.Context, orderID string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokens[orderID], nil
}

func (c *fakeCache) SeenNotification(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen[key], nil
}

func (c *fakeCache) RememberNotification(_ context.Context, key string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen[key] = true
	return nil
}

// fakePublisher records published events
type fakePublisher struct {
	mu      sync.Mutex
	created []*models.OrderCreatedEvent
	paid    []*models.OrderPaidEvent
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{}
}

func (p *fakePublisher) PublishOrderCreated(_ context.Context, event *models.OrderCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, event)
	return nil
}

func (p *fakePublisher) PublishOrderPaid(_ context.Context, event *models.OrderPaidEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paid = append(p.paid, event)
	return nil
}
