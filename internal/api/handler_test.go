package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sixcare-checkout/internal/gateway"
	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServerKey = "SB-Mid-server-testkey"

// memStore backs a full handler stack in memory. It implements
// service.Ledger, service.CartStore and CatalogReader.
type memStore struct {
	products     map[string]models.Product
	transactions map[string]*models.Transaction
	itemsByTx    map[int64][]models.TransactionItem
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{
		products:     make(map[string]models.Product),
		transactions: make(map[string]*models.Transaction),
		itemsByTx:    make(map[int64][]models.TransactionItem),
	}
}

func (m *memStore) GetProducts(_ context.Context) ([]models.Product, error) {
	out := make([]models.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []string) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetCartItemsByIDs(_ context.Context, _ string, _ []string) ([]models.CartItemDetail, error) {
	return nil, nil
}

func (m *memStore) CreateTransaction(_ context.Context, t *models.Transaction, items []models.TransactionItem) error {
	m.nextID++
	t.ID = m.nextID
	stored := *t
	m.transactions[t.OrderID] = &stored
	m.itemsByTx[t.ID] = items
	return nil
}

func (m *memStore) GetTransactionByOrderID(_ context.Context, orderID string) (*models.Transaction, error) {
	t, ok := m.transactions[orderID]
	if !ok {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (m *memStore) GetTransactionItems(_ context.Context, transactionID int64) ([]models.TransactionItemDetail, error) {
	var out []models.TransactionItemDetail
	for _, item := range m.itemsByTx[transactionID] {
		out = append(out, models.TransactionItemDetail{
			ProductID:   item.ProductID,
			ProductName: m.products[item.ProductID].Name,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out, nil
}

func (m *memStore) MarkPacking(_ context.Context, orderID string) (bool, error) {
	t, ok := m.transactions[orderID]
	if !ok || (t.Status != models.StatusAwaitingPayment && t.Status != models.StatusFailed) {
		return false, nil
	}
	t.Status = models.StatusPacking
	return true, nil
}

func (m *memStore) UpdateTransactionStatus(_ context.Context, orderID, status string) (bool, error) {
	t, ok := m.transactions[orderID]
	if !ok {
		return false, nil
	}
	t.Status = status
	return true, nil
}

func (m *memStore) ListTransactionsByUser(_ context.Context, userID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, t := range m.transactions {
		if t.UserID != nil && *t.UserID == userID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memStore) GetCartItem(_ context.Context, _, _ string) (*models.CartItem, error) {
	return nil, nil
}

func (m *memStore) InsertCartItem(_ context.Context, _ *models.CartItem) error { return nil }

func (m *memStore) UpdateCartItemQuantity(_ context.Context, _ string, _ int) error { return nil }

func (m *memStore) ListCartItems(_ context.Context, _ string) ([]models.CartItemDetail, error) {
	return nil, nil
}

func (m *memStore) DeleteCartItem(_ context.Context, _, _ string) error { return nil }

// memCache implements service.TokenCache
type memCache struct {
	tokens map[string][]byte
	seen   map[string]bool
}

func newMemCache() *memCache {
	return &memCache{tokens: make(map[string][]byte), seen: make(map[string]bool)}
}

func (c *memCache) CachePaymentToken(_ context.Context, orderID string, payload []byte, _ time.Duration) error {
	c.tokens[orderID] = payload
	return nil
}

func (c *memCache) GetPaymentToken(_ context.Context, orderID string) ([]byte, error) {
	return c.tokens[orderID], nil
}

func (c *memCache) SeenNotification(_ context.Context, key string) (bool, error) {
	return c.seen[key], nil
}

func (c *memCache) RememberNotification(_ context.Context, key string, _ time.Duration) error {
	c.seen[key] = true
	return nil
}

// memPublisher implements service.EventPublisher
type memPublisher struct {
	paid int
}

func (p *memPublisher) PublishOrderCreated(_ context.Context, _ *models.OrderCreatedEvent) error {
	return nil
}

func (p *memPublisher) PublishOrderPaid(_ context.Context, _ *models.OrderPaidEvent) error {
	p.paid++
	return nil
}

// stubGateway always issues the same token
type stubGateway struct {
	verify *gateway.SnapClient
}

func (g *stubGateway) RequestToken(_ context.Context, _ *gateway.TokenRequest) (*gateway.TokenResult, error) {
	return &gateway.TokenResult{Token: "snap-token", RedirectURL: "https://pay.example"}, nil
}

func (g *stubGateway) VerifyNotification(n *gateway.Notification) bool {
	return g.verify.VerifyNotification(n)
}

func newTestRouter(store *memStore) *gin.Engine {
	gin.SetMode(gin.TestMode)

	gw := &stubGateway{verify: gateway.NewSnapClient(testServerKey, "")}
	cache := newMemCache()
	events := &memPublisher{}

	checkout := service.NewCheckoutService(store, gw, cache, events, "http://shop.example", time.Minute)
	reconciler := service.NewReconciler(store, gw, cache, events)
	carts := service.NewCartService(store)

	router := gin.New()
	NewHandler(checkout, reconciler, carts, store).SetupRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func seedOrder(t *testing.T, router *gin.Engine, store *memStore) string {
	t.Helper()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 10}

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout", gin.H{
		"buyNowItems": []gin.H{{"id": "prod-a", "quantity": 2}},
		"full_name":   "Satrio Aji",
		"email":       "satrio@example.com",
		"address":     "Jl. Pemuda 1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp service.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.OrderID)
	assert.Equal(t, "snap-token", resp.Token)
	return resp.OrderID
}

func TestCheckoutEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	orderID := seedOrder(t, router, store)

	transaction := store.transactions[orderID]
	require.NotNil(t, transaction)
	assert.Equal(t, int64(20000), transaction.Total)
	assert.Equal(t, models.StatusAwaitingPayment, transaction.Status)
}

func TestCheckoutEndpointEmptySelection(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout", gin.H{
		"selectedIds": []string{},
		"buyNowItems": []gin.H{},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, store.transactions)
}

func TestWebhookEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	orderID := seedOrder(t, router, store)

	gatewayID := service.GatewayOrderID(orderID)
	payload := gin.H{
		"order_id":           gatewayID,
		"status_code":        "200",
		"gross_amount":       "20000.00",
		"transaction_status": "settlement",
		"fraud_status":       "accept",
		"signature_key":      gateway.Signature(gatewayID, "200", "20000.00", testServerKey),
	}

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.StatusPacking, store.transactions[orderID].Status)

	// Same delivery again still acks with 200
	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout/webhook", payload)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPacking, store.transactions[orderID].Status)
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	orderID := seedOrder(t, router, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout/webhook", gin.H{
		"order_id":           service.GatewayOrderID(orderID),
		"status_code":        "200",
		"gross_amount":       "20000.00",
		"transaction_status": "settlement",
		"signature_key":      "forged",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, models.StatusAwaitingPayment, store.transactions[orderID].Status)
}

func TestUpdateStatusEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	orderID := seedOrder(t, router, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout/update-status", gin.H{"order_id": orderID})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusPacking, store.transactions[orderID].Status)

	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout/update-status", gin.H{"order_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPaymentTokenEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	orderID := seedOrder(t, router, store)

	w := doJSON(t, router, http.MethodPost, "/api/v1/checkout/payment-token", gin.H{"order_id": orderID})
	assert.Equal(t, http.StatusOK, w.Code)

	var resp service.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "snap-token", resp.Token)

	w = doJSON(t, router, http.MethodPost, "/api/v1/checkout/payment-token", gin.H{"order_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminStatusEndpoint(t *testing.T) {
	store := newMemStore()
	router := newTestRouter(store)
	orderID := seedOrder(t, router, store)

	w := doJSON(t, router, http.MethodPatch, "/api/v1/admin/orders/"+orderID+"/status",
		gin.H{"status": models.StatusShipping})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusShipping, store.transactions[orderID].Status)

	w = doJSON(t, router, http.MethodPatch, "/api/v1/admin/orders/"+orderID+"/status",
		gin.H{"status": "Dikirim Besok"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProductEndpoint(t *testing.T) {
	store := newMemStore()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 10}
	router := newTestRouter(store)

	w := doJSON(t, router, http.MethodGet, "/api/v1/products/prod-a", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/products/prod-missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
