package service

import (
	"context"
	"sync"
	"testing"

	"sixcare-checkout/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCartStore is an in-memory CartStore
type fakeCartStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	items    map[string]*models.CartItem
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		products: make(map[string]models.Product),
		items:    make(map[string]*models.CartItem),
	}
}

func (f *fakeCartStore) GetProductByID(_ context.Context, id string) (*models.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (f *fakeCartStore) GetCartItem(_ context.Context, userID, productID string) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.UserID == userID && item.ProductID == productID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCartStore) InsertCartItem(_ context.Context, item *models.CartItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *item
	f.items[item.ID] = &stored
	return nil
}

func (f *fakeCartStore) UpdateCartItemQuantity(_ context.Context, id string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[id]; ok {
		item.Quantity = quantity
	}
	return nil
}

func (f *fakeCartStore) ListCartItems(_ context.Context, userID string) ([]models.CartItemDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CartItemDetail
	for _, item := range f.items {
		if item.UserID != userID {
			continue
		}
		p := f.products[item.ProductID]
		out = append(out, models.CartItemDetail{
			ID:          item.ID,
			Quantity:    item.Quantity,
			ProductID:   p.ID,
			ProductName: p.Name,
			Price:       p.Price,
			Stock:       p.Stock,
		})
	}
	return out, nil
}

func (f *fakeCartStore) DeleteCartItem(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item, ok := f.items[id]; ok && item.UserID == userID {
		delete(f.items, id)
	}
	return nil
}

func TestAddToCartNewItem(t *testing.T) {
	store := newFakeCartStore()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 5}
	cs := NewCartService(store)

	item, err := cs.AddToCart(context.Background(), "user-1", "prod-a", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, item.Quantity)
	assert.NotEmpty(t, item.ID)
}

func TestAddToCartMergesQuantity(t *testing.T) {
	store := newFakeCartStore()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 5}
	cs := NewCartService(store)

	first, err := cs.AddToCart(context.Background(), "user-1", "prod-a", 2)
	require.NoError(t, err)

	second, err := cs.AddToCart(context.Background(), "user-1", "prod-a", 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same product merges into the existing row")
	assert.Equal(t, 5, second.Quantity)
}

func TestAddToCartCapsAtStock(t *testing.T) {
	store := newFakeCartStore()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 3}
	cs := NewCartService(store)

	_, err := cs.AddToCart(context.Background(), "user-1", "prod-a", 2)
	require.NoError(t, err)

	_, err = cs.AddToCart(context.Background(), "user-1", "prod-a", 2)
	assert.ErrorIs(t, err, ErrInsufficientStock)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	cs := NewCartService(newFakeCartStore())

	_, err := cs.AddToCart(context.Background(), "user-1", "prod-missing", 1)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestAddToCartInvalidInput(t *testing.T) {
	cs := NewCartService(newFakeCartStore())

	_, err := cs.AddToCart(context.Background(), "", "prod-a", 1)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = cs.AddToCart(context.Background(), "user-1", "prod-a", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRemoveCartItemScopedToOwner(t *testing.T) {
	store := newFakeCartStore()
	store.products["prod-a"] = models.Product{ID: "prod-a", Name: "Facial Wash", Price: 10000, Stock: 5}
	cs := NewCartService(store)

	item, err := cs.AddToCart(context.Background(), "user-1", "prod-a", 1)
	require.NoError(t, err)

	require.NoError(t, cs.RemoveCartItem(context.Background(), "user-2", item.ID))
	remaining, _ := cs.ListCart(context.Background(), "user-1")
	assert.Len(t, remaining, 1, "another user's delete must not touch the row")

	require.NoError(t, cs.RemoveCartItem(context.Background(), "user-1", item.ID))
	remaining, _ = cs.ListCart(context.Background(), "user-1")
	assert.Empty(t, remaining)
}
