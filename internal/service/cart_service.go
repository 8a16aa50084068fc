package service

import (
	"context"
	"fmt"

	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService owns cart mutations. Checkout only reads the cart; rows are
// removed by the fulfillment worker after payment confirms.
type CartService struct {
	store  CartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store CartStore) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddToCart merges the quantity into an existing cart row or creates a new
// one. The merged quantity is capped at the product's current stock.
func (cs *CartService) AddToCart(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if userID == "" || productID == "" || quantity <= 0 {
		return nil, ErrInvalidRequest
	}

	product, err := cs.store.GetProductByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}

	existing, err := cs.store.GetCartItem(ctx, userID, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}

	total := quantity
	if existing != nil {
		total += existing.Quantity
	}
	if total > product.Stock {
		return nil, ErrInsufficientStock
	}

	if existing != nil {
		if err := cs.store.UpdateCartItemQuantity(ctx, existing.ID, total); err != nil {
			return nil, fmt.Errorf("failed to update cart item: %w", err)
		}
		existing.Quantity = total
		return existing, nil
	}

	item := &models.CartItem{
		ID:        uuid.New().String(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	}
	if err := cs.store.InsertCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to insert cart item: %w", err)
	}

	cs.logger.Info("Cart item added",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", quantity))
	return item, nil
}

// ListCart retrieves a user's cart with product details
func (cs *CartService) ListCart(ctx context.Context, userID string) ([]models.CartItemDetail, error) {
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	return cs.store.ListCartItems(ctx, userID)
}

// RemoveCartItem deletes one of the user's cart rows
func (cs *CartService) RemoveCartItem(ctx context.Context, userID, id string) error {
	if userID == "" || id == "" {
		return ErrInvalidRequest
	}
	return cs.store.DeleteCartItem(ctx, userID, id)
}
