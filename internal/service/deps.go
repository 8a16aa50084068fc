package service

import (
	"context"
	"time"

	"sixcare-checkout/internal/models"
)

// Ledger is the data access the checkout orchestrator and webhook reconciler
// need. *store.Store satisfies it; tests substitute in-memory fakes.
type Ledger interface {
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	GetCartItemsByIDs(ctx context.Context, userID string, ids []string) ([]models.CartItemDetail, error)
	CreateTransaction(ctx context.Context, t *models.Transaction, items []models.TransactionItem) error
	GetTransactionByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	GetTransactionItems(ctx context.Context, transactionID int64) ([]models.TransactionItemDetail, error)
	MarkPacking(ctx context.Context, orderID string) (bool, error)
	UpdateTransactionStatus(ctx context.Context, orderID, status string) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]models.Transaction, error)
}

// CartStore is the data access for cart operations
type CartStore interface {
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetCartItem(ctx context.Context, userID, productID string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, id string, quantity int) error
	ListCartItems(ctx context.Context, userID string) ([]models.CartItemDetail, error)
	DeleteCartItem(ctx context.Context, userID, id string) error
}

// TokenCache caches issued payment tokens and deduplicates webhook
// deliveries. *redisclient.Client satisfies it.
type TokenCache interface {
	CachePaymentToken(ctx context.Context, orderID string, payload []byte, ttl time.Duration) error
	GetPaymentToken(ctx context.Context, orderID string) ([]byte, error)
	SeenNotification(ctx context.Context, key string) (bool, error)
	RememberNotification(ctx context.Context, key string, ttl time.Duration) error
}

// EventPublisher publishes order lifecycle events.
// *broker.EventPublisher satisfies it.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
}
