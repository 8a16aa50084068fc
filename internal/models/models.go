package models

import "time"

// Product represents a product in the catalog
type Product struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Category  string    `db:"category" json:"category"`
	Price     int64     `db:"price" json:"price"`
	Stock     int       `db:"stock" json:"stock"`
	ImageURL  string    `db:"image_url" json:"image_url,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItem represents a row in a user's cart
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CartItemDetail is a cart row joined with its product
type CartItemDetail struct {
	ID          string `db:"id" json:"id"`
	Quantity    int    `db:"quantity" json:"quantity"`
	ProductID   string `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Price       int64  `db:"price" json:"price"`
	Stock       int    `db:"stock" json:"stock"`
}

// Transaction represents a single checkout attempt and its lifecycle record.
// Rows are never deleted; status is the only mutable column.
type Transaction struct {
	ID          int64     `db:"id" json:"id"`
	OrderID     string    `db:"order_id" json:"order_id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	DisplayName string    `db:"display_name" json:"display_name"`
	FullName    string    `db:"full_name" json:"full_name"`
	Email       string    `db:"email" json:"email"`
	Address     string    `db:"address" json:"address"`
	Total       int64     `db:"total" json:"total"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TransactionItem is one product line within a transaction. Price is the
// unit price snapshotted at checkout time, not a live catalog reference.
type TransactionItem struct {
	ID            int64  `db:"id" json:"id"`
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	ProductID     string `db:"product_id" json:"product_id"`
	Quantity      int    `db:"quantity" json:"quantity"`
	Price         int64  `db:"price" json:"price"`
}

// TransactionItemDetail is a transaction item joined with its product name,
// used to rebuild the gateway item manifest for token reissue.
type TransactionItemDetail struct {
	ProductID   string `db:"product_id" json:"product_id"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int    `db:"quantity" json:"quantity"`
	Price       int64  `db:"price" json:"price"`
}

// Transaction statuses. These exact strings are persisted and must match
// across every writer and reader, including the admin console.
const (
	StatusAwaitingPayment = "Menunggu Pembayaran"
	StatusPacking         = "Sedang Dikemas"
	StatusShipping        = "Sedang Dikirim"
	StatusDelivered       = "Sudah Diterima/Selesai"
	StatusFailed          = "Gagal/Tidak Diterima"
)

// AdminStatuses are the transitions the admin console may apply. Awaiting
// payment is excluded: only checkout creates it, and nothing moves back to it.
var AdminStatuses = map[string]bool{
	StatusPacking:   true,
	StatusShipping:  true,
	StatusDelivered: true,
	StatusFailed:    true,
}

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
