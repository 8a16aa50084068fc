package models

import "time"

// Event types
const (
	EventTypeOrderCreated = "ORDER_CREATED"
	EventTypeOrderPaid    = "ORDER_PAID"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderCreatedEvent published after a checkout commits its order
type OrderCreatedEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	TransactionID int64           `json:"transaction_id"`
	UserID        string          `json:"user_id,omitempty"`
	Total         int64           `json:"total"`
	Items         []OrderItemData `json:"items"`
}

// OrderPaidEvent published on the first transition to packing. The
// fulfillment worker consumes it to decrement stock and clear the cart.
type OrderPaidEvent struct {
	BaseEvent
	OrderID       string          `json:"order_id"`
	TransactionID int64           `json:"transaction_id"`
	UserID        string          `json:"user_id,omitempty"`
	Total         int64           `json:"total"`
	Items         []OrderItemData `json:"items"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}
