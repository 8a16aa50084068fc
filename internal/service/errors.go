package service

import "errors"

// Sentinel errors surfaced to the HTTP layer. Handlers map them to statuses;
// anything unrecognized is treated as an internal error.
var (
	ErrInvalidRequest   = errors.New("no products selected")
	ErrCartEmpty        = errors.New("cart items not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrInvalidAmount    = errors.New("order total must be positive")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInvalidStatus    = errors.New("unknown order status")
	ErrInvalidSignature = errors.New("invalid notification signature")
	ErrPaymentGateway   = errors.New("payment gateway error")

	// ErrInsufficientStock is returned when a cart add would exceed the
	// product's available stock.
	ErrInsufficientStock = errors.New("quantity exceeds available stock")
)
