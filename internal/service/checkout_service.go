package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sixcare-checkout/internal/gateway"
	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway item names are truncated to this length
const maxItemNameLen = 50

// CheckoutService orchestrates checkout: it resolves the chosen items
// against the catalog, writes the order and its items atomically, and
// requests a hosted-payment token from the gateway.
type CheckoutService struct {
	ledger   Ledger
	gateway  gateway.Gateway
	cache    TokenCache
	events   EventPublisher
	baseURL  string
	tokenTTL time.Duration
	logger   *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	ledger Ledger,
	gw gateway.Gateway,
	cache TokenCache,
	events EventPublisher,
	baseURL string,
	tokenTTL time.Duration,
) *CheckoutService {
	return &CheckoutService{
		ledger:   ledger,
		gateway:  gw,
		cache:    cache,
		events:   events,
		baseURL:  baseURL,
		tokenTTL: tokenTTL,
		logger:   util.GetLogger(),
	}
}

// BuyNowItem is a product selected directly from a product page,
// bypassing the persistent cart
type BuyNowItem struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}

// CheckoutRequest represents a request to create an order. Exactly one of
// SelectedIDs (cart mode) or BuyNowItems must be non-empty.
type CheckoutRequest struct {
	SelectedIDs []string     `json:"selectedIds"`
	BuyNowItems []BuyNowItem `json:"buyNowItems"`
	UserID      string       `json:"userId"`
	DisplayName string       `json:"display_name"`
	FullName    string       `json:"full_name"`
	Email       string       `json:"email"`
	Address     string       `json:"address"`
}

// CheckoutResponse carries the gateway token the client payment widget needs
type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// checkoutLine is a resolved item: authoritative catalog data plus the
// requested quantity
type checkoutLine struct {
	ProductID   string
	ProductName string
	Price       int64
	Quantity    int
}

// Checkout creates a pending order and requests a payment token for it.
// Item prices always come from the catalog, never from the client. Nothing
// touches the cart or the stock here; both wait for payment confirmation.
func (s *CheckoutService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.Checkout")
	defer span.End()

	lines, err := s.resolveItems(ctx, req)
	if err != nil {
		return nil, err
	}

	var gross int64
	for _, line := range lines {
		gross += line.Price * int64(line.Quantity)
	}
	if gross <= 0 {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}

	orderID := uuid.New().String()

	transaction := &models.Transaction{
		OrderID:     orderID,
		UserID:      nullableID(req.UserID),
		DisplayName: req.DisplayName,
		FullName:    req.FullName,
		Email:       req.Email,
		Address:     req.Address,
		Total:       gross,
		Status:      models.StatusAwaitingPayment,
	}

	items := make([]models.TransactionItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, models.TransactionItem{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
		})
	}

	if err := s.ledger.CreateTransaction(ctx, transaction, items); err != nil {
		util.CheckoutsFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	util.CheckoutsCreatedTotal.Inc()
	s.logger.Info("Order created",
		zap.String("order_id", orderID),
		zap.Int64("total", gross))

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:       orderID,
		TransactionID: transaction.ID,
		UserID:        req.UserID,
		Total:         gross,
		Items:         eventItems(items),
	}
	if err := s.events.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event", zap.Error(err))
	}

	manifest := make([]gateway.ItemDetail, 0, len(lines))
	for _, line := range lines {
		manifest = append(manifest, gateway.ItemDetail{
			ID:       line.ProductID,
			Name:     truncate(line.ProductName, maxItemNameLen),
			Price:    line.Price,
			Quantity: line.Quantity,
		})
	}

	result, err := s.requestToken(ctx, transaction, manifest,
		s.baseURL+"/checkout/success", s.baseURL+"/checkout/failed", s.baseURL+"/checkout/error")
	if err != nil {
		// The order stays in awaiting-payment; the client can retry via the
		// payment-token endpoint against the same order_id.
		util.CheckoutsFailedTotal.WithLabelValues("gateway_error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	util.PaymentTokensIssuedTotal.WithLabelValues("checkout").Inc()

	return &CheckoutResponse{
		OrderID:     orderID,
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	}, nil
}

// ReissueToken issues a fresh payment token for an existing pending order,
// used when the original token expired or the payment widget was dismissed.
func (s *CheckoutService) ReissueToken(ctx context.Context, orderID string) (*CheckoutResponse, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.ReissueToken")
	defer span.End()

	if orderID == "" {
		return nil, ErrInvalidRequest
	}

	if cached, err := s.cache.GetPaymentToken(ctx, orderID); err != nil {
		s.logger.Warn("Token cache read failed", zap.Error(err))
	} else if cached != nil {
		var resp CheckoutResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return &resp, nil
		}
	}

	transaction, err := s.ledger.GetTransactionByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction: %w", err)
	}
	if transaction == nil {
		return nil, ErrOrderNotFound
	}

	details, err := s.ledger.GetTransactionItems(ctx, transaction.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transaction items: %w", err)
	}

	manifest := make([]gateway.ItemDetail, 0, len(details))
	for _, d := range details {
		manifest = append(manifest, gateway.ItemDetail{
			ID:       d.ProductID,
			Name:     truncate(d.ProductName, maxItemNameLen),
			Price:    d.Price,
			Quantity: d.Quantity,
		})
	}

	result, err := s.requestToken(ctx, transaction, manifest,
		s.baseURL+"/orders", s.baseURL+"/orders", s.baseURL+"/orders")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	util.PaymentTokensIssuedTotal.WithLabelValues("reissue").Inc()

	return &CheckoutResponse{
		OrderID:     transaction.OrderID,
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	}, nil
}

// ListOrders retrieves a user's orders, newest first, with their items
func (s *CheckoutService) ListOrders(ctx context.Context, userID string) ([]OrderSummary, error) {
	transactions, err := s.ledger.ListTransactionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]OrderSummary, 0, len(transactions))
	for _, t := range transactions {
		items, err := s.ledger.GetTransactionItems(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, OrderSummary{Transaction: t, Items: items})
	}
	return summaries, nil
}

// OrderSummary is a transaction with its line items
type OrderSummary struct {
	Transaction models.Transaction             `json:"transaction"`
	Items       []models.TransactionItemDetail `json:"items"`
}

// UpdateOrderStatus applies an admin-driven status transition. The awaiting
// payment state is not reachable this way; only checkout creates it.
func (s *CheckoutService) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	if !models.AdminStatuses[status] {
		return ErrInvalidStatus
	}

	updated, err := s.ledger.UpdateTransactionStatus(ctx, orderID, status)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if !updated {
		return ErrOrderNotFound
	}

	s.logger.Info("Order status updated",
		zap.String("order_id", orderID),
		zap.String("status", status))
	return nil
}

// resolveItems maps the request to authoritative catalog state. Buy-now and
// cart mode are mutually exclusive; an empty selection is rejected before any
// read or write happens.
func (s *CheckoutService) resolveItems(ctx context.Context, req *CheckoutRequest) ([]checkoutLine, error) {
	if len(req.SelectedIDs) == 0 && len(req.BuyNowItems) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, ErrInvalidRequest
	}

	if len(req.BuyNowItems) > 0 {
		return s.resolveBuyNow(ctx, req.BuyNowItems)
	}
	return s.resolveCart(ctx, req.UserID, req.SelectedIDs)
}

func (s *CheckoutService) resolveBuyNow(ctx context.Context, buyNow []BuyNowItem) ([]checkoutLine, error) {
	ids := make([]string, 0, len(buyNow))
	for _, item := range buyNow {
		if item.ID == "" || item.Quantity <= 0 {
			util.CheckoutsFailedTotal.WithLabelValues("invalid_request").Inc()
			return nil, ErrInvalidRequest
		}
		ids = append(ids, item.ID)
	}

	products, err := s.ledger.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products: %w", err)
	}

	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]checkoutLine, 0, len(buyNow))
	for _, item := range buyNow {
		product, ok := byID[item.ID]
		if !ok {
			util.CheckoutsFailedTotal.WithLabelValues("product_not_found").Inc()
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, item.ID)
		}
		lines = append(lines, checkoutLine{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}

func (s *CheckoutService) resolveCart(ctx context.Context, userID string, selectedIDs []string) ([]checkoutLine, error) {
	cartItems, err := s.ledger.GetCartItemsByIDs(ctx, userID, selectedIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	if len(cartItems) == 0 {
		util.CheckoutsFailedTotal.WithLabelValues("cart_empty").Inc()
		return nil, ErrCartEmpty
	}

	lines := make([]checkoutLine, 0, len(cartItems))
	for _, item := range cartItems {
		lines = append(lines, checkoutLine{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Price:       item.Price,
			Quantity:    item.Quantity,
		})
	}
	return lines, nil
}

// requestToken calls the gateway with a fresh gateway-facing order id and
// caches the issued token against the internal order id.
func (s *CheckoutService) requestToken(
	ctx context.Context,
	t *models.Transaction,
	manifest []gateway.ItemDetail,
	finishURL, unfinishURL, errorURL string,
) (*gateway.TokenResult, error) {
	start := time.Now()
	defer func() {
		util.GatewayRequestLatency.Observe(time.Since(start).Seconds())
	}()

	result, err := s.gateway.RequestToken(ctx, &gateway.TokenRequest{
		GatewayOrderID: GatewayOrderID(t.OrderID),
		GrossAmount:    t.Total,
		Items:          manifest,
		Customer: gateway.CustomerDetails{
			FirstName: t.FullName,
			Email:     t.Email,
			Address:   t.Address,
		},
		FinishURL:   finishURL,
		UnfinishURL: unfinishURL,
		ErrorURL:    errorURL,
	})
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(&CheckoutResponse{
		OrderID:     t.OrderID,
		Token:       result.Token,
		RedirectURL: result.RedirectURL,
	})
	if err == nil {
		if err := s.cache.CachePaymentToken(ctx, t.OrderID, payload, s.tokenTTL); err != nil {
			s.logger.Warn("Failed to cache payment token",
				zap.String("order_id", t.OrderID),
				zap.Error(err))
		}
	}

	return result, nil
}

// GatewayOrderID derives the gateway-facing order identifier. The appended
// millisecond suffix keeps retried token requests for the same order from
// colliding at the gateway, which rejects duplicate order ids.
func GatewayOrderID(orderID string) string {
	return orderID + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
}

// InternalOrderID reverses GatewayOrderID. The suffix is everything after
// the last dash; cutting there keeps UUID order ids, which contain dashes
// themselves, intact.
func InternalOrderID(gatewayOrderID string) string {
	if i := strings.LastIndex(gatewayOrderID, "-"); i > 0 {
		return gatewayOrderID[:i]
	}
	return gatewayOrderID
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func nullableID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func eventItems(items []models.TransactionItem) []models.OrderItemData {
	data := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		data = append(data, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}
	return data
}
