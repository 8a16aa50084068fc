package service

import (
	"context"
	"fmt"
	"time"

	"sixcare-checkout/internal/gateway"
	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// How long a notification signature is remembered for duplicate delivery
// short-circuiting. Replays after expiry still hit the idempotent update.
const notificationDedupeTTL = 24 * time.Hour

// Reconciler validates inbound payment notifications and transitions order
// status. The gateway is the sole source of truth for payment success; the
// reconciler never computes money and never touches items.
type Reconciler struct {
	ledger  Ledger
	gateway gateway.Gateway
	cache   TokenCache
	events  EventPublisher
	logger  *zap.Logger
}

// NewReconciler creates a new webhook reconciler
func NewReconciler(ledger Ledger, gw gateway.Gateway, cache TokenCache, events EventPublisher) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		gateway: gw,
		cache:   cache,
		events:  events,
		logger:  util.GetLogger(),
	}
}

// HandleNotification processes a gateway webhook. A bad signature rejects
// the request before anything is read or written. Success statuses move the
// order to packing exactly once; every other status leaves the order
// untouched and still retryable.
func (r *Reconciler) HandleNotification(ctx context.Context, n *gateway.Notification) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.HandleNotification")
	defer span.End()

	if !r.gateway.VerifyNotification(n) {
		util.WebhookNotificationsTotal.WithLabelValues("rejected_signature").Inc()
		r.logger.Warn("Rejected notification with invalid signature",
			zap.String("gateway_order_id", n.OrderID))
		return ErrInvalidSignature
	}

	orderID := InternalOrderID(n.OrderID)

	if n.TransactionStatus != "capture" && n.TransactionStatus != "settlement" {
		util.WebhookNotificationsTotal.WithLabelValues("ignored").Inc()
		r.logger.Info("Notification without success status, order unchanged",
			zap.String("order_id", orderID),
			zap.String("transaction_status", n.TransactionStatus),
			zap.String("fraud_status", n.FraudStatus))
		return nil
	}

	seen, err := r.cache.SeenNotification(ctx, n.SignatureKey)
	if err != nil {
		r.logger.Warn("Notification dedupe check failed", zap.Error(err))
	} else if seen {
		util.WebhookNotificationsTotal.WithLabelValues("duplicate").Inc()
		r.logger.Info("Duplicate notification delivery",
			zap.String("order_id", orderID))
		return nil
	}

	if err := r.confirm(ctx, orderID, "webhook"); err != nil {
		return err
	}

	// Recorded only after the transition committed. A transient failure
	// returns non-2xx and the gateway retries the identical delivery; marking
	// it seen up front would swallow that retry.
	if err := r.cache.RememberNotification(ctx, n.SignatureKey, notificationDedupeTTL); err != nil {
		r.logger.Warn("Failed to record notification delivery", zap.Error(err))
	}
	return nil
}

// ConfirmPayment is the authenticated fallback path: the client saw a
// successful synchronous payment result before any webhook arrived. It races
// the webhook on the same row, so both go through the same conditional
// transition.
func (r *Reconciler) ConfirmPayment(ctx context.Context, orderID string) error {
	ctx, span := util.StartSpan(ctx, "Reconciler.ConfirmPayment")
	defer span.End()

	if orderID == "" {
		return ErrInvalidRequest
	}
	return r.confirm(ctx, orderID, "manual")
}

// confirm applies the idempotent transition to packing. Zero rows moved
// means either the order does not exist or it already reached packing; the
// latter is a no-op success so replays and races stay harmless.
func (r *Reconciler) confirm(ctx context.Context, orderID, source string) error {
	moved, err := r.ledger.MarkPacking(ctx, orderID)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if !moved {
		transaction, err := r.ledger.GetTransactionByOrderID(ctx, orderID)
		if err != nil {
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		if transaction == nil {
			util.WebhookNotificationsTotal.WithLabelValues("unknown_order").Inc()
			r.logger.Warn("Payment confirmation for unknown order",
				zap.String("order_id", orderID),
				zap.String("source", source))
			return ErrOrderNotFound
		}

		util.WebhookNotificationsTotal.WithLabelValues("duplicate").Inc()
		r.logger.Info("Order already confirmed",
			zap.String("order_id", orderID),
			zap.String("status", transaction.Status),
			zap.String("source", source))
		return nil
	}

	util.WebhookNotificationsTotal.WithLabelValues("accepted").Inc()
	util.OrdersPackedTotal.Inc()
	r.logger.Info("Order confirmed, moved to packing",
		zap.String("order_id", orderID),
		zap.String("source", source))

	r.publishPaid(ctx, orderID)
	return nil
}

// publishPaid emits the ORDER_PAID event for the fulfillment worker. Only
// the first confirmation reaches here, so stock is decremented once.
func (r *Reconciler) publishPaid(ctx context.Context, orderID string) {
	transaction, err := r.ledger.GetTransactionByOrderID(ctx, orderID)
	if err != nil || transaction == nil {
		r.logger.Error("Failed to load transaction for paid event",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	details, err := r.ledger.GetTransactionItems(ctx, transaction.ID)
	if err != nil {
		r.logger.Error("Failed to load items for paid event",
			zap.String("order_id", orderID),
			zap.Error(err))
		return
	}

	items := make([]models.OrderItemData, 0, len(details))
	for _, d := range details {
		items = append(items, models.OrderItemData{
			ProductID: d.ProductID,
			Quantity:  d.Quantity,
			Price:     d.Price,
		})
	}

	var userID string
	if transaction.UserID != nil {
		userID = *transaction.UserID
	}

	event := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:       transaction.OrderID,
		TransactionID: transaction.ID,
		UserID:        userID,
		Total:         transaction.Total,
		Items:         items,
	}

	if err := r.events.PublishOrderPaid(ctx, event); err != nil {
		r.logger.Error("Failed to publish OrderPaid event",
			zap.String("order_id", orderID),
			zap.Error(err))
	}
}
