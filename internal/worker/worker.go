package worker

import (
	"context"
	"encoding/json"

	"sixcare-checkout/internal/broker"
	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// FulfillmentStore is the data access the fulfillment worker needs.
// *store.Store satisfies it.
type FulfillmentStore interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)
	DeleteCartItemsForProducts(ctx context.Context, userID string, productIDs []string) error
}

// FulfillmentWorker consumes ORDER_PAID events and performs the deferred
// side effects of a confirmed payment: stock decrement and cart cleanup.
// Both are deliberately absent from checkout so a failed payment never
// costs the user their cart or the shop its stock.
type FulfillmentWorker struct {
	consumer *broker.Consumer
	store    FulfillmentStore
	logger   *zap.Logger
}

// NewFulfillmentWorker creates a new fulfillment worker
func NewFulfillmentWorker(consumer *broker.Consumer, store FulfillmentStore) *FulfillmentWorker {
	return &FulfillmentWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}
}

// Start starts the worker
func (w *FulfillmentWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting fulfillment worker")
	return w.consumer.StartConsuming(ctx, w.handleMessage)
}

// Stop stops the worker
func (w *FulfillmentWorker) Stop() error {
	w.logger.Info("Stopping fulfillment worker")
	return w.consumer.Close()
}

func (w *FulfillmentWorker) handleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		w.logger.Error("Failed to unmarshal event", zap.Error(err))
		return err
	}

	if baseEvent.EventType != models.EventTypeOrderPaid {
		return nil
	}

	var event models.OrderPaidEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		w.logger.Error("Failed to unmarshal OrderPaid event", zap.Error(err))
		return err
	}

	return w.fulfill(ctx, &event)
}

// fulfill applies the post-payment side effects exactly once per event.
// Kafka redeliveries are absorbed by the processed-events check.
func (w *FulfillmentWorker) fulfill(ctx context.Context, event *models.OrderPaidEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return err
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	w.logger.Info("Fulfilling paid order",
		zap.String("order_id", event.OrderID),
		zap.Int("items", len(event.Items)))

	productIDs := make([]string, 0, len(event.Items))
	for _, item := range event.Items {
		productIDs = append(productIDs, item.ProductID)

		ok, err := w.store.DecrementStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			util.FulfillmentFailuresTotal.WithLabelValues("stock_error").Inc()
			w.logger.Error("Failed to decrement stock",
				zap.String("product_id", item.ProductID),
				zap.Error(err))
			return err
		}
		if !ok {
			// Stock was never reserved at checkout, so a paid order can
			// exceed what is left. Flag it for manual handling instead of
			// failing the whole event.
			util.FulfillmentFailuresTotal.WithLabelValues("insufficient_stock").Inc()
			w.logger.Warn("Paid order exceeds remaining stock",
				zap.String("order_id", event.OrderID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity))
		}
	}

	if event.UserID != "" {
		if err := w.store.DeleteCartItemsForProducts(ctx, event.UserID, productIDs); err != nil {
			util.FulfillmentFailuresTotal.WithLabelValues("cart_cleanup").Inc()
			w.logger.Error("Failed to clear purchased cart items",
				zap.String("user_id", event.UserID),
				zap.Error(err))
		}
	}

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	w.logger.Info("Order fulfilled", zap.String("order_id", event.OrderID))
	return nil
}
