package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_created_total",
		Help: "Total number of orders created through checkout",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkout attempts",
	}, []string{"reason"})

	PaymentTokensIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_tokens_issued_total",
		Help: "Total number of payment tokens issued by the gateway",
	}, []string{"flow"})

	WebhookNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_notifications_total",
		Help: "Total number of gateway notifications by outcome",
	}, []string{"result"})

	OrdersPackedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_packed_total",
		Help: "Total number of orders transitioned to packing after payment",
	})

	GatewayRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway token requests",
		Buckets: prometheus.DefBuckets,
	})

	FulfillmentFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_failures_total",
		Help: "Total number of failed fulfillment steps",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
