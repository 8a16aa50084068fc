package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"sixcare-checkout/internal/gateway"
	"sixcare-checkout/internal/models"
	"sixcare-checkout/internal/service"
	"sixcare-checkout/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CatalogReader is the read-only catalog access the HTTP layer exposes
type CatalogReader interface {
	GetProducts(ctx context.Context) ([]models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
}

// Handler contains HTTP handlers
type Handler struct {
	checkout   *service.CheckoutService
	reconciler *service.Reconciler
	carts      *service.CartService
	catalog    CatalogReader
}

// NewHandler creates a new HTTP handler
func NewHandler(
	checkout *service.CheckoutService,
	reconciler *service.Reconciler,
	carts *service.CartService,
	catalog CatalogReader,
) *Handler {
	return &Handler{
		checkout:   checkout,
		reconciler: reconciler,
		carts:      carts,
		catalog:    catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/checkout", h.createCheckout)
		v1.POST("/checkout/payment-token", h.reissuePaymentToken)
		v1.POST("/checkout/update-status", h.updateStatus)
		v1.POST("/checkout/webhook", h.paymentWebhook)

		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.POST("/cart", h.addToCart)
		v1.GET("/cart", h.listCart)
		v1.DELETE("/cart/:id", h.removeCartItem)

		v1.GET("/orders", h.listOrders)

		// Role checks are the auth provider's job; an upstream gateway is
		// expected to guard this group.
		admin := v1.Group("/admin")
		admin.PATCH("/orders/:order_id/status", h.adminUpdateStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// createCheckout handles order creation
func (h *Handler) createCheckout(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	resp, err := h.checkout.Checkout(c.Request.Context(), &req)
	if err != nil {
		status := statusForError(err)
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// reissuePaymentToken re-issues a payment token for an existing pending order
func (h *Handler) reissuePaymentToken(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order ID is required"})
		return
	}

	resp, err := h.checkout.ReissueToken(c.Request.Context(), req.OrderID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// updateStatus forces an order to packing. Fallback path for when the client
// sees a synchronous payment confirmation before the webhook lands.
func (h *Handler) updateStatus(c *gin.Context) {
	var req struct {
		OrderID string `json:"order_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Order ID is required"})
		return
	}

	if err := h.reconciler.ConfirmPayment(c.Request.Context(), req.OrderID); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated to packing"})
}

// paymentWebhook handles asynchronous payment notifications from the gateway
func (h *Handler) paymentWebhook(c *gin.Context) {
	var notification gateway.Notification
	if err := c.ShouldBindJSON(&notification); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification payload"})
		return
	}

	err := h.reconciler.HandleNotification(c.Request.Context(), &notification)
	if err != nil {
		if errors.Is(err, service.ErrInvalidSignature) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		// Unknown orders are acked: the gateway retries non-2xx responses
		// and a retry cannot make the order appear.
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusOK, gin.H{"message": "Notification received"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification received"})
}

// listProducts handles catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.GetProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

// getProduct handles a single product lookup
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProductByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}
	if product == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	c.JSON(http.StatusOK, product)
}

// addToCart handles cart additions
func (h *Handler) addToCart(c *gin.Context) {
	var req struct {
		ProductID string `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	item, err := h.carts.AddToCart(c.Request.Context(), userID(c), req.ProductID, req.Quantity)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, item)
}

// listCart handles cart listing
func (h *Handler) listCart(c *gin.Context) {
	items, err := h.carts.ListCart(c.Request.Context(), userID(c))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// removeCartItem handles cart row deletion
func (h *Handler) removeCartItem(c *gin.Context) {
	if err := h.carts.RemoveCartItem(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// listOrders handles per-user order history
func (h *Handler) listOrders(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
		return
	}

	orders, err := h.checkout.ListOrders(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load orders"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// adminUpdateStatus applies an admin status transition
func (h *Handler) adminUpdateStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Status is required"})
		return
	}

	err := h.checkout.UpdateOrderStatus(c.Request.Context(), c.Param("order_id"), req.Status)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Order status updated"})
}

// userID resolves the caller's identity. Authentication itself is delegated
// to the upstream provider; this service trusts the forwarded header.
func userID(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

// statusForError maps the service error taxonomy to HTTP statuses
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrCartEmpty),
		errors.Is(err, service.ErrProductNotFound),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInsufficientStock):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidSignature):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
