// Package gateway talks to the Midtrans Snap API: it requests hosted-payment
// tokens for pending orders and verifies inbound webhook notifications.
package gateway

import (
	"bytes"
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ItemDetail is one line of the gateway-facing item manifest
type ItemDetail struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CustomerDetails carries the buyer's contact and billing information
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
	Address   string `json:"address"`
}

// TokenRequest is a request for a hosted-payment token
type TokenRequest struct {
	GatewayOrderID string
	GrossAmount    int64
	Items          []ItemDetail
	Customer       CustomerDetails
	FinishURL      string
	UnfinishURL    string
	ErrorURL       string
}

// TokenResult is the token and redirect URL issued by the gateway
type TokenResult struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirect_url"`
}

// Notification is the webhook payload the gateway posts after a payment
// attempt settles one way or the other.
type Notification struct {
	OrderID           string `json:"order_id"`
	StatusCode        string `json:"status_code"`
	GrossAmount       string `json:"gross_amount"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	SignatureKey      string `json:"signature_key"`
}

// Gateway abstracts the payment provider so the checkout orchestrator and
// the webhook reconciler never depend on the Snap wire format directly.
type Gateway interface {
	RequestToken(ctx context.Context, req *TokenRequest) (*TokenResult, error)
	VerifyNotification(n *Notification) bool
}

// SnapClient is the Midtrans Snap implementation of Gateway
type SnapClient struct {
	serverKey  string
	snapURL    string
	httpClient *http.Client
}

// NewSnapClient creates a Snap client for the given server key and endpoint
func NewSnapClient(serverKey, snapURL string) *SnapClient {
	return &SnapClient{
		serverKey: serverKey,
		snapURL:   snapURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type snapTransactionDetails struct {
	OrderID     string `json:"order_id"`
	GrossAmount int64  `json:"gross_amount"`
}

type snapCustomerDetails struct {
	FirstName      string             `json:"first_name"`
	Email          string             `json:"email"`
	BillingAddress snapBillingAddress `json:"billing_address"`
}

type snapBillingAddress struct {
	Address string `json:"address"`
}

type snapCallbacks struct {
	Finish   string `json:"finish,omitempty"`
	Unfinish string `json:"unfinish,omitempty"`
	Error    string `json:"error,omitempty"`
}

type snapRequest struct {
	TransactionDetails snapTransactionDetails `json:"transaction_details"`
	ItemDetails        []ItemDetail           `json:"item_details"`
	CustomerDetails    snapCustomerDetails    `json:"customer_details"`
	Callbacks          snapCallbacks          `json:"callbacks"`
}

// RequestToken requests a hosted-payment token from the Snap API
func (c *SnapClient) RequestToken(ctx context.Context, req *TokenRequest) (*TokenResult, error) {
	payload := snapRequest{
		TransactionDetails: snapTransactionDetails{
			OrderID:     req.GatewayOrderID,
			GrossAmount: req.GrossAmount,
		},
		ItemDetails: req.Items,
		CustomerDetails: snapCustomerDetails{
			FirstName:      req.Customer.FirstName,
			Email:          req.Customer.Email,
			BillingAddress: snapBillingAddress{Address: req.Customer.Address},
		},
		Callbacks: snapCallbacks{
			Finish:   req.FinishURL,
			Unfinish: req.UnfinishURL,
			Error:    req.ErrorURL,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.snapURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization",
		"Basic "+base64.StdEncoding.EncodeToString([]byte(c.serverKey+":")))
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("snap request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errText, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("snap request rejected: status=%d body=%s", resp.StatusCode, errText)
	}

	var result TokenResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode snap response: %w", err)
	}

	if result.Token == "" {
		return nil, fmt.Errorf("snap response missing payment token")
	}

	return &result, nil
}

// VerifyNotification recomputes the expected signature from the payload and
// the server key and compares it to the supplied one in constant time. The
// webhook endpoint is publicly reachable, so this is the only thing standing
// between a forged notification and the order ledger.
func (c *SnapClient) VerifyNotification(n *Notification) bool {
	expected := Signature(n.OrderID, n.StatusCode, n.GrossAmount, c.serverKey)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(n.SignatureKey)) == 1
}

// Signature computes the keyed notification digest:
// sha512(order_id + status_code + gross_amount + server_key), hex encoded.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
