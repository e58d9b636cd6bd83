// Package gateway brokers payment orders with a Razorpay-compatible
// payment gateway and verifies client payment claims.
package gateway

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps any transport failure, timeout or non-2xx
	// response from the gateway.
	ErrUnavailable = errors.New("gateway: unavailable")

	// ErrVerification is returned when a payment claim's signature does
	// not match, or cannot be checked at all.
	ErrVerification = errors.New("gateway: signature verification failed")
)

// Gateway is the subset of the payment gateway the ledger relies on.
type Gateway interface {
	// CreateOrder opens a payment order for the given amount.
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)

	// FetchOrder reads back an order created earlier.
	FetchOrder(ctx context.Context, orderID string) (*Order, error)

	// VerifyPayment checks a client claim against the shared secret.
	// It never contacts the gateway.
	VerifyPayment(ctx context.Context, claim Claim) error
}

// OrderRequest describes an order to open. Amount is in minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is a gateway-side payment order.
type Order struct {
	ID        string            `json:"id"`
	Amount    int64             `json:"amount"`
	Currency  string            `json:"currency"`
	Receipt   string            `json:"receipt"`
	Status    string            `json:"status"`
	Notes     map[string]string `json:"notes,omitempty"`
	CreatedAt int64             `json:"created_at,omitempty"`
}

// Claim is what the client reports after completing checkout.
type Claim struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}
