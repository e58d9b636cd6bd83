package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Razorpay API endpoint.
const DefaultBaseURL = "https://api.razorpay.com"

// DefaultTimeout bounds each gateway call.
const DefaultTimeout = 10 * time.Second

// Razorpay is a Gateway backed by the Razorpay orders API.
type Razorpay struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

// compile-time check
var _ Gateway = (*Razorpay)(nil)

// RazorpayOption configures a Razorpay client.
type RazorpayOption func(*Razorpay)

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) RazorpayOption {
	return func(r *Razorpay) { r.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-call timeout on a copy of the current client.
func WithTimeout(d time.Duration) RazorpayOption {
	return func(r *Razorpay) {
		c := *r.client
		c.Timeout = d
		r.client = &c
	}
}

// WithHTTPClient replaces the HTTP client. Its Timeout is used as-is.
func WithHTTPClient(c *http.Client) RazorpayOption {
	return func(r *Razorpay) { r.client = c }
}

// NewRazorpay creates a client authenticating with the given key pair.
// The key secret also signs payment claims.
func NewRazorpay(keyID, keySecret string, opts ...RazorpayOption) *Razorpay {
	r := &Razorpay{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   DefaultBaseURL,
		client:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type createOrderBody struct {
	Amount         int64             `json:"amount"`
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture int               `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// CreateOrder implements Gateway.
func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	body, err := json.Marshal(createOrderBody{
		Amount:         req.Amount,
		Currency:       strings.ToUpper(req.Currency),
		Receipt:        req.Receipt,
		PaymentCapture: 1,
		Notes:          req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway: encode order: %w", err)
	}

	var o Order
	if err := r.do(ctx, http.MethodPost, "/v1/orders", body, &o); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	return &o, nil
}

// FetchOrder implements Gateway.
func (r *Razorpay) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if orderID == "" {
		return nil, fmt.Errorf("gateway: fetch order: empty order id")
	}

	var o Order
	if err := r.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &o); err != nil {
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return &o, nil
}

// VerifyPayment implements Gateway.
func (r *Razorpay) VerifyPayment(_ context.Context, claim Claim) error {
	return Verify(r.keySecret, claim)
}

func (r *Razorpay) do(ctx context.Context, method, path string, body []byte, out any) error {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %w", ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, errorDescription(data))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %w", ErrUnavailable, err)
	}
	return nil
}

// errorDescription extracts the gateway's error message, if any.
func errorDescription(data []byte) string {
	var e struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error.Description != "" {
		return e.Error.Code + ": " + e.Error.Description
	}
	return "unexpected response"
}
