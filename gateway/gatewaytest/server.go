// Package gatewaytest runs an in-process fake of the Razorpay orders API.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/rentledger/gateway"
)

// Default credentials accepted by a Server.
const (
	KeyID     = "rzp_test_key"
	KeySecret = "rzp_test_secret"
)

// Server is a fake gateway. Orders live in memory for the server's lifetime.
type Server struct {
	*httptest.Server

	KeyID     string
	KeySecret string

	mu       sync.Mutex
	orders   map[string]*gateway.Order
	failWith int
	requests int
}

// NewServer starts a fake gateway with the default credentials.
func NewServer() *Server {
	s := &Server{
		KeyID:     KeyID,
		KeySecret: KeySecret,
		orders:    make(map[string]*gateway.Order),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/orders", s.createOrder)
	mux.HandleFunc("GET /v1/orders/{id}", s.fetchOrder)
	s.Server = httptest.NewServer(s.authenticate(mux))
	return s
}

// Client returns a Razorpay client pointed at this server.
func (s *Server) Client(opts ...gateway.RazorpayOption) *gateway.Razorpay {
	opts = append([]gateway.RazorpayOption{gateway.WithBaseURL(s.URL)}, opts...)
	return gateway.NewRazorpay(s.KeyID, s.KeySecret, opts...)
}

// FailWith makes every following request return status until reset with 0.
func (s *Server) FailWith(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = status
}

// Requests returns the number of requests served.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Order returns a stored order.
func (s *Server) Order(id string) (*gateway.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}

// Pay simulates a completed checkout for orderID and returns the claim the
// client would submit, correctly signed.
func (s *Server) Pay(orderID string) gateway.Claim {
	s.mu.Lock()
	if o, ok := s.orders[orderID]; ok {
		o.Status = "paid"
	}
	s.mu.Unlock()

	paymentID := NewPaymentID()
	return gateway.Claim{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: gateway.Sign(s.KeySecret, orderID, paymentID),
	}
}

// NewOrderID returns an id shaped like a gateway order id.
func NewOrderID() string { return "order_" + shortID() }

// NewPaymentID returns an id shaped like a gateway payment id.
func NewPaymentID() string { return "pay_" + shortID() }

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		fail := s.failWith
		s.mu.Unlock()

		if fail != 0 {
			writeError(w, fail, "SERVER_ERROR", "injected failure")
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != s.KeyID || pass != s.KeySecret {
			writeError(w, http.StatusUnauthorized, "BAD_REQUEST_ERROR", "Authentication failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount         int64             `json:"amount"`
		Currency       string            `json:"currency"`
		Receipt        string            `json:"receipt"`
		PaymentCapture int               `json:"payment_capture"`
		Notes          map[string]string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "invalid JSON")
		return
	}
	if body.Amount < 100 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST_ERROR", "The amount must be atleast INR 1.00")
		return
	}

	o := &gateway.Order{
		ID:        NewOrderID(),
		Amount:    body.Amount,
		Currency:  body.Currency,
		Receipt:   body.Receipt,
		Status:    "created",
		Notes:     body.Notes,
		CreatedAt: time.Now().Unix(),
	}

	s.mu.Lock()
	s.orders[o.ID] = o
	cp := *o
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &cp)
}

func (s *Server) fetchOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := s.Order(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "BAD_REQUEST_ERROR", "The id provided does not exist")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort test response
}

func writeError(w http.ResponseWriter, status int, code, desc string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"code": code, "description": desc},
	})
}
