package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/gateway/gatewaytest"
)

func TestCreateAndFetchOrder(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()

	ctx := context.Background()
	gw := srv.Client()

	o, err := gw.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   520000,
		Currency: "inr",
		Receipt:  "rent_abc",
	})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if o.ID == "" || o.Amount != 520000 || o.Currency != "INR" || o.Receipt != "rent_abc" {
		t.Errorf("unexpected order: %+v", o)
	}

	got, err := gw.FetchOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("FetchOrder: %v", err)
	}
	if got.ID != o.ID || got.Receipt != o.Receipt || got.Amount != o.Amount {
		t.Errorf("fetched %+v, created %+v", got, o)
	}
}

func TestVerifyPaymentUsesKeySecret(t *testing.T) {
	srv := gatewaytest.NewServer()
	defer srv.Close()

	claim := srv.Pay(gatewaytest.NewOrderID())
	if err := srv.Client().VerifyPayment(context.Background(), claim); err != nil {
		t.Fatalf("valid claim rejected: %v", err)
	}

	other := gateway.NewRazorpay(srv.KeyID, "different", gateway.WithBaseURL(srv.URL))
	if err := other.VerifyPayment(context.Background(), claim); !errors.Is(err, gateway.ErrVerification) {
		t.Fatalf("expected ErrVerification, got %v", err)
	}
}

func TestGatewayUnavailable(t *testing.T) {
	ctx := context.Background()
	req := gateway.OrderRequest{Amount: 10000, Currency: "inr", Receipt: "rent_x"}

	t.Run("server error", func(t *testing.T) {
		srv := gatewaytest.NewServer()
		defer srv.Close()
		srv.FailWith(http.StatusInternalServerError)

		if _, err := srv.Client().CreateOrder(ctx, req); !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		srv := gatewaytest.NewServer()
		defer srv.Close()

		gw := gateway.NewRazorpay("wrong", "wrong", gateway.WithBaseURL(srv.URL))
		if _, err := gw.CreateOrder(ctx, req); !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		srv := gatewaytest.NewServer()
		defer srv.Close()

		if _, err := srv.Client().FetchOrder(ctx, "order_missing"); !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer slow.Close()

		gw := gateway.NewRazorpay("k", "s", gateway.WithBaseURL(slow.URL), gateway.WithTimeout(50*time.Millisecond))
		if _, err := gw.CreateOrder(ctx, req); !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		gw := gateway.NewRazorpay("k", "s", gateway.WithBaseURL(url))
		if _, err := gw.FetchOrder(ctx, "order_1"); !errors.Is(err, gateway.ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	})
}

func TestWithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}
	srv := gatewaytest.NewServer()
	defer srv.Close()

	gw := gateway.NewRazorpay(srv.KeyID, srv.KeySecret,
		gateway.WithBaseURL(srv.URL),
		gateway.WithHTTPClient(shared),
		gateway.WithTimeout(time.Second),
	)
	if _, err := gw.CreateOrder(context.Background(), gateway.OrderRequest{Amount: 500000, Currency: "inr", Receipt: "rent_x"}); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if shared.Timeout != time.Minute {
		t.Errorf("shared client timeout = %v, want 1m", shared.Timeout)
	}
}
