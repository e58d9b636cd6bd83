// Package plugin provides an extensible plugin system for rentledger.
// Plugins can hook into billing and settlement events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// Batch job names passed to OnBatchCompleted.
const (
	JobGenerateRent  = "generate-rent"
	JobApplyLateFees = "apply-late-fees"
)

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnRentGenerated is called for each newly created rent obligation.
type OnRentGenerated interface {
	Plugin
	OnRentGenerated(ctx context.Context, r *rent.Rent) error
}

// OnLateFeeApplied is called after a late fee is written. r carries the fee.
type OnLateFeeApplied interface {
	Plugin
	OnLateFeeApplied(ctx context.Context, r *rent.Rent, fee types.Money) error
}

// OnBatchCompleted is called at the end of a batch job.
type OnBatchCompleted interface {
	Plugin
	OnBatchCompleted(ctx context.Context, job string, count int, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentOrderCreated is called after the gateway opens an order.
type OnPaymentOrderCreated interface {
	Plugin
	OnPaymentOrderCreated(ctx context.Context, r *rent.Rent, order *gateway.Order) error
}

// OnPaymentCaptured is called after a rent is settled.
type OnPaymentCaptured interface {
	Plugin
	OnPaymentCaptured(ctx context.Context, r *rent.Rent, p *payment.Payment) error
}

// OnPaymentRejected is called when a payment claim does not settle a rent.
type OnPaymentRejected interface {
	Plugin
	OnPaymentRejected(ctx context.Context, rentID id.RentID, claim gateway.Claim, reason error) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceRendered is called after an invoice PDF is produced.
type OnInvoiceRendered interface {
	Plugin
	OnInvoiceRendered(ctx context.Context, r *rent.Rent, size int) error
}
