// Package observability provides a metrics extension for rentledger that
// records billing and settlement counts via go-utils MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/go-utils/metrics"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/plugin"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnInit                = (*MetricsExtension)(nil)
	_ plugin.OnRentGenerated       = (*MetricsExtension)(nil)
	_ plugin.OnLateFeeApplied      = (*MetricsExtension)(nil)
	_ plugin.OnBatchCompleted      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentOrderCreated = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCaptured     = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRejected     = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceRendered     = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide billing metrics.
// Register it as a rentledger plugin to track batch runs and settlements.
type MetricsExtension struct {
	// Billing metrics
	RentGenerated   metrics.Counter
	LateFeesApplied metrics.Counter
	LateFeeAmount   metrics.Histogram

	// Batch metrics
	GenerateRentRuns metrics.Counter
	ApplyLateFeeRuns metrics.Counter
	BatchRecords     metrics.Histogram
	BatchLatency     metrics.Histogram

	// Payment metrics
	OrdersCreated        metrics.Counter
	PaymentsCaptured     metrics.Counter
	PaymentAmount        metrics.Histogram
	PaymentsRejected     metrics.Counter
	VerificationFailures metrics.Counter

	// Invoice metrics
	InvoicesRendered metrics.Counter
	InvoiceBytes     metrics.Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory metrics.MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		RentGenerated:   factory.Counter("rentledger.rent.generated"),
		LateFeesApplied: factory.Counter("rentledger.late_fee.applied"),
		LateFeeAmount:   factory.Histogram("rentledger.late_fee.amount_minor"),

		GenerateRentRuns: factory.Counter("rentledger.batch.generate_rent.runs"),
		ApplyLateFeeRuns: factory.Counter("rentledger.batch.apply_late_fees.runs"),
		BatchRecords:     factory.Histogram("rentledger.batch.records"),
		BatchLatency:     factory.Histogram("rentledger.batch.latency_ms", metrics.WithDefaultTimerBuckets()),

		OrdersCreated:        factory.Counter("rentledger.payment.orders_created"),
		PaymentsCaptured:     factory.Counter("rentledger.payment.captured"),
		PaymentAmount:        factory.Histogram("rentledger.payment.amount_minor"),
		PaymentsRejected:     factory.Counter("rentledger.payment.rejected"),
		VerificationFailures: factory.Counter("rentledger.payment.verification_failed"),

		InvoicesRendered: factory.Counter("rentledger.invoice.rendered"),
		InvoiceBytes:     factory.Histogram("rentledger.invoice.bytes"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnRentGenerated implements plugin.OnRentGenerated.
func (m *MetricsExtension) OnRentGenerated(_ context.Context, _ *rent.Rent) error {
	m.RentGenerated.Inc()
	return nil
}

// OnLateFeeApplied implements plugin.OnLateFeeApplied.
func (m *MetricsExtension) OnLateFeeApplied(_ context.Context, _ *rent.Rent, fee types.Money) error {
	m.LateFeesApplied.Inc()
	m.LateFeeAmount.Observe(float64(fee.Amount))
	return nil
}

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (m *MetricsExtension) OnBatchCompleted(_ context.Context, job string, count int, elapsed time.Duration) error {
	switch job {
	case plugin.JobGenerateRent:
		m.GenerateRentRuns.Inc()
	case plugin.JobApplyLateFees:
		m.ApplyLateFeeRuns.Inc()
	}
	m.BatchRecords.Observe(float64(count))
	m.BatchLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentOrderCreated implements plugin.OnPaymentOrderCreated.
func (m *MetricsExtension) OnPaymentOrderCreated(_ context.Context, _ *rent.Rent, _ *gateway.Order) error {
	m.OrdersCreated.Inc()
	return nil
}

// OnPaymentCaptured implements plugin.OnPaymentCaptured.
func (m *MetricsExtension) OnPaymentCaptured(_ context.Context, _ *rent.Rent, p *payment.Payment) error {
	m.PaymentsCaptured.Inc()
	m.PaymentAmount.Observe(float64(p.Amount.Amount))
	return nil
}

// OnPaymentRejected implements plugin.OnPaymentRejected.
func (m *MetricsExtension) OnPaymentRejected(_ context.Context, _ id.RentID, _ gateway.Claim, reason error) error {
	m.PaymentsRejected.Inc()
	if errors.Is(reason, gateway.ErrVerification) {
		m.VerificationFailures.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceRendered implements plugin.OnInvoiceRendered.
func (m *MetricsExtension) OnInvoiceRendered(_ context.Context, _ *rent.Rent, size int) error {
	m.InvoicesRendered.Inc()
	m.InvoiceBytes.Observe(float64(size))
	return nil
}
