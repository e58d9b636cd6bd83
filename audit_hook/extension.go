// Package audithook bridges rentledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/plugin"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                = (*Extension)(nil)
	_ plugin.OnRentGenerated       = (*Extension)(nil)
	_ plugin.OnLateFeeApplied      = (*Extension)(nil)
	_ plugin.OnBatchCompleted      = (*Extension)(nil)
	_ plugin.OnPaymentOrderCreated = (*Extension)(nil)
	_ plugin.OnPaymentCaptured     = (*Extension)(nil)
	_ plugin.OnPaymentRejected     = (*Extension)(nil)
	_ plugin.OnInvoiceRendered     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges rentledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder    Recorder
	enabled     map[string]bool // nil = all enabled
	minSeverity int
	logger      *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Billing hooks
// ──────────────────────────────────────────────────

// OnRentGenerated implements plugin.OnRentGenerated.
func (e *Extension) OnRentGenerated(ctx context.Context, r *rent.Rent) error {
	return e.record(ctx, ActionRentGenerated, SeverityInfo, OutcomeSuccess,
		ResourceRent, r.ID.String(), CategoryBilling, nil,
		"student_id", r.StudentID.String(),
		"month", r.Month.Format("2006-01"),
		"amount", r.Amount.Amount,
		"currency", r.Amount.Currency,
	)
}

// OnLateFeeApplied implements plugin.OnLateFeeApplied.
func (e *Extension) OnLateFeeApplied(ctx context.Context, r *rent.Rent, fee types.Money) error {
	return e.record(ctx, ActionLateFeeApplied, SeverityWarning, OutcomeSuccess,
		ResourceRent, r.ID.String(), CategoryBilling, nil,
		"student_id", r.StudentID.String(),
		"fee", fee.Amount,
		"due_date", r.DueDate.Format(time.DateOnly),
	)
}

// OnBatchCompleted implements plugin.OnBatchCompleted.
func (e *Extension) OnBatchCompleted(ctx context.Context, job string, count int, elapsed time.Duration) error {
	return e.record(ctx, ActionBatchCompleted, SeverityInfo, OutcomeSuccess,
		ResourceBatch, job, CategoryBilling, nil,
		"job", job,
		"count", count,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentOrderCreated implements plugin.OnPaymentOrderCreated.
func (e *Extension) OnPaymentOrderCreated(ctx context.Context, r *rent.Rent, order *gateway.Order) error {
	return e.record(ctx, ActionOrderCreated, SeverityInfo, OutcomeSuccess,
		ResourceRent, r.ID.String(), CategoryPayment, nil,
		"order_id", order.ID,
		"amount", order.Amount,
		"currency", order.Currency,
	)
}

// OnPaymentCaptured implements plugin.OnPaymentCaptured.
func (e *Extension) OnPaymentCaptured(ctx context.Context, r *rent.Rent, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentCaptured, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"rent_id", r.ID.String(),
		"student_id", r.StudentID.String(),
		"order_id", p.OrderID,
		"transaction_id", p.TransactionID,
		"amount", p.Amount.Amount,
	)
}

// OnPaymentRejected implements plugin.OnPaymentRejected. Signature failures
// are recorded as access events since they indicate a forged or corrupted
// claim.
func (e *Extension) OnPaymentRejected(ctx context.Context, rentID id.RentID, claim gateway.Claim, reason error) error {
	category, severity := CategoryPayment, SeverityWarning
	if errors.Is(reason, gateway.ErrVerification) {
		category, severity = CategoryAccess, SeverityCritical
	}
	return e.record(ctx, ActionPaymentRejected, severity, OutcomeFailure,
		ResourceRent, rentID.String(), category, reason,
		"order_id", claim.OrderID,
		"transaction_id", claim.PaymentID,
	)
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceRendered implements plugin.OnInvoiceRendered.
func (e *Extension) OnInvoiceRendered(ctx context.Context, r *rent.Rent, size int) error {
	return e.record(ctx, ActionInvoiceRendered, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, r.ID.String(), CategoryBilling, nil,
		"bytes", size,
		"status", string(r.Status),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}
	if severityRank[severity] < e.minSeverity {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
