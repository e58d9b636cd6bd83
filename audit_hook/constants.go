package audithook

// Action constants for audit events.
const (
	// Rent actions
	ActionRentGenerated  = "rent.generated"
	ActionLateFeeApplied = "rent.late_fee_applied"
	ActionBatchCompleted = "batch.completed"

	// Payment actions
	ActionOrderCreated    = "payment.order_created"
	ActionPaymentCaptured = "payment.captured"
	ActionPaymentRejected = "payment.rejected"

	// Invoice actions
	ActionInvoiceRendered = "invoice.rendered"
)

// Resource constants for audit events.
const (
	ResourceRent    = "rent"
	ResourcePayment = "payment"
	ResourceInvoice = "invoice"
	ResourceBatch   = "batch"
)

// Category constants for audit events.
const (
	CategoryBilling = "billing"
	CategoryPayment = "payment"
	CategoryAccess  = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
