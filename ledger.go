package rentledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/clock"
	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/invoice"
	"github.com/xraph/rentledger/notify"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/plugin"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/types"
)

// Notification text sent to a student once their rent is settled.
const (
	PaymentReceivedSubject = "Rent Payment Received"
	paymentReceivedBody    = "Your payment of %s has been confirmed."
)

// DefaultLateFee is charged once on overdue rent unless configured otherwise.
var DefaultLateFee = types.INR(20000)

// Ledger is the rent billing engine.
type Ledger struct {
	store    store.Store
	gateway  gateway.Gateway
	plugins  *plugin.Registry
	logger   *slog.Logger
	clock    clock.Clock
	notifier notify.Notifier

	// Configuration
	lateFee      types.Money
	dueDayOffset int
	currency     string
	method       string
	bindOrders   bool
}

// New creates a new Ledger instance. gw may be nil for batch-only use;
// payment operations then fail with ErrGatewayNotConfigured.
func New(s store.Store, gw gateway.Gateway, opts ...Option) *Ledger {
	l := &Ledger{
		store:        s,
		gateway:      gw,
		plugins:      plugin.NewRegistry(),
		logger:       slog.Default(),
		clock:        clock.System,
		lateFee:      DefaultLateFee,
		dueDayOffset: rent.DefaultDueDayOffset,
		currency:     types.DefaultCurrency,
		method:       payment.DefaultMethod,
		bindOrders:   true,
	}

	for _, opt := range opts {
		opt(l)
	}

	// The late fee is always charged in the ledger currency.
	l.lateFee = types.New(l.lateFee.Amount, l.currency)
	if l.notifier == nil {
		l.notifier = notify.Log{Logger: l.logger}
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the clock used when a batch job is given no date.
func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

// WithLateFee sets the one-time fee charged on overdue rent.
func WithLateFee(fee types.Money) Option {
	return func(l *Ledger) { l.lateFee = fee }
}

// WithDueDayOffset sets how many days after the first of the month rent is due.
func WithDueDayOffset(days int) Option {
	return func(l *Ledger) { l.dueDayOffset = days }
}

// WithCurrency sets the billing currency.
func WithCurrency(currency string) Option {
	return func(l *Ledger) { l.currency = types.Zero(currency).Currency }
}

// WithPaymentMethod sets the method recorded on captured payments.
func WithPaymentMethod(method string) Option {
	return func(l *Ledger) { l.method = method }
}

// WithNotifier sets the notifier used for payment confirmations.
func WithNotifier(n notify.Notifier) Option {
	return func(l *Ledger) { l.notifier = n }
}

// WithOrderBinding controls whether a payment claim's order is fetched and
// checked against the rent's receipt and total before settlement.
func WithOrderBinding(enabled bool) Option {
	return func(l *Ledger) { l.bindOrders = enabled }
}

// Start migrates the store and initializes plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if err := l.store.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("rentledger started",
		"late_fee", l.lateFee.String(),
		"due_day_offset", l.dueDayOffset,
		"currency", l.currency,
		"order_binding", l.bindOrders,
		"plugins", l.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	l.plugins.EmitShutdown(context.Background())
	return l.store.Close()
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// LateFee returns the configured late fee.
func (l *Ledger) LateFee() types.Money { return l.lateFee }

// DueDayOffset returns how many days after the first of the month rent is due.
func (l *Ledger) DueDayOffset() int { return l.dueDayOffset }

// ──────────────────────────────────────────────────
// Residents
// ──────────────────────────────────────────────────

// UpsertResident records a student's housing state.
func (l *Ledger) UpsertResident(ctx context.Context, r *housing.Resident) error {
	if r.StudentID.IsNil() {
		return ValidationError{Field: "student_id", Message: "required"}
	}
	if r.Username == "" {
		return ValidationError{Field: "username", Message: "required"}
	}
	if r.Housed {
		if err := l.checkRentAmount(r.RentAmount); err != nil {
			return err
		}
	}

	now := l.clock.Now()
	if r.CreatedAt.IsZero() {
		r.Entity = types.NewEntity(now)
	} else {
		r.Touch(now)
	}
	return l.store.UpsertResident(ctx, r)
}

// GetResident returns a student's housing state.
func (l *Ledger) GetResident(ctx context.Context, studentID id.StudentID) (*housing.Resident, error) {
	return l.store.GetResident(ctx, studentID)
}

func (l *Ledger) checkRentAmount(m types.Money) error {
	switch {
	case !m.IsPositive():
		return ValidationError{Field: "rent_amount", Message: "must be positive"}
	case m.Currency != l.currency:
		return ValidationError{Field: "rent_amount", Message: fmt.Sprintf("currency %s, want %s", m.Code(), types.Zero(l.currency).Code())}
	}
	return nil
}

// ──────────────────────────────────────────────────
// Batch jobs
// ──────────────────────────────────────────────────

// GenerateRent creates the month's unpaid obligation for every housed
// resident that does not have one yet, and returns how many it created.
// A zero ref uses the ledger clock. Residents without a valid rent amount
// are skipped.
func (l *Ledger) GenerateRent(ctx context.Context, ref time.Time) (int, error) {
	start := time.Now()
	now := l.clock.Now()
	if ref.IsZero() {
		ref = now
	}

	residents, err := l.store.ListHousedResidents(ctx)
	if err = l.skipMalformed("generate rent", err); err != nil {
		return 0, fmt.Errorf("generate rent: list residents: %w", err)
	}

	created := 0
	for _, res := range residents {
		if err := ctx.Err(); err != nil {
			return created, err
		}

		if err := l.checkRentAmount(res.RentAmount); err != nil {
			l.logger.Warn("skipping resident",
				"student_id", res.StudentID.String(),
				"error", err,
			)
			continue
		}

		r := rent.New(res.StudentID, res.RentAmount, ref, l.dueDayOffset, now)
		ok, err := l.store.CreateRentIfAbsent(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return created, ctx.Err()
			}
			l.logger.Warn("rent generation failed for resident",
				"student_id", res.StudentID.String(),
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		created++
		l.plugins.EmitRentGenerated(ctx, r)
	}

	elapsed := time.Since(start)
	l.logger.Info("rent generated",
		"month", clock.MonthStart(ref).Format("2006-01"),
		"residents", len(residents),
		"created", created,
		"elapsed", elapsed,
	)
	l.plugins.EmitBatchCompleted(ctx, plugin.JobGenerateRent, created, elapsed)

	return created, nil
}

// ApplyLateFees charges the late fee on every unpaid obligation whose due
// date is before today and that has not been charged yet. It returns how
// many obligations changed. A zero today uses the ledger clock.
func (l *Ledger) ApplyLateFees(ctx context.Context, today time.Time) (int, error) {
	if !l.lateFee.IsPositive() {
		return 0, ValidationError{Field: "late_fee", Message: "must be positive"}
	}

	start := time.Now()
	if today.IsZero() {
		today = l.clock.Now()
	}
	day := clock.Day(today)

	candidates, err := l.store.ListLateFeeCandidates(ctx, day)
	if err = l.skipMalformed("apply late fees", err); err != nil {
		return 0, fmt.Errorf("apply late fees: list candidates: %w", err)
	}

	applied := 0
	for _, r := range candidates {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		if r.Amount.Currency != l.lateFee.Currency {
			l.logger.Warn("skipping rent in foreign currency",
				"rent_id", r.ID.String(),
				"currency", r.Amount.Code(),
			)
			continue
		}

		ok, err := l.store.ApplyLateFee(ctx, r.ID, l.lateFee, day)
		if err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			l.logger.Warn("late fee failed for rent",
				"rent_id", r.ID.String(),
				"error", err,
			)
			continue
		}
		if !ok {
			continue
		}

		applied++
		r.LateFee = l.lateFee
		l.plugins.EmitLateFeeApplied(ctx, r, l.lateFee)
	}

	elapsed := time.Since(start)
	l.logger.Info("late fees applied",
		"date", day.Format(time.DateOnly),
		"candidates", len(candidates),
		"applied", applied,
		"elapsed", elapsed,
	)
	l.plugins.EmitBatchCompleted(ctx, plugin.JobApplyLateFees, applied, elapsed)

	return applied, nil
}

// ──────────────────────────────────────────────────
// Request operations
// ──────────────────────────────────────────────────

// GetRent returns a rent the caller may see.
func (l *Ledger) GetRent(ctx context.Context, caller auth.Caller, rentID id.RentID) (*rent.Rent, error) {
	return l.authorizedRent(ctx, caller, rentID)
}

// ListRents lists the caller's rents, newest month first. Privileged callers
// see every student's rents unless opts.StudentID narrows them. Staff without
// a student id own no rent and get an empty list.
func (l *Ledger) ListRents(ctx context.Context, caller auth.Caller, opts rent.ListOpts) ([]*rent.Rent, error) {
	if opts.Offset < 0 || opts.Limit < 0 {
		return nil, ValidationError{Field: "offset", Message: "limit and offset must not be negative"}
	}

	switch {
	case caller.Role.Privileged():
	case caller.Role == auth.RoleStaff && caller.StudentID.IsNil():
		return []*rent.Rent{}, nil
	case (caller.Role == auth.RoleStudent || caller.Role == auth.RoleStaff) && !caller.StudentID.IsNil():
		opts.StudentID = caller.StudentID
	default:
		return nil, ErrForbidden
	}
	rents, err := l.store.ListRents(ctx, opts)
	if err = l.skipMalformed("list rents", err); err != nil {
		return nil, err
	}
	return rents, nil
}

// ListPayments lists the payments recorded against a rent.
func (l *Ledger) ListPayments(ctx context.Context, caller auth.Caller, rentID id.RentID) ([]*payment.Payment, error) {
	if _, err := l.authorizedRent(ctx, caller, rentID); err != nil {
		return nil, err
	}
	payments, err := l.store.ListPayments(ctx, rentID)
	if err = l.skipMalformed("list payments", err); err != nil {
		return nil, err
	}
	return payments, nil
}

// skipMalformed logs rows a store could not decode and drops the error so
// the rows it did decode are still served.
func (l *Ledger) skipMalformed(op string, err error) error {
	errs, ok := OnlyMalformed(err)
	if !ok {
		return err
	}
	for _, e := range errs {
		l.logger.Warn("skipping malformed record", "op", op, "error", e)
	}
	return nil
}

// CreatePaymentOrder opens a gateway order for the rent's current total.
func (l *Ledger) CreatePaymentOrder(ctx context.Context, caller auth.Caller, rentID id.RentID) (*gateway.Order, error) {
	r, err := l.authorizedRent(ctx, caller, rentID)
	if err != nil {
		return nil, err
	}
	if r.IsPaid() {
		return nil, ErrAlreadySettled
	}
	if l.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	total := r.Total()
	order, err := l.gateway.CreateOrder(ctx, gateway.OrderRequest{
		Amount:   total.Amount,
		Currency: total.Code(),
		Receipt:  r.Receipt(),
		Notes: map[string]string{
			"rent_id":    r.ID.String(),
			"student_id": r.StudentID.String(),
		},
	})
	if err != nil {
		l.logger.Error("create payment order failed",
			"rent_id", r.ID.String(),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
	}

	l.logger.Info("payment order created",
		"rent_id", r.ID.String(),
		"order_id", order.ID,
		"amount", total.String(),
	)
	l.plugins.EmitPaymentOrderCreated(ctx, r, order)

	return order, nil
}

// SubmitPaymentClaim verifies a client's payment claim and, if it holds,
// settles the rent. A rejected claim changes nothing.
func (l *Ledger) SubmitPaymentClaim(ctx context.Context, caller auth.Caller, rentID id.RentID, claim gateway.Claim) (*payment.Payment, error) {
	r, err := l.authorizedRent(ctx, caller, rentID)
	if err != nil {
		return nil, err
	}
	return l.settle(ctx, r, claim)
}

// RecordPayment settles a rent from a claim received on a trusted path,
// such as a gateway webhook. The claim is verified but no caller is checked.
func (l *Ledger) RecordPayment(ctx context.Context, rentID id.RentID, claim gateway.Claim) (*payment.Payment, error) {
	r, err := l.store.GetRent(ctx, rentID)
	if err != nil {
		return nil, err
	}
	return l.settle(ctx, r, claim)
}

// RenderInvoice returns the rent's invoice as PDF bytes.
func (l *Ledger) RenderInvoice(ctx context.Context, caller auth.Caller, rentID id.RentID) ([]byte, error) {
	r, err := l.authorizedRent(ctx, caller, rentID)
	if err != nil {
		return nil, err
	}

	res, err := l.store.GetResident(ctx, r.StudentID)
	if err != nil && !IsNotFound(err) {
		return nil, fmt.Errorf("render invoice: load resident: %w", err)
	}

	pdf, err := invoice.PDF(invoice.NewSnapshot(r, res))
	if err != nil {
		return nil, err
	}

	l.plugins.EmitInvoiceRendered(ctx, r, len(pdf))
	return pdf, nil
}

func (l *Ledger) authorizedRent(ctx context.Context, caller auth.Caller, rentID id.RentID) (*rent.Rent, error) {
	if rentID.IsNil() {
		return nil, ErrRentNotFound
	}
	r, err := l.store.GetRent(ctx, rentID)
	if err != nil {
		return nil, err
	}
	if !caller.CanAccess(r.StudentID) {
		return nil, ErrForbidden
	}
	return r, nil
}

func (l *Ledger) settle(ctx context.Context, r *rent.Rent, claim gateway.Claim) (*payment.Payment, error) {
	p, err := l.verifyAndSettle(ctx, r, claim)
	if err != nil {
		l.logger.Warn("payment claim rejected",
			"rent_id", r.ID.String(),
			"order_id", claim.OrderID,
			"payment_id", claim.PaymentID,
			"error", err,
		)
		l.plugins.EmitPaymentRejected(ctx, r.ID, claim, err)
		return nil, err
	}
	return p, nil
}

func (l *Ledger) verifyAndSettle(ctx context.Context, r *rent.Rent, claim gateway.Claim) (*payment.Payment, error) {
	if l.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if err := l.gateway.VerifyPayment(ctx, claim); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVerificationFailed, err)
	}
	if r.IsPaid() {
		return nil, ErrAlreadySettled
	}

	total := r.Total()
	if l.bindOrders {
		order, err := l.gateway.FetchOrder(ctx, claim.OrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrGatewayUnavailable, err)
		}
		if order.Receipt != r.Receipt() {
			return nil, fmt.Errorf("%w: receipt %q", ErrOrderMismatch, order.Receipt)
		}
		if order.Amount != total.Amount {
			return nil, fmt.Errorf("%w: order amount %d, rent total %d", ErrAmountMismatch, order.Amount, total.Amount)
		}
	}

	now := l.clock.Now().UTC()
	p := &payment.Payment{
		Entity:        types.NewEntity(now),
		ID:            id.NewPaymentID(),
		RentID:        r.ID,
		OrderID:       claim.OrderID,
		TransactionID: claim.PaymentID,
		Amount:        total,
		Status:        payment.StatusCaptured,
		Method:        l.method,
		CapturedAt:    now,
	}

	settled, err := l.store.SettleRent(ctx, p)
	if err != nil {
		return nil, err
	}

	l.logger.Info("rent settled",
		"rent_id", settled.ID.String(),
		"payment_id", p.ID.String(),
		"transaction_id", p.TransactionID,
		"amount", p.Amount.String(),
	)

	l.notifyPaid(ctx, settled, p)
	l.plugins.EmitPaymentCaptured(ctx, settled, p)

	return p, nil
}

// notifyPaid tells the student their payment went through. Delivery
// failures are logged; the settlement stands.
func (l *Ledger) notifyPaid(ctx context.Context, r *rent.Rent, p *payment.Payment) {
	msg := notify.Message{
		Recipient: r.StudentID,
		Subject:   PaymentReceivedSubject,
		Body:      fmt.Sprintf(paymentReceivedBody, p.Amount.String()),
	}
	if err := l.notifier.Notify(ctx, msg); err != nil {
		l.logger.Error("payment notification failed",
			"rent_id", r.ID.String(),
			"student_id", r.StudentID.String(),
			"error", err,
		)
	}
}
