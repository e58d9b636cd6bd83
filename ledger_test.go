package rentledger_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/auth"
	"github.com/xraph/rentledger/clock"
	"github.com/xraph/rentledger/gateway"
	"github.com/xraph/rentledger/gateway/gatewaytest"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/notify"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/store/memory"
	"github.com/xraph/rentledger/types"
)

var (
	jan5  = time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)
	jan10 = time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	jan15 = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	jan20 = time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
)

type fixture struct {
	ledger  *rentledger.Ledger
	store   *memory.Store
	gw      *gatewaytest.Server
	notes   *notify.Recorder
	events  *recorder
	student id.StudentID
}

func newFixture(t *testing.T, opts ...rentledger.Option) *fixture {
	t.Helper()

	gw := gatewaytest.NewServer()
	t.Cleanup(gw.Close)

	f := &fixture{
		store:   memory.New(),
		gw:      gw,
		notes:   &notify.Recorder{},
		events:  &recorder{},
		student: id.NewStudentID(),
	}

	opts = append([]rentledger.Option{
		rentledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		rentledger.WithClock(clock.Fixed(jan5)),
		rentledger.WithNotifier(f.notes),
		rentledger.WithPlugin(f.events),
	}, opts...)
	f.ledger = rentledger.New(f.store, gw.Client(), opts...)

	ctx := context.Background()
	if err := f.ledger.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	f.addResident(t, f.student, true)
	return f
}

func (f *fixture) addResident(t *testing.T, studentID id.StudentID, housed bool) {
	t.Helper()
	err := f.ledger.UpsertResident(context.Background(), &housing.Resident{
		StudentID:  studentID,
		Username:   "student-" + studentID.String()[len(studentID.String())-4:],
		FullName:   "Asha Rao",
		HostelName: "Block A",
		BedLabel:   "A-101-1",
		RentAmount: types.MustParseMoney("5000.00", "inr"),
		Housed:     housed,
	})
	if err != nil {
		t.Fatalf("UpsertResident: %v", err)
	}
}

// januaryRent generates January's obligations and returns the fixture
// student's rent.
func (f *fixture) januaryRent(t *testing.T) *rent.Rent {
	t.Helper()
	ctx := context.Background()
	if _, err := f.ledger.GenerateRent(ctx, jan5); err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	rents, err := f.ledger.ListRents(ctx, auth.Student(f.student), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	if len(rents) != 1 {
		t.Fatalf("got %d rents, want 1", len(rents))
	}
	return rents[0]
}

// paidClaim opens an order for the rent as its student and completes checkout.
func (f *fixture) paidClaim(t *testing.T, rentID id.RentID) gateway.Claim {
	t.Helper()
	order, err := f.ledger.CreatePaymentOrder(context.Background(), auth.Student(f.student), rentID)
	if err != nil {
		t.Fatalf("CreatePaymentOrder: %v", err)
	}
	return f.gw.Pay(order.ID)
}

func (f *fixture) payments(t *testing.T, rentID id.RentID) []*payment.Payment {
	t.Helper()
	ps, err := f.ledger.ListPayments(context.Background(), auth.Manager(), rentID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	return ps
}

type recorder struct {
	mu        sync.Mutex
	generated int
	fees      int
	captured  int
	rejected  []error
	batches   []string
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnRentGenerated(context.Context, *rent.Rent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generated++
	return nil
}

func (r *recorder) OnLateFeeApplied(context.Context, *rent.Rent, types.Money) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fees++
	return nil
}

func (r *recorder) OnBatchCompleted(_ context.Context, job string, count int, _ time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, fmt.Sprintf("%s=%d", job, count))
	return nil
}

func (r *recorder) OnPaymentCaptured(context.Context, *rent.Rent, *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured++
	return nil
}

func (r *recorder) OnPaymentRejected(_ context.Context, _ id.RentID, _ gateway.Claim, reason error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rejected = append(r.rejected, reason)
	return nil
}

func TestGenerateRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addResident(t, id.NewStudentID(), false)

	created, err := f.ledger.GenerateRent(ctx, jan5)
	if err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (unhoused residents are not billed)", created)
	}

	created, err = f.ledger.GenerateRent(ctx, jan20)
	if err != nil {
		t.Fatalf("GenerateRent again: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created %d, want 0", created)
	}

	rents, err := f.ledger.ListRents(ctx, auth.Manager(), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	if len(rents) != 1 {
		t.Fatalf("got %d rents, want 1", len(rents))
	}
	r := rents[0]
	if r.StudentID != f.student || !r.Amount.Equal(types.INR(500000)) {
		t.Errorf("unexpected rent %+v", r)
	}
	if got := r.DueDate.Format(time.DateOnly); got != "2024-01-10" {
		t.Errorf("due date = %s, want 2024-01-10", got)
	}
	if r.Status != rent.StatusUnpaid || !r.LateFee.IsZero() {
		t.Errorf("new rent should be unpaid without fee: %+v", r)
	}

	want := []string{"generate-rent=1", "generate-rent=0"}
	if strings.Join(f.events.batches, ",") != strings.Join(want, ",") {
		t.Errorf("batches = %v, want %v", f.events.batches, want)
	}
	if f.events.generated != 1 {
		t.Errorf("generated events = %d, want 1", f.events.generated)
	}
}

func TestGenerateRentDefaultsToClock(t *testing.T) {
	f := newFixture(t)
	if _, err := f.ledger.GenerateRent(context.Background(), time.Time{}); err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	r := f.januaryRent(t)
	if got := r.Month.Format("2006-01"); got != "2024-01" {
		t.Errorf("month = %s, want 2024-01", got)
	}
}

func TestGenerateRentSkipsResidentWithoutRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Written through the store so the engine's own validation is bypassed.
	unpriced := &housing.Resident{
		Entity:    types.NewEntity(jan5),
		StudentID: id.NewStudentID(),
		Username:  "unpriced",
		Housed:    true,
	}
	if err := f.store.UpsertResident(ctx, unpriced); err != nil {
		t.Fatalf("store UpsertResident: %v", err)
	}

	created, err := f.ledger.GenerateRent(ctx, jan5)
	if err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}
	rents, err := f.ledger.ListRents(ctx, auth.Student(unpriced.StudentID), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	if len(rents) != 0 {
		t.Errorf("resident without rent was billed %d times", len(rents))
	}
}

// faultyStore fails writes for one student or rent and reports a malformed
// row next to every list of residents or candidates.
type faultyStore struct {
	*memory.Store
	badStudent id.StudentID
	badRent    id.RentID
}

func (s *faultyStore) ListHousedResidents(ctx context.Context) ([]*housing.Resident, error) {
	list, err := s.Store.ListHousedResidents(ctx)
	if err != nil {
		return nil, err
	}
	var skipped rentledger.MultiError
	skipped.Add(fmt.Errorf("%w: resident %q", rentledger.ErrMalformedRecord, "legacy-42"))
	return list, skipped
}

func (s *faultyStore) CreateRentIfAbsent(ctx context.Context, r *rent.Rent) (bool, error) {
	if r.StudentID == s.badStudent {
		return false, errors.New("disk full")
	}
	return s.Store.CreateRentIfAbsent(ctx, r)
}

func (s *faultyStore) ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error) {
	if rentID == s.badRent {
		return false, errors.New("disk full")
	}
	return s.Store.ApplyLateFee(ctx, rentID, fee, today)
}

func TestBatchRecordFailuresDoNotAbortRun(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	fs := &faultyStore{Store: mem, badStudent: id.NewStudentID()}
	l := rentledger.New(fs, nil,
		rentledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		rentledger.WithClock(clock.Fixed(jan5)),
	)

	students := []id.StudentID{fs.badStudent, id.NewStudentID(), id.NewStudentID()}
	for _, sid := range students {
		err := l.UpsertResident(ctx, &housing.Resident{
			StudentID:  sid,
			Username:   "resident",
			RentAmount: types.INR(500000),
			Housed:     true,
		})
		if err != nil {
			t.Fatalf("UpsertResident: %v", err)
		}
	}

	created, err := l.GenerateRent(ctx, jan5)
	if err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	if created != 2 {
		t.Errorf("created = %d, want 2", created)
	}

	rents, err := l.ListRents(ctx, auth.Student(students[1]), rent.ListOpts{})
	if err != nil || len(rents) != 1 {
		t.Fatalf("ListRents = %d, %v", len(rents), err)
	}
	fs.badRent = rents[0].ID

	applied, err := l.ApplyLateFees(ctx, jan15)
	if err != nil {
		t.Fatalf("ApplyLateFees: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}
}

func TestApplyLateFees(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	tests := []struct {
		name  string
		today time.Time
		want  int
	}{
		{"on due date", jan10, 0},
		{"after due date", jan15, 1},
		{"already charged", jan20, 0},
	}
	for _, tt := range tests {
		got, err := f.ledger.ApplyLateFees(ctx, tt.today)
		if err != nil {
			t.Fatalf("%s: ApplyLateFees: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: applied = %d, want %d", tt.name, got, tt.want)
		}
	}

	r, err := f.ledger.GetRent(ctx, auth.Student(f.student), r.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if got := r.LateFee.FormatMajor(); got != "200.00" {
		t.Errorf("late fee = %s, want 200.00", got)
	}
	if r.Total().Amount != 520000 {
		t.Errorf("total = %d, want 520000", r.Total().Amount)
	}
	if f.events.fees != 1 {
		t.Errorf("late fee events = %d, want 1", f.events.fees)
	}
}

func TestApplyLateFeesSkipsPaidRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	if _, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, f.paidClaim(t, r.ID)); err != nil {
		t.Fatalf("SubmitPaymentClaim: %v", err)
	}
	applied, err := f.ledger.ApplyLateFees(ctx, jan15)
	if err != nil {
		t.Fatalf("ApplyLateFees: %v", err)
	}
	if applied != 0 {
		t.Errorf("applied = %d to a paid rent", applied)
	}
}

func TestApplyLateFeesRejectsNonPositiveFee(t *testing.T) {
	f := newFixture(t, rentledger.WithLateFee(types.INR(0)))
	_, err := f.ledger.ApplyLateFees(context.Background(), jan15)
	if !rentledger.IsValidation(err) {
		t.Errorf("got %v, want validation error", err)
	}
}

func TestPaymentSettlesRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)
	if _, err := f.ledger.ApplyLateFees(ctx, jan15); err != nil {
		t.Fatalf("ApplyLateFees: %v", err)
	}

	order, err := f.ledger.CreatePaymentOrder(ctx, auth.Student(f.student), r.ID)
	if err != nil {
		t.Fatalf("CreatePaymentOrder: %v", err)
	}
	if order.Amount != 520000 || order.Currency != "INR" {
		t.Errorf("order = %d %s, want 520000 INR", order.Amount, order.Currency)
	}
	if order.Receipt != r.ID.String() {
		t.Errorf("receipt = %q, want %q", order.Receipt, r.ID)
	}

	claim := f.gw.Pay(order.ID)
	p, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim)
	if err != nil {
		t.Fatalf("SubmitPaymentClaim: %v", err)
	}
	if p.Amount.FormatMajor() != "5200.00" || p.Status != payment.StatusCaptured {
		t.Errorf("payment = %s %s, want captured 5200.00", p.Amount.FormatMajor(), p.Status)
	}
	if p.TransactionID != claim.PaymentID || p.OrderID != order.ID {
		t.Errorf("payment references = %s/%s", p.OrderID, p.TransactionID)
	}
	if !p.CapturedAt.Equal(jan5) {
		t.Errorf("captured at = %v, want clock time", p.CapturedAt)
	}

	settled, err := f.ledger.GetRent(ctx, auth.Manager(), r.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if !settled.IsPaid() || settled.PaidAt == nil {
		t.Errorf("rent not paid: %+v", settled)
	}
	if got := f.payments(t, r.ID); len(got) != 1 {
		t.Errorf("payments = %d, want 1", len(got))
	}

	msgs := f.notes.For(f.student)
	if len(msgs) != 1 {
		t.Fatalf("notifications = %d, want 1", len(msgs))
	}
	if msgs[0].Subject != rentledger.PaymentReceivedSubject {
		t.Errorf("subject = %q", msgs[0].Subject)
	}
	if want := "Your payment of ₹5200.00 has been confirmed."; msgs[0].Body != want {
		t.Errorf("body = %q, want %q", msgs[0].Body, want)
	}
	if f.events.captured != 1 {
		t.Errorf("captured events = %d, want 1", f.events.captured)
	}

	if _, err := f.ledger.CreatePaymentOrder(ctx, auth.Student(f.student), r.ID); !rentledger.IsAlreadySettled(err) {
		t.Errorf("order on paid rent: got %v, want already settled", err)
	}
}

func TestRejectedClaims(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(f *fixture, c gateway.Claim) gateway.Claim
		want   error
	}{
		{
			name: "tampered signature",
			tamper: func(_ *fixture, c gateway.Claim) gateway.Claim {
				c.Signature = strings.Repeat("0", len(c.Signature))
				return c
			},
			want: rentledger.ErrVerificationFailed,
		},
		{
			name: "swapped payment id",
			tamper: func(_ *fixture, c gateway.Claim) gateway.Claim {
				c.PaymentID = gatewaytest.NewPaymentID()
				return c
			},
			want: rentledger.ErrVerificationFailed,
		},
		{
			name: "empty signature",
			tamper: func(_ *fixture, c gateway.Claim) gateway.Claim {
				c.Signature = ""
				return c
			},
			want: rentledger.ErrVerificationFailed,
		},
		{
			name: "signed with another secret",
			tamper: func(_ *fixture, c gateway.Claim) gateway.Claim {
				c.Signature = gateway.Sign("not-the-secret", c.OrderID, c.PaymentID)
				return c
			},
			want: rentledger.ErrVerificationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			r := f.januaryRent(t)

			claim := tt.tamper(f, f.paidClaim(t, r.ID))
			_, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim)
			if !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
			if rentledger.KindOf(err) != rentledger.KindVerificationFailed {
				t.Errorf("kind = %s, want verification_failed", rentledger.KindOf(err))
			}

			got, err := f.ledger.GetRent(ctx, auth.Manager(), r.ID)
			if err != nil {
				t.Fatalf("GetRent: %v", err)
			}
			if got.IsPaid() {
				t.Error("rejected claim settled the rent")
			}
			if n := len(f.payments(t, r.ID)); n != 0 {
				t.Errorf("payments = %d, want 0", n)
			}
			if n := len(f.notes.Messages()); n != 0 {
				t.Errorf("notifications = %d, want 0", n)
			}
			if len(f.events.rejected) != 1 {
				t.Errorf("rejected events = %d, want 1", len(f.events.rejected))
			}
		})
	}
}

func TestClaimForAnotherRentsOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	jan := f.januaryRent(t)
	if _, err := f.ledger.GenerateRent(ctx, jan5.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}
	rents, err := f.ledger.ListRents(ctx, auth.Student(f.student), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	feb := rents[0]

	claim := f.paidClaim(t, jan.ID)
	_, err = f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), feb.ID, claim)
	if !errors.Is(err, rentledger.ErrOrderMismatch) {
		t.Fatalf("got %v, want ErrOrderMismatch", err)
	}
	if rentledger.KindOf(err) != rentledger.KindVerificationFailed {
		t.Errorf("kind = %s", rentledger.KindOf(err))
	}
}

func TestStaleOrderAfterLateFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	claim := f.paidClaim(t, r.ID) // order for 5000.00
	if _, err := f.ledger.ApplyLateFees(ctx, jan15); err != nil {
		t.Fatalf("ApplyLateFees: %v", err)
	}

	_, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim)
	if !errors.Is(err, rentledger.ErrAmountMismatch) {
		t.Fatalf("got %v, want ErrAmountMismatch", err)
	}
}

func TestReplayedClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)
	claim := f.paidClaim(t, r.ID)

	if _, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim); err != nil {
		t.Fatalf("SubmitPaymentClaim: %v", err)
	}
	_, err := f.ledger.RecordPayment(ctx, r.ID, claim)
	if !rentledger.IsAlreadySettled(err) {
		t.Errorf("replay: got %v, want already settled", err)
	}
	if n := len(f.payments(t, r.ID)); n != 1 {
		t.Errorf("payments = %d, want 1", n)
	}
	if n := len(f.notes.Messages()); n != 1 {
		t.Errorf("notifications = %d, want 1", n)
	}
}

func TestConcurrentClaims(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	order, err := f.ledger.CreatePaymentOrder(ctx, auth.Student(f.student), r.ID)
	if err != nil {
		t.Fatalf("CreatePaymentOrder: %v", err)
	}

	const n = 10
	claims := make([]gateway.Claim, n)
	for i := range claims {
		claims[i] = f.gw.Pay(order.ID)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range claims {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claims[i])
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case rentledger.IsAlreadySettled(err):
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("successful claims = %d, want 1", wins)
	}
	if got := len(f.payments(t, r.ID)); got != 1 {
		t.Errorf("payments = %d, want 1", got)
	}
	if got := len(f.notes.Messages()); got != 1 {
		t.Errorf("notifications = %d, want 1", got)
	}
}

func TestAccessControl(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	other := id.NewStudentID()
	f.addResident(t, other, true)
	if _, err := f.ledger.GenerateRent(ctx, jan5); err != nil {
		t.Fatalf("GenerateRent: %v", err)
	}

	intruder := auth.Student(other)
	nobody := auth.Caller{Role: auth.Role("visitor")}

	for _, caller := range []auth.Caller{intruder, nobody, auth.Staff()} {
		if _, err := f.ledger.GetRent(ctx, caller, r.ID); !rentledger.IsForbidden(err) {
			t.Errorf("%s GetRent: got %v, want forbidden", caller.Role, err)
		}
		if _, err := f.ledger.CreatePaymentOrder(ctx, caller, r.ID); !rentledger.IsForbidden(err) {
			t.Errorf("%s CreatePaymentOrder: got %v, want forbidden", caller.Role, err)
		}
		if _, err := f.ledger.SubmitPaymentClaim(ctx, caller, r.ID, gateway.Claim{}); !rentledger.IsForbidden(err) {
			t.Errorf("%s SubmitPaymentClaim: got %v, want forbidden", caller.Role, err)
		}
		if _, err := f.ledger.RenderInvoice(ctx, caller, r.ID); !rentledger.IsForbidden(err) {
			t.Errorf("%s RenderInvoice: got %v, want forbidden", caller.Role, err)
		}
	}

	own, err := f.ledger.ListRents(ctx, intruder, rent.ListOpts{StudentID: f.student})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	if len(own) != 1 || own[0].StudentID != other {
		t.Errorf("student listing leaked another student's rent")
	}
	if _, err := f.ledger.ListRents(ctx, nobody, rent.ListOpts{}); !rentledger.IsForbidden(err) {
		t.Errorf("unknown role ListRents: got %v, want forbidden", err)
	}

	staff, err := f.ledger.ListRents(ctx, auth.Staff(), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents staff: %v", err)
	}
	if len(staff) != 0 {
		t.Errorf("staff sees %d rents, want 0", len(staff))
	}

	all, err := f.ledger.ListRents(ctx, auth.Manager(), rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents manager: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("manager sees %d rents, want 2", len(all))
	}

	if _, err := f.ledger.ListRents(ctx, auth.Manager(), rent.ListOpts{Offset: -1}); !rentledger.IsValidation(err) {
		t.Errorf("negative offset: got %v, want validation error", err)
	}

	if _, err := f.ledger.GetRent(ctx, auth.Manager(), id.NewRentID()); !rentledger.IsNotFound(err) {
		t.Errorf("unknown rent: got %v, want not found", err)
	}
}

func TestGatewayFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)
	claim := f.paidClaim(t, r.ID)

	f.gw.FailWith(http.StatusServiceUnavailable)
	_, err := f.ledger.CreatePaymentOrder(ctx, auth.Student(f.student), r.ID)
	if rentledger.KindOf(err) != rentledger.KindGatewayUnavailable {
		t.Errorf("CreatePaymentOrder: kind = %s (%v)", rentledger.KindOf(err), err)
	}

	_, err = f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim)
	if rentledger.KindOf(err) != rentledger.KindGatewayUnavailable {
		t.Errorf("SubmitPaymentClaim: kind = %s (%v)", rentledger.KindOf(err), err)
	}

	f.gw.FailWith(0)
	if _, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim); err != nil {
		t.Errorf("claim after recovery: %v", err)
	}
}

func TestWithoutOrderBinding(t *testing.T) {
	f := newFixture(t, rentledger.WithOrderBinding(false))
	ctx := context.Background()
	r := f.januaryRent(t)
	claim := f.paidClaim(t, r.ID)

	before := f.gw.Requests()
	if _, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, claim); err != nil {
		t.Fatalf("SubmitPaymentClaim: %v", err)
	}
	if after := f.gw.Requests(); after != before {
		t.Errorf("gateway called %d times during verification, want 0", after-before)
	}
}

func TestWithoutGateway(t *testing.T) {
	l := rentledger.New(memory.New(), nil,
		rentledger.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		rentledger.WithNotifier(&notify.Recorder{}),
	)
	ctx := context.Background()
	student := id.NewStudentID()
	if err := l.UpsertResident(ctx, &housing.Resident{
		StudentID:  student,
		Username:   "ravi",
		RentAmount: types.INR(450000),
		Housed:     true,
	}); err != nil {
		t.Fatalf("UpsertResident: %v", err)
	}
	if n, err := l.GenerateRent(ctx, jan5); err != nil || n != 1 {
		t.Fatalf("GenerateRent = %d, %v", n, err)
	}
	rents, err := l.ListRents(ctx, auth.Student(student), rent.ListOpts{})
	if err != nil || len(rents) != 1 {
		t.Fatalf("ListRents = %d, %v", len(rents), err)
	}

	_, err = l.CreatePaymentOrder(ctx, auth.Student(student), rents[0].ID)
	if !errors.Is(err, rentledger.ErrGatewayNotConfigured) {
		t.Errorf("got %v, want ErrGatewayNotConfigured", err)
	}
	_, err = l.RecordPayment(ctx, rents[0].ID, gateway.Claim{OrderID: "order_x", PaymentID: "pay_x", Signature: "00"})
	if !errors.Is(err, rentledger.ErrGatewayNotConfigured) {
		t.Errorf("got %v, want ErrGatewayNotConfigured", err)
	}
}

func TestNotificationFailureKeepsSettlement(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)
	f.notes.FailWith(errors.New("smtp down"))

	if _, err := f.ledger.SubmitPaymentClaim(ctx, auth.Student(f.student), r.ID, f.paidClaim(t, r.ID)); err != nil {
		t.Fatalf("SubmitPaymentClaim: %v", err)
	}
	got, err := f.ledger.GetRent(ctx, auth.Manager(), r.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if !got.IsPaid() {
		t.Error("notification failure undid the settlement")
	}
}

func TestRenderInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.januaryRent(t)

	pdf, err := f.ledger.RenderInvoice(ctx, auth.Student(f.student), r.ID)
	if err != nil {
		t.Fatalf("RenderInvoice: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF-") {
		t.Errorf("output is not a PDF: %q", pdf[:min(len(pdf), 8)])
	}

	again, err := f.ledger.RenderInvoice(ctx, auth.Manager(), r.ID)
	if err != nil {
		t.Fatalf("RenderInvoice manager: %v", err)
	}
	if string(again) != string(pdf) {
		t.Error("rendering the same rent twice gave different bytes")
	}
}

func TestUpsertResidentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		res  housing.Resident
	}{
		{"missing student", housing.Resident{Username: "x", RentAmount: types.INR(1)}},
		{"missing username", housing.Resident{StudentID: id.NewStudentID(), RentAmount: types.INR(1)}},
		{"zero rent", housing.Resident{StudentID: id.NewStudentID(), Username: "x", RentAmount: types.INR(0), Housed: true}},
		{"foreign currency", housing.Resident{StudentID: id.NewStudentID(), Username: "x", RentAmount: types.New(100, "usd"), Housed: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			err := f.ledger.UpsertResident(ctx, &res)
			if rentledger.KindOf(err) != rentledger.KindValidation {
				t.Errorf("got %v, want validation error", err)
			}
		})
	}
}

func TestUpsertUnhousedResidentWithoutRent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	away := &housing.Resident{StudentID: id.NewStudentID(), Username: "moved-out"}
	if err := f.ledger.UpsertResident(ctx, away); err != nil {
		t.Fatalf("UpsertResident: %v", err)
	}
	got, err := f.ledger.GetResident(ctx, away.StudentID)
	if err != nil {
		t.Fatalf("GetResident: %v", err)
	}
	if got.Housed || !got.RentAmount.IsZero() {
		t.Errorf("unexpected resident %+v", got)
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want rentledger.Kind
	}{
		{nil, rentledger.KindInternal},
		{errors.New("boom"), rentledger.KindInternal},
		{rentledger.ErrRentNotFound, rentledger.KindNotFound},
		{fmt.Errorf("wrapped: %w", rentledger.ErrResidentNotFound), rentledger.KindNotFound},
		{rentledger.ErrForbidden, rentledger.KindForbidden},
		{rentledger.ErrUnauthorized, rentledger.KindUnauthorized},
		{auth.ErrInvalidToken, rentledger.KindUnauthorized},
		{rentledger.ErrGatewayUnavailable, rentledger.KindGatewayUnavailable},
		{gateway.ErrUnavailable, rentledger.KindGatewayUnavailable},
		{rentledger.ErrGatewayNotConfigured, rentledger.KindGatewayUnavailable},
		{rentledger.ErrVerificationFailed, rentledger.KindVerificationFailed},
		{gateway.ErrVerification, rentledger.KindVerificationFailed},
		{rentledger.ErrAmountMismatch, rentledger.KindVerificationFailed},
		{rentledger.ErrOrderMismatch, rentledger.KindVerificationFailed},
		{rentledger.ErrAlreadySettled, rentledger.KindAlreadySettled},
		{rentledger.ValidationError{Field: "x", Message: "bad"}, rentledger.KindValidation},
	}
	for _, tt := range tests {
		if got := rentledger.KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}
