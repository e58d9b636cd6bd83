// Package storetest is a behavioural test suite shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/types"
)

// Factory returns a migrated, empty store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Options tunes the suite for backends with restricted capabilities.
type Options struct {
	// InsertBadResident writes a housed resident row whose student ID does
	// not parse, bypassing the store's encoder. Nil skips the malformed-row
	// cases.
	InsertBadResident func(t *testing.T, s store.Store)
}

var (
	january = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	created = time.Date(2024, time.January, 1, 6, 0, 0, 0, time.UTC)
	paidAt  = time.Date(2024, time.January, 12, 14, 30, 0, 0, time.UTC)
)

// Run executes the suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory, opts Options) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Residents", testResidents},
		{"CreateRentIfAbsent", testCreateRentIfAbsent},
		{"ListRents", testListRents},
		{"LateFees", testLateFees},
		{"SettleRent", testSettleRent},
		{"SettleRentRejections", testSettleRentRejections},
		{"DuplicateTransaction", testDuplicateTransaction},
		{"ConcurrentSettlement", testConcurrentSettlement},
	}

	if opts.InsertBadResident != nil {
		insert := opts.InsertBadResident
		tests = append(tests, struct {
			name string
			fn   func(t *testing.T, s store.Store)
		}{"MalformedRows", func(t *testing.T, s store.Store) { testMalformedRows(t, s, insert) }})
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func newResident(housed bool) *housing.Resident {
	return &housing.Resident{
		Entity:     types.NewEntity(created),
		StudentID:  id.NewStudentID(),
		Username:   "asha",
		FullName:   "Asha Rao",
		HostelName: "Block A",
		BedLabel:   "A-101-1",
		RentAmount: types.INR(500000),
		Housed:     housed,
	}
}

func mustCreateRent(t *testing.T, s store.Store, studentID id.StudentID, month time.Time) *rent.Rent {
	t.Helper()
	r := rent.New(studentID, types.INR(500000), month, rent.DefaultDueDayOffset, created)
	ok, err := s.CreateRentIfAbsent(context.Background(), r)
	if err != nil {
		t.Fatalf("CreateRentIfAbsent: %v", err)
	}
	if !ok {
		t.Fatal("CreateRentIfAbsent: expected insert")
	}
	return r
}

func newPayment(r *rent.Rent, txn string) *payment.Payment {
	return &payment.Payment{
		Entity:        types.NewEntity(paidAt),
		ID:            id.NewPaymentID(),
		RentID:        r.ID,
		OrderID:       "order_" + txn,
		TransactionID: txn,
		Amount:        r.Total(),
		Status:        payment.StatusCaptured,
		Method:        payment.DefaultMethod,
		CapturedAt:    paidAt,
	}
}

func testResidents(t *testing.T, s store.Store) {
	ctx := context.Background()

	housed := newResident(true)
	away := newResident(false)
	for _, r := range []*housing.Resident{housed, away} {
		if err := s.UpsertResident(ctx, r); err != nil {
			t.Fatalf("UpsertResident: %v", err)
		}
	}

	got, err := s.GetResident(ctx, housed.StudentID)
	if err != nil {
		t.Fatalf("GetResident: %v", err)
	}
	if got.Username != "asha" || !got.RentAmount.Equal(types.INR(500000)) || got.Hostel() != "Block A" {
		t.Errorf("unexpected resident %+v", got)
	}

	housed.RentAmount = types.INR(550000)
	housed.Touch(created.Add(time.Hour))
	if err := s.UpsertResident(ctx, housed); err != nil {
		t.Fatalf("UpsertResident update: %v", err)
	}
	got, err = s.GetResident(ctx, housed.StudentID)
	if err != nil {
		t.Fatalf("GetResident: %v", err)
	}
	if !got.RentAmount.Equal(types.INR(550000)) {
		t.Errorf("rent amount = %v, want 5500.00", got.RentAmount)
	}

	list, err := s.ListHousedResidents(ctx)
	if err != nil {
		t.Fatalf("ListHousedResidents: %v", err)
	}
	if len(list) != 1 || list[0].StudentID != housed.StudentID {
		t.Errorf("housed residents = %d, want only the housed student", len(list))
	}

	if _, err := s.GetResident(ctx, id.NewStudentID()); !errors.Is(err, rentledger.ErrResidentNotFound) {
		t.Errorf("missing resident: got %v, want ErrResidentNotFound", err)
	}
}

func testCreateRentIfAbsent(t *testing.T, s store.Store) {
	ctx := context.Background()
	studentID := id.NewStudentID()

	first := mustCreateRent(t, s, studentID, january.AddDate(0, 0, 14))

	again := rent.New(studentID, types.INR(500000), january.AddDate(0, 0, 20), rent.DefaultDueDayOffset, created)
	ok, err := s.CreateRentIfAbsent(ctx, again)
	if err != nil {
		t.Fatalf("CreateRentIfAbsent: %v", err)
	}
	if ok {
		t.Fatal("second obligation for the same month was inserted")
	}

	got, err := s.GetRent(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if !got.Month.Equal(january) {
		t.Errorf("month = %v, want %v", got.Month, january)
	}
	if !got.DueDate.Equal(january.AddDate(0, 0, 9)) {
		t.Errorf("due date = %v, want 2024-01-10", got.DueDate)
	}
	if got.Status != rent.StatusUnpaid || !got.LateFee.IsZero() || got.PaidAt != nil {
		t.Errorf("new obligation not pristine: %+v", got)
	}

	if _, err := s.GetRent(ctx, again.ID); !errors.Is(err, rentledger.ErrRentNotFound) {
		t.Errorf("skipped obligation: got %v, want ErrRentNotFound", err)
	}

	// A different student in the same month is independent.
	mustCreateRent(t, s, id.NewStudentID(), january)
}

func testListRents(t *testing.T, s store.Store) {
	ctx := context.Background()
	studentID := id.NewStudentID()

	jan := mustCreateRent(t, s, studentID, january)
	feb := mustCreateRent(t, s, studentID, january.AddDate(0, 1, 0))
	mar := mustCreateRent(t, s, studentID, january.AddDate(0, 2, 0))
	other := mustCreateRent(t, s, id.NewStudentID(), january)

	list, err := s.ListRents(ctx, rent.ListOpts{StudentID: studentID})
	if err != nil {
		t.Fatalf("ListRents: %v", err)
	}
	want := []id.RentID{mar.ID, feb.ID, jan.ID}
	if len(list) != len(want) {
		t.Fatalf("got %d rents, want %d", len(list), len(want))
	}
	for i := range want {
		if list[i].ID != want[i] {
			t.Errorf("position %d: got %s, want %s", i, list[i].ID, want[i])
		}
	}

	page, err := s.ListRents(ctx, rent.ListOpts{StudentID: studentID, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListRents page: %v", err)
	}
	if len(page) != 1 || page[0].ID != feb.ID {
		t.Errorf("page = %v, want February only", page)
	}

	negative, err := s.ListRents(ctx, rent.ListOpts{StudentID: studentID, Limit: -1, Offset: -1})
	if err != nil {
		t.Fatalf("ListRents negative page: %v", err)
	}
	if len(negative) != len(want) {
		t.Errorf("negative limit/offset returned %d rents, want %d", len(negative), len(want))
	}

	all, err := s.ListRents(ctx, rent.ListOpts{})
	if err != nil {
		t.Fatalf("ListRents all: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("all = %d, want 4", len(all))
	}

	if _, err := s.SettleRent(ctx, newPayment(other, "pay_list")); err != nil {
		t.Fatalf("SettleRent: %v", err)
	}
	paid, err := s.ListRents(ctx, rent.ListOpts{Status: rent.StatusPaid})
	if err != nil {
		t.Fatalf("ListRents paid: %v", err)
	}
	if len(paid) != 1 || paid[0].ID != other.ID {
		t.Errorf("paid filter returned %d rents", len(paid))
	}
}

func testLateFees(t *testing.T, s store.Store) {
	ctx := context.Background()
	fee := types.INR(20000)

	overdue := mustCreateRent(t, s, id.NewStudentID(), january)
	current := mustCreateRent(t, s, id.NewStudentID(), january.AddDate(0, 1, 0))
	settled := mustCreateRent(t, s, id.NewStudentID(), january)
	if _, err := s.SettleRent(ctx, newPayment(settled, "pay_settled")); err != nil {
		t.Fatalf("SettleRent: %v", err)
	}

	onDueDate := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	candidates, err := s.ListLateFeeCandidates(ctx, onDueDate)
	if err != nil {
		t.Fatalf("ListLateFeeCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("on the due date: got %d candidates, want 0", len(candidates))
	}

	today := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	candidates, err = s.ListLateFeeCandidates(ctx, today)
	if err != nil {
		t.Fatalf("ListLateFeeCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != overdue.ID {
		t.Fatalf("got %d candidates, want only the overdue rent", len(candidates))
	}

	applied, err := s.ApplyLateFee(ctx, overdue.ID, fee, today)
	if err != nil || !applied {
		t.Fatalf("ApplyLateFee = %v, %v; want true", applied, err)
	}
	applied, err = s.ApplyLateFee(ctx, overdue.ID, fee, today.AddDate(0, 0, 5))
	if err != nil || applied {
		t.Errorf("second ApplyLateFee = %v, %v; want false", applied, err)
	}
	for _, r := range []*rent.Rent{current, settled} {
		applied, err = s.ApplyLateFee(ctx, r.ID, fee, today)
		if err != nil || applied {
			t.Errorf("ApplyLateFee(%s) = %v, %v; want false", r.ID, applied, err)
		}
	}

	got, err := s.GetRent(ctx, overdue.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if !got.LateFee.Equal(fee) {
		t.Errorf("late fee = %v, want %v", got.LateFee, fee)
	}
	if got.Total().Amount != 520000 {
		t.Errorf("total = %d, want 520000", got.Total().Amount)
	}
	if !got.UpdatedAt.After(today.AddDate(0, 0, 1)) {
		t.Errorf("updated_at = %v, want the wall-clock time of the change", got.UpdatedAt)
	}

	candidates, err = s.ListLateFeeCandidates(ctx, today.AddDate(0, 0, 5))
	if err != nil {
		t.Fatalf("ListLateFeeCandidates: %v", err)
	}
	if len(candidates) != 0 {
		t.Errorf("after assessment: got %d candidates, want 0", len(candidates))
	}
}

func testSettleRent(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := mustCreateRent(t, s, id.NewStudentID(), january)
	p := newPayment(r, "pay_ok")

	settled, err := s.SettleRent(ctx, p)
	if err != nil {
		t.Fatalf("SettleRent: %v", err)
	}
	if !settled.IsPaid() {
		t.Error("returned rent is not paid")
	}
	if settled.PaidAt == nil || !settled.PaidAt.Equal(paidAt) {
		t.Errorf("paid at = %v, want %v", settled.PaidAt, paidAt)
	}

	payments, err := s.ListPayments(ctx, r.ID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != 1 {
		t.Fatalf("got %d payments, want 1", len(payments))
	}
	if payments[0].Status != payment.StatusCaptured || !payments[0].Amount.Equal(types.INR(500000)) {
		t.Errorf("unexpected payment %+v", payments[0])
	}

	byTxn, err := s.GetPaymentByTransaction(ctx, "pay_ok")
	if err != nil {
		t.Fatalf("GetPaymentByTransaction: %v", err)
	}
	if byTxn.ID != p.ID || byTxn.RentID != r.ID {
		t.Errorf("payment lookup mismatch: %+v", byTxn)
	}
	if _, err := s.GetPaymentByTransaction(ctx, "pay_missing"); !errors.Is(err, rentledger.ErrPaymentNotFound) {
		t.Errorf("missing transaction: got %v, want ErrPaymentNotFound", err)
	}
}

func testSettleRentRejections(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := mustCreateRent(t, s, id.NewStudentID(), january)

	short := newPayment(r, "pay_short")
	short.Amount = types.INR(499999)
	if _, err := s.SettleRent(ctx, short); !errors.Is(err, rentledger.ErrAmountMismatch) {
		t.Errorf("short payment: got %v, want ErrAmountMismatch", err)
	}

	missing := newPayment(r, "pay_missing_rent")
	missing.RentID = id.NewRentID()
	if _, err := s.SettleRent(ctx, missing); !errors.Is(err, rentledger.ErrRentNotFound) {
		t.Errorf("unknown rent: got %v, want ErrRentNotFound", err)
	}

	got, err := s.GetRent(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if got.IsPaid() {
		t.Error("rejected settlement changed the rent")
	}
	assertPayments(t, s, r.ID, 0)

	if _, err := s.SettleRent(ctx, newPayment(r, "pay_first")); err != nil {
		t.Fatalf("SettleRent: %v", err)
	}
	if _, err := s.SettleRent(ctx, newPayment(r, "pay_second")); !errors.Is(err, rentledger.ErrAlreadySettled) {
		t.Errorf("second settlement: got %v, want ErrAlreadySettled", err)
	}
	assertPayments(t, s, r.ID, 1)
}

func testDuplicateTransaction(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := mustCreateRent(t, s, id.NewStudentID(), january)
	second := mustCreateRent(t, s, id.NewStudentID(), january)

	if _, err := s.SettleRent(ctx, newPayment(first, "pay_reused")); err != nil {
		t.Fatalf("SettleRent: %v", err)
	}
	if _, err := s.SettleRent(ctx, newPayment(second, "pay_reused")); !errors.Is(err, rentledger.ErrAlreadySettled) {
		t.Errorf("reused transaction: got %v, want ErrAlreadySettled", err)
	}

	got, err := s.GetRent(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetRent: %v", err)
	}
	if got.IsPaid() {
		t.Error("rent was marked paid although its payment was rejected")
	}
	assertPayments(t, s, second.ID, 0)
}

func testConcurrentSettlement(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := mustCreateRent(t, s, id.NewStudentID(), january)

	const workers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    int
		settled int
		other   []error
	)
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := newPayment(r, "pay_race_"+string(rune('a'+i)))
			_, err := s.SettleRent(ctx, p)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, rentledger.ErrAlreadySettled):
				settled++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("successful settlements = %d, want 1", wins)
	}
	if settled != workers-1 {
		t.Errorf("already settled = %d, want %d (unexpected: %v)", settled, workers-1, other)
	}
	assertPayments(t, s, r.ID, 1)
}

func assertPayments(t *testing.T, s store.Store, rentID id.RentID, want int) {
	t.Helper()
	payments, err := s.ListPayments(context.Background(), rentID)
	if err != nil {
		t.Fatalf("ListPayments: %v", err)
	}
	if len(payments) != want {
		t.Errorf("payments for %s = %d, want %d", rentID, len(payments), want)
	}
}

func testMalformedRows(t *testing.T, s store.Store, insertBad func(t *testing.T, s store.Store)) {
	ctx := context.Background()

	good := newResident(true)
	if err := s.UpsertResident(ctx, good); err != nil {
		t.Fatalf("UpsertResident: %v", err)
	}
	insertBad(t, s)

	list, err := s.ListHousedResidents(ctx)
	if !errors.Is(err, rentledger.ErrMalformedRecord) {
		t.Fatalf("ListHousedResidents error = %v, want ErrMalformedRecord", err)
	}
	if _, ok := rentledger.OnlyMalformed(err); !ok {
		t.Errorf("error %v carries more than malformed rows", err)
	}
	if len(list) != 1 || list[0].StudentID != good.StudentID {
		t.Fatalf("housed residents = %d, want the decodable one", len(list))
	}
}
