package invoice_test

import (
	"bytes"
	"reflect"
	"testing"
	"time"

	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/invoice"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

func january(lateFee int64, status rent.Status) *rent.Rent {
	created := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	r := rent.New(id.NewStudentID(), types.MustParseMoney("5000.00", "inr"), created, rent.DefaultDueDayOffset, created)
	r.LateFee = types.INR(lateFee)
	r.Status = status
	return r
}

func TestRenderWithLateFee(t *testing.T) {
	r := january(20000, rent.StatusUnpaid)
	res := &housing.Resident{StudentID: r.StudentID, Username: "asha", FullName: "Asha Rao", HostelName: "North Block", Housed: true}

	got := invoice.Render(invoice.NewSnapshot(r, res)).Lines()
	want := []string{
		"RENT INVOICE",
		"Hostel: North Block",
		"Student: Asha Rao",
		"Month: January 2024",
		"Date: 01-01-2024",
		"Description | Amount",
		"Monthly Rent for January 2024 | INR 5000.00",
		"Late Fee | INR 200.00",
		"Total | INR 5200.00",
		"Status: Unpaid",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("lines mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderWithoutLateFee(t *testing.T) {
	r := january(0, rent.StatusPaid)
	res := &housing.Resident{StudentID: r.StudentID, Username: "ravi"}

	doc := invoice.Render(invoice.NewSnapshot(r, res))
	if len(doc.Items) != 1 {
		t.Fatalf("expected only the rent line, got %+v", doc.Items)
	}
	lines := doc.Lines()
	checks := map[int]string{
		1: "Hostel: N/A",
		2: "Student: ravi",
		7: "Total | INR 5000.00",
		8: "Status: Paid",
	}
	for i, want := range checks {
		if lines[i] != want {
			t.Errorf("line %d = %q, want %q", i, lines[i], want)
		}
	}
}

func TestTotalIsExact(t *testing.T) {
	tests := []struct {
		amount, fee string
		want        int64
	}{
		{"5000.00", "200.00", 520000},
		{"4999.99", "0.01", 500000},
		{"0.10", "0.20", 30},
	}
	for _, tt := range tests {
		t.Run(tt.amount+"+"+tt.fee, func(t *testing.T) {
			s := invoice.Snapshot{
				Amount:  types.MustParseMoney(tt.amount, "inr"),
				LateFee: types.MustParseMoney(tt.fee, "inr"),
			}
			doc := invoice.Render(s)
			if doc.Total.Amount.Amount != tt.want {
				t.Errorf("total = %d, want %d", doc.Total.Amount.Amount, tt.want)
			}
		})
	}
}

func TestNilResident(t *testing.T) {
	r := january(0, rent.StatusUnpaid)
	s := invoice.NewSnapshot(r, nil)
	if s.Hostel != housing.UnassignedHostel || s.Student != r.StudentID.String() {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestPDFDeterministic(t *testing.T) {
	r := january(20000, rent.StatusUnpaid)
	s := invoice.NewSnapshot(r, &housing.Resident{Username: "zoë", FullName: "Zoë Fernandes", HostelName: "South", Housed: true})

	a, err := invoice.PDF(s)
	if err != nil {
		t.Fatal(err)
	}
	b, err := invoice.PDF(s)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(a, []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", a[:min(len(a), 16)])
	}
	if !bytes.Equal(a, b) {
		t.Error("rendering the same snapshot twice produced different bytes")
	}
}
