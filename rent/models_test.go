package rent

import (
	"testing"
	"time"

	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/types"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNew(t *testing.T) {
	now := date(2024, 1, 1)
	r := New(id.NewStudentID(), types.INR(500000), date(2024, 1, 17), DefaultDueDayOffset, now)

	if !r.Month.Equal(date(2024, 1, 1)) {
		t.Errorf("month = %s", r.Month)
	}
	if !r.DueDate.Equal(date(2024, 1, 10)) {
		t.Errorf("due date = %s", r.DueDate)
	}
	if r.Status != StatusUnpaid {
		t.Errorf("status = %s", r.Status)
	}
	if !r.LateFee.IsZero() || r.LateFee.Currency != "inr" {
		t.Errorf("late fee = %+v", r.LateFee)
	}
	if r.Receipt() != r.ID.String() {
		t.Errorf("receipt = %q", r.Receipt())
	}
}

func TestOverdue(t *testing.T) {
	r := &Rent{
		Amount:  types.INR(500000),
		LateFee: types.INR(0),
		DueDate: date(2024, 1, 10),
		Status:  StatusUnpaid,
	}

	tests := []struct {
		name    string
		today   time.Time
		overdue bool
	}{
		{"before due", date(2024, 1, 9), false},
		{"on due date", date(2024, 1, 10), false},
		{"due date evening", date(2024, 1, 10).Add(20 * time.Hour), false},
		{"day after", date(2024, 1, 11), true},
		{"weeks after", date(2024, 2, 1), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsOverdue(tt.today); got != tt.overdue {
				t.Errorf("IsOverdue = %v, want %v", got, tt.overdue)
			}
			if got := r.NeedsLateFee(tt.today); got != tt.overdue {
				t.Errorf("NeedsLateFee = %v, want %v", got, tt.overdue)
			}
		})
	}

	r.LateFee = types.INR(20000)
	if r.NeedsLateFee(date(2024, 1, 20)) {
		t.Error("late fee already applied")
	}
	if got := r.Total(); got.Amount != 520000 {
		t.Errorf("total = %d", got.Amount)
	}

	r.Status = StatusPaid
	if r.IsOverdue(date(2024, 2, 1)) {
		t.Error("paid rent is never overdue")
	}
}
