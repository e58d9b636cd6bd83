// Package rent models monthly rent obligations.
package rent

import (
	"time"

	"github.com/xraph/rentledger/clock"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/types"
)

// Status is the settlement state of a rent obligation.
type Status string

const (
	StatusUnpaid Status = "unpaid"
	StatusPaid   Status = "paid"
)

// DefaultDueDayOffset is the number of days after the first of the month
// that rent falls due (the 10th).
const DefaultDueDayOffset = 9

// Rent is one student's rent obligation for one calendar month.
// (StudentID, Month) is unique.
type Rent struct {
	types.Entity
	ID        id.RentID    `json:"id"`
	StudentID id.StudentID `json:"student_id"`
	Amount    types.Money  `json:"amount"`
	Month     time.Time    `json:"month"`
	DueDate   time.Time    `json:"due_date"`
	LateFee   types.Money  `json:"late_fee"`
	Status    Status       `json:"status"`
	PaidAt    *time.Time   `json:"paid_at,omitempty"`
}

// New builds an unpaid obligation for the month containing ref.
func New(studentID id.StudentID, amount types.Money, ref time.Time, dueDayOffset int, now time.Time) *Rent {
	month := clock.MonthStart(ref)
	return &Rent{
		Entity:    types.NewEntity(now),
		ID:        id.NewRentID(),
		StudentID: studentID,
		Amount:    amount,
		Month:     month,
		DueDate:   month.AddDate(0, 0, dueDayOffset),
		LateFee:   types.Zero(amount.Currency),
		Status:    StatusUnpaid,
	}
}

// Total is the amount payable: rent plus late fee.
func (r *Rent) Total() types.Money {
	return r.Amount.Add(r.LateFee)
}

// IsPaid reports whether the obligation has been settled.
func (r *Rent) IsPaid() bool { return r.Status == StatusPaid }

// IsOverdue reports whether the obligation is unpaid and past its due date
// as of today's calendar day.
func (r *Rent) IsOverdue(today time.Time) bool {
	return r.Status == StatusUnpaid && r.DueDate.Before(clock.Day(today))
}

// NeedsLateFee reports whether a late fee may still be applied.
func (r *Rent) NeedsLateFee(today time.Time) bool {
	return r.IsOverdue(today) && r.LateFee.IsZero()
}

// Receipt is the gateway receipt reference for this obligation.
func (r *Rent) Receipt() string {
	return r.ID.String()
}

// ListOpts filters rent listings. A nil StudentID lists all students.
type ListOpts struct {
	StudentID id.StudentID
	Status    Status
	Limit     int
	Offset    int
}
