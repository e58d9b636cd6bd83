// Package invoice lays out and renders rent invoices. Rendering is pure:
// the same Snapshot always yields the same Document and the same PDF bytes.
package invoice

import (
	"time"

	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// Snapshot is everything an invoice shows, captured at render time.
type Snapshot struct {
	RentID   id.RentID   `json:"rent_id"`
	Hostel   string      `json:"hostel"`
	Student  string      `json:"student"`
	Month    time.Time   `json:"month"`
	IssuedAt time.Time   `json:"issued_at"`
	Amount   types.Money `json:"amount"`
	LateFee  types.Money `json:"late_fee"`
	Status   rent.Status `json:"status"`
}

// NewSnapshot captures r for rendering. A nil resident prints the hostel as
// N/A and the student by ID.
func NewSnapshot(r *rent.Rent, res *housing.Resident) Snapshot {
	s := Snapshot{
		RentID:   r.ID,
		Hostel:   housing.UnassignedHostel,
		Student:  r.StudentID.String(),
		Month:    r.Month,
		IssuedAt: r.CreatedAt,
		Amount:   r.Amount,
		LateFee:  r.LateFee,
		Status:   r.Status,
	}
	if res != nil {
		s.Hostel = res.Hostel()
		s.Student = res.DisplayName()
	}
	return s
}

// Total is the amount payable.
func (s Snapshot) Total() types.Money {
	return s.Amount.Add(s.LateFee)
}

// LineType classifies invoice lines.
type LineType string

const (
	LineRent    LineType = "rent"
	LineLateFee LineType = "late_fee"
	LineTotal   LineType = "total"
)

// LineItem is one row of the amount table.
type LineItem struct {
	Type        LineType    `json:"type"`
	Description string      `json:"description"`
	Amount      types.Money `json:"amount"`
}

// Document is the laid-out invoice, independent of output format.
type Document struct {
	Title   string     `json:"title"`
	Header  []string   `json:"header"`
	Columns [2]string  `json:"columns"`
	Items   []LineItem `json:"items"`
	Total   LineItem   `json:"total"`
	Footer  string     `json:"footer"`
}
