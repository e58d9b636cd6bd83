package sqlite

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// SQLite has no native date type. Calendar days and instants are stored as
// fixed-width UTC text so that string comparison matches time order.
const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

func formatDate(t time.Time) string { return t.UTC().Format(dateLayout) }

func formatTimestamp(t time.Time) string { return t.UTC().Format(timestampLayout) }

func parseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("rentledger/sqlite: parse date %q: %w", s, err)
	}
	return t, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("rentledger/sqlite: parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseEntity(createdAt, updatedAt string) (types.Entity, error) {
	c, err := parseTimestamp(createdAt)
	if err != nil {
		return types.Entity{}, err
	}
	u, err := parseTimestamp(updatedAt)
	if err != nil {
		return types.Entity{}, err
	}
	return types.Entity{CreatedAt: c, UpdatedAt: u}, nil
}

// ==================== Resident models ====================

type residentModel struct {
	grove.BaseModel `grove:"table:rentledger_residents"`

	StudentID  string `grove:"student_id,pk"`
	Username   string `grove:"username"`
	FullName   string `grove:"full_name"`
	HostelName string `grove:"hostel_name"`
	BedLabel   string `grove:"bed_label"`
	RentAmount int64  `grove:"rent_amount"`
	Currency   string `grove:"currency"`
	Housed     bool   `grove:"housed"`
	CreatedAt  string `grove:"created_at"`
	UpdatedAt  string `grove:"updated_at"`
}

func toResidentModel(r *housing.Resident) *residentModel {
	return &residentModel{
		StudentID:  r.StudentID.String(),
		Username:   r.Username,
		FullName:   r.FullName,
		HostelName: r.HostelName,
		BedLabel:   r.BedLabel,
		RentAmount: r.RentAmount.Amount,
		Currency:   r.RentAmount.Currency,
		Housed:     r.Housed,
		CreatedAt:  formatTimestamp(r.CreatedAt),
		UpdatedAt:  formatTimestamp(r.UpdatedAt),
	}
}

func fromResidentModel(m *residentModel) (*housing.Resident, error) {
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &housing.Resident{
		Entity:     entity,
		StudentID:  studentID,
		Username:   m.Username,
		FullName:   m.FullName,
		HostelName: m.HostelName,
		BedLabel:   m.BedLabel,
		RentAmount: types.New(m.RentAmount, m.Currency),
		Housed:     m.Housed,
	}, nil
}

// ==================== Rent models ====================

type rentModel struct {
	grove.BaseModel `grove:"table:rentledger_rents"`

	ID        string  `grove:"id,pk"`
	StudentID string  `grove:"student_id"`
	Amount    int64   `grove:"amount"`
	LateFee   int64   `grove:"late_fee"`
	Currency  string  `grove:"currency"`
	Month     string  `grove:"month"`
	DueDate   string  `grove:"due_date"`
	Status    string  `grove:"status"`
	PaidAt    *string `grove:"paid_at"`
	CreatedAt string  `grove:"created_at"`
	UpdatedAt string  `grove:"updated_at"`
}

func toRentModel(r *rent.Rent) *rentModel {
	var paidAt *string
	if r.PaidAt != nil {
		s := formatTimestamp(*r.PaidAt)
		paidAt = &s
	}
	return &rentModel{
		ID:        r.ID.String(),
		StudentID: r.StudentID.String(),
		Amount:    r.Amount.Amount,
		LateFee:   r.LateFee.Amount,
		Currency:  r.Amount.Currency,
		Month:     formatDate(r.Month),
		DueDate:   formatDate(r.DueDate),
		Status:    string(r.Status),
		PaidAt:    paidAt,
		CreatedAt: formatTimestamp(r.CreatedAt),
		UpdatedAt: formatTimestamp(r.UpdatedAt),
	}
}

func fromRentModel(m *rentModel) (*rent.Rent, error) {
	rentID, err := id.ParseRentID(m.ID)
	if err != nil {
		return nil, err
	}
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}
	month, err := parseDate(m.Month)
	if err != nil {
		return nil, err
	}
	due, err := parseDate(m.DueDate)
	if err != nil {
		return nil, err
	}
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}

	var paidAt *time.Time
	if m.PaidAt != nil && *m.PaidAt != "" {
		t, err := parseTimestamp(*m.PaidAt)
		if err != nil {
			return nil, err
		}
		paidAt = &t
	}

	return &rent.Rent{
		Entity:    entity,
		ID:        rentID,
		StudentID: studentID,
		Amount:    types.New(m.Amount, m.Currency),
		LateFee:   types.New(m.LateFee, m.Currency),
		Month:     month,
		DueDate:   due,
		Status:    rent.Status(m.Status),
		PaidAt:    paidAt,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:rentledger_payments"`

	ID            string `grove:"id,pk"`
	RentID        string `grove:"rent_id"`
	OrderID       string `grove:"order_id"`
	TransactionID string `grove:"transaction_id"`
	Amount        int64  `grove:"amount"`
	Currency      string `grove:"currency"`
	Status        string `grove:"status"`
	Method        string `grove:"method"`
	CapturedAt    string `grove:"captured_at"`
	CreatedAt     string `grove:"created_at"`
	UpdatedAt     string `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:            p.ID.String(),
		RentID:        p.RentID.String(),
		OrderID:       p.OrderID,
		TransactionID: p.TransactionID,
		Amount:        p.Amount.Amount,
		Currency:      p.Amount.Currency,
		Status:        string(p.Status),
		Method:        p.Method,
		CapturedAt:    formatTimestamp(p.CapturedAt),
		CreatedAt:     formatTimestamp(p.CreatedAt),
		UpdatedAt:     formatTimestamp(p.UpdatedAt),
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	paymentID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	rentID, err := id.ParseRentID(m.RentID)
	if err != nil {
		return nil, err
	}
	captured, err := parseTimestamp(m.CapturedAt)
	if err != nil {
		return nil, err
	}
	entity, err := parseEntity(m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &payment.Payment{
		Entity:        entity,
		ID:            paymentID,
		RentID:        rentID,
		OrderID:       m.OrderID,
		TransactionID: m.TransactionID,
		Amount:        types.New(m.Amount, m.Currency),
		Status:        payment.Status(m.Status),
		Method:        m.Method,
		CapturedAt:    captured,
	}, nil
}
