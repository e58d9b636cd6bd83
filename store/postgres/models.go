package postgres

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// ==================== Resident models ====================

type residentModel struct {
	grove.BaseModel `grove:"table:rentledger_residents"`

	StudentID  string    `grove:"student_id,pk"`
	Username   string    `grove:"username"`
	FullName   string    `grove:"full_name"`
	HostelName string    `grove:"hostel_name"`
	BedLabel   string    `grove:"bed_label"`
	RentAmount int64     `grove:"rent_amount"`
	Currency   string    `grove:"currency"`
	Housed     bool      `grove:"housed"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
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
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

func fromResidentModel(m *residentModel) (*housing.Resident, error) {
	studentID, err := id.ParseStudentID(m.StudentID)
	if err != nil {
		return nil, err
	}
	return &housing.Resident{
		Entity:     types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
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

	ID        string     `grove:"id,pk"`
	StudentID string     `grove:"student_id"`
	Amount    int64      `grove:"amount"`
	LateFee   int64      `grove:"late_fee"`
	Currency  string     `grove:"currency"`
	Month     time.Time  `grove:"month"`
	DueDate   time.Time  `grove:"due_date"`
	Status    string     `grove:"status"`
	PaidAt    *time.Time `grove:"paid_at"`
	CreatedAt time.Time  `grove:"created_at"`
	UpdatedAt time.Time  `grove:"updated_at"`
}

func toRentModel(r *rent.Rent) *rentModel {
	return &rentModel{
		ID:        r.ID.String(),
		StudentID: r.StudentID.String(),
		Amount:    r.Amount.Amount,
		LateFee:   r.LateFee.Amount,
		Currency:  r.Amount.Currency,
		Month:     r.Month.UTC(),
		DueDate:   r.DueDate.UTC(),
		Status:    string(r.Status),
		PaidAt:    r.PaidAt,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
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

	var paidAt *time.Time
	if m.PaidAt != nil {
		t := m.PaidAt.UTC()
		paidAt = &t
	}

	return &rent.Rent{
		Entity:    types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:        rentID,
		StudentID: studentID,
		Amount:    types.New(m.Amount, m.Currency),
		LateFee:   types.New(m.LateFee, m.Currency),
		Month:     m.Month.UTC(),
		DueDate:   m.DueDate.UTC(),
		Status:    rent.Status(m.Status),
		PaidAt:    paidAt,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:rentledger_payments"`

	ID            string    `grove:"id,pk"`
	RentID        string    `grove:"rent_id"`
	OrderID       string    `grove:"order_id"`
	TransactionID string    `grove:"transaction_id"`
	Amount        int64     `grove:"amount"`
	Currency      string    `grove:"currency"`
	Status        string    `grove:"status"`
	Method        string    `grove:"method"`
	CapturedAt    time.Time `grove:"captured_at"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
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
		CapturedAt:    p.CapturedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
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
	return &payment.Payment{
		Entity:        types.Entity{CreatedAt: m.CreatedAt.UTC(), UpdatedAt: m.UpdatedAt.UTC()},
		ID:            paymentID,
		RentID:        rentID,
		OrderID:       m.OrderID,
		TransactionID: m.TransactionID,
		Amount:        types.New(m.Amount, m.Currency),
		Status:        payment.Status(m.Status),
		Method:        m.Method,
		CapturedAt:    m.CapturedAt.UTC(),
	}, nil
}
