// Package payment models captured rent payments.
package payment

import (
	"time"

	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/types"
)

// Status of a payment record.
type Status string

const (
	StatusCaptured Status = "captured"
	StatusFailed   Status = "failed"
)

// DefaultMethod is recorded when no payment method is configured.
const DefaultMethod = "razorpay"

// Payment is immutable once written. A paid rent has exactly one captured payment.
type Payment struct {
	types.Entity
	ID            id.PaymentID `json:"id"`
	RentID        id.RentID    `json:"rent_id"`
	OrderID       string       `json:"order_id"`
	TransactionID string       `json:"transaction_id"`
	Amount        types.Money  `json:"amount"`
	Status        Status       `json:"status"`
	Method        string       `json:"method"`
	CapturedAt    time.Time    `json:"captured_at"`
}
