package payment

import (
	"context"

	"github.com/xraph/rentledger/id"
)

// Store reads payments. Payments are written only by the settlement
// transaction in store.Store.
type Store interface {
	GetPaymentByTransaction(ctx context.Context, transactionID string) (*Payment, error)
	ListPayments(ctx context.Context, rentID id.RentID) ([]*Payment, error)
}
