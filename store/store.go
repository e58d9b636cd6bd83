package store

import (
	"context"
	"time"

	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/types"
)

// Store is the unified storage interface for all rentledger entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
//
// List methods return every row they could decode. Rows that fail to decode
// are reported together as a rentledger.MultiError of ErrMalformedRecord
// alongside the good rows.
type Store interface {
	// Resident methods
	UpsertResident(ctx context.Context, r *housing.Resident) error
	GetResident(ctx context.Context, studentID id.StudentID) (*housing.Resident, error)
	ListHousedResidents(ctx context.Context) ([]*housing.Resident, error)

	// Rent methods
	CreateRentIfAbsent(ctx context.Context, r *rent.Rent) (bool, error)
	GetRent(ctx context.Context, rentID id.RentID) (*rent.Rent, error)
	ListRents(ctx context.Context, opts rent.ListOpts) ([]*rent.Rent, error)
	ListLateFeeCandidates(ctx context.Context, today time.Time) ([]*rent.Rent, error)
	ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error)

	// Payment methods
	GetPaymentByTransaction(ctx context.Context, transactionID string) (*payment.Payment, error)
	ListPayments(ctx context.Context, rentID id.RentID) ([]*payment.Payment, error)

	// SettleRent marks p.RentID paid and records p as its captured payment
	// in one transaction. The rent must be unpaid and p.Amount must equal
	// its total; otherwise nothing is written. It returns the settled rent.
	//
	// Errors: ErrRentNotFound, ErrAlreadySettled (rent already paid or
	// transaction ID already recorded), ErrAmountMismatch.
	SettleRent(ctx context.Context, p *payment.Payment) (*rent.Rent, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
