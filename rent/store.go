package rent

import (
	"context"
	"time"

	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/types"
)

// Store persists rent obligations. Both write methods are atomic
// conditional writes; callers never check-then-act.
type Store interface {
	// CreateRentIfAbsent inserts r unless an obligation already exists for
	// (r.StudentID, r.Month). It reports whether r was inserted.
	CreateRentIfAbsent(ctx context.Context, r *Rent) (bool, error)
	GetRent(ctx context.Context, rentID id.RentID) (*Rent, error)
	// ListRents orders by month, newest first.
	ListRents(ctx context.Context, opts ListOpts) ([]*Rent, error)
	// ListLateFeeCandidates returns unpaid obligations due before today
	// that carry no late fee.
	ListLateFeeCandidates(ctx context.Context, today time.Time) ([]*Rent, error)
	// ApplyLateFee sets the fee only while the obligation is unpaid, overdue
	// and fee-free. It reports whether a row changed.
	ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error)
}
