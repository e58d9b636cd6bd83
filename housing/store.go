package housing

import (
	"context"

	"github.com/xraph/rentledger/id"
)

// Store persists the resident projection.
type Store interface {
	UpsertResident(ctx context.Context, r *Resident) error
	GetResident(ctx context.Context, studentID id.StudentID) (*Resident, error)
	ListHousedResidents(ctx context.Context) ([]*Resident, error)
}
