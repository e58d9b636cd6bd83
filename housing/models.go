// Package housing holds the read-side view of who lives where.
//
// Rooms, beds and profiles are owned by the hostel system; it projects one
// Resident per student into the store so billing can run without reaching
// back into that system.
package housing

import (
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/types"
)

// UnassignedHostel is printed when a student has no current bed.
const UnassignedHostel = "N/A"

// Resident is a student's billing-relevant housing state.
type Resident struct {
	types.Entity
	StudentID  id.StudentID `json:"student_id"`
	Username   string       `json:"username"`
	FullName   string       `json:"full_name,omitempty"`
	HostelName string       `json:"hostel_name,omitempty"`
	BedLabel   string       `json:"bed_label,omitempty"`
	RentAmount types.Money  `json:"rent_amount"`
	Housed     bool         `json:"housed"`
}

// DisplayName returns the full name, falling back to the username.
func (r *Resident) DisplayName() string {
	if r.FullName != "" {
		return r.FullName
	}
	return r.Username
}

// Hostel returns the hostel name or UnassignedHostel.
func (r *Resident) Hostel() string {
	if !r.Housed || r.HostelName == "" {
		return UnassignedHostel
	}
	return r.HostelName
}
