// Package auth identifies the caller of a request operation and decides
// whether it may act on a student's rent.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xraph/rentledger/id"
)

// Role is the caller's role in the hostel.
type Role string

const (
	RoleStudent Role = "student"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

// ErrUnknownRole is returned by ParseRole for anything outside the enumeration.
var ErrUnknownRole = errors.New("auth: unknown role")

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Privileged reports whether r may act on any student's rent. Only managers
// may; staff are held to their own rent like students.
func (r Role) Privileged() bool {
	return r == RoleManager
}

// Caller is an authenticated principal.
type Caller struct {
	StudentID id.StudentID
	Role      Role
}

// Student returns a student caller.
func Student(studentID id.StudentID) Caller {
	return Caller{StudentID: studentID, Role: RoleStudent}
}

// Manager returns a manager caller.
func Manager() Caller { return Caller{Role: RoleManager} }

// Staff returns a staff caller.
func Staff() Caller { return Caller{Role: RoleStaff} }

// CanAccess reports whether the caller may act on rent owned by owner.
// Students and staff only reach their own rent; an unknown role reaches
// nothing.
func (c Caller) CanAccess(owner id.StudentID) bool {
	switch {
	case c.Role.Privileged():
		return true
	case c.Role == RoleStudent, c.Role == RoleStaff:
		return !c.StudentID.IsNil() && c.StudentID == owner
	}
	return false
}

type callerKey struct{}

// WithCaller returns a context carrying c.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// FromContext returns the caller stored by WithCaller.
func FromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
