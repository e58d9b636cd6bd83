// Package memory is an in-process store for tests and single-node runs.
// Values are copied on the way in and out, so callers never share state
// with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	"github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/types"
)

// compile-time check
var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Resident storage, keyed by student ID
	residents map[id.StudentID]*housing.Resident

	// Rent storage, with the (student, month) uniqueness index
	rents        map[id.RentID]*rent.Rent
	rentsByMonth map[monthKey]id.RentID

	// Payment storage, with the transaction ID uniqueness index
	payments       map[id.PaymentID]*payment.Payment
	paymentsByTxn  map[string]id.PaymentID
	capturedByRent map[id.RentID]id.PaymentID

	closed bool
}

type monthKey struct {
	student id.StudentID
	month   string
}

func New() *Store {
	return &Store{
		residents:      make(map[id.StudentID]*housing.Resident),
		rents:          make(map[id.RentID]*rent.Rent),
		rentsByMonth:   make(map[monthKey]id.RentID),
		payments:       make(map[id.PaymentID]*payment.Payment),
		paymentsByTxn:  make(map[string]id.PaymentID),
		capturedByRent: make(map[id.RentID]id.PaymentID),
	}
}

// Resident Store implementation
func (s *Store) UpsertResident(_ context.Context, r *housing.Resident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	if existing, ok := s.residents[r.StudentID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	s.residents[r.StudentID] = &cp
	return nil
}

func (s *Store) GetResident(_ context.Context, studentID id.StudentID) (*housing.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.residents[studentID]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, rentledger.ErrResidentNotFound
}

func (s *Store) ListHousedResidents(_ context.Context) ([]*housing.Resident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*housing.Resident, 0, len(s.residents))
	for _, r := range s.residents {
		if r.Housed {
			cp := *r
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StudentID.String() < result[j].StudentID.String()
	})
	return result, nil
}

// Rent Store implementation
func (s *Store) CreateRentIfAbsent(_ context.Context, r *rent.Rent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := monthKey{student: r.StudentID, month: r.Month.UTC().Format("2006-01")}
	if _, exists := s.rentsByMonth[key]; exists {
		return false, nil
	}
	if _, exists := s.rents[r.ID]; exists {
		return false, rentledger.ErrAlreadyExists
	}

	cp := *r
	s.rents[r.ID] = &cp
	s.rentsByMonth[key] = r.ID
	return true, nil
}

func (s *Store) GetRent(_ context.Context, rentID id.RentID) (*rent.Rent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.rents[rentID]; ok {
		return copyRent(r), nil
	}
	return nil, rentledger.ErrRentNotFound
}

func (s *Store) ListRents(_ context.Context, opts rent.ListOpts) ([]*rent.Rent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rent.Rent, 0)
	for _, r := range s.rents {
		if !opts.StudentID.IsNil() && r.StudentID != opts.StudentID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		result = append(result, copyRent(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Month.Equal(result[j].Month) {
			return result[i].Month.After(result[j].Month)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	// Apply limit/offset
	start := max(opts.Offset, 0)
	if start > len(result) {
		start = len(result)
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (s *Store) ListLateFeeCandidates(_ context.Context, today time.Time) ([]*rent.Rent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*rent.Rent, 0)
	for _, r := range s.rents {
		if r.NeedsLateFee(today) {
			result = append(result, copyRent(r))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, nil
}

func (s *Store) ApplyLateFee(_ context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rents[rentID]
	if !ok {
		return false, rentledger.ErrRentNotFound
	}
	if !r.NeedsLateFee(today) {
		return false, nil
	}

	r.LateFee = fee
	r.Touch(time.Now())
	return true, nil
}

// Payment Store implementation
func (s *Store) GetPaymentByTransaction(_ context.Context, transactionID string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pid, ok := s.paymentsByTxn[transactionID]; ok {
		cp := *s.payments[pid]
		return &cp, nil
	}
	return nil, rentledger.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, rentID id.RentID) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*payment.Payment, 0)
	for _, p := range s.payments {
		if p.RentID == rentID {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CapturedAt.Before(result[j].CapturedAt)
	})
	return result, nil
}

// SettleRent runs under the write lock, which makes the status check, the
// status flip and the payment insert one atomic step.
func (s *Store) SettleRent(_ context.Context, p *payment.Payment) (*rent.Rent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rents[p.RentID]
	switch {
	case !ok:
		return nil, rentledger.ErrRentNotFound
	case r.Status != rent.StatusUnpaid:
		return nil, rentledger.ErrAlreadySettled
	case !r.Total().Equal(p.Amount):
		return nil, rentledger.ErrAmountMismatch
	}
	if _, dup := s.paymentsByTxn[p.TransactionID]; dup {
		return nil, rentledger.ErrAlreadySettled
	}
	if _, captured := s.capturedByRent[p.RentID]; captured {
		return nil, rentledger.ErrAlreadySettled
	}

	paidAt := p.CapturedAt
	r.Status = rent.StatusPaid
	r.PaidAt = &paidAt
	r.Touch(paidAt)

	cp := *p
	s.payments[p.ID] = &cp
	s.paymentsByTxn[p.TransactionID] = p.ID
	s.capturedByRent[p.RentID] = p.ID

	return copyRent(r), nil
}

// Core methods
func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return rentledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func copyRent(r *rent.Rent) *rent.Rent {
	cp := *r
	if r.PaidAt != nil {
		t := *r.PaidAt
		cp.PaidAt = &t
	}
	return &cp
}
