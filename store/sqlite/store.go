package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	rlstore "github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/types"
)

// compile-time interface check
var _ rlstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("rentledger/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("rentledger/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Resident Store ====================

func (s *Store) UpsertResident(ctx context.Context, r *housing.Resident) error {
	_, err := s.sdb.NewInsert(toResidentModel(r)).
		OnConflict("(student_id) DO UPDATE").
		Set("username = excluded.username").
		Set("full_name = excluded.full_name").
		Set("hostel_name = excluded.hostel_name").
		Set("bed_label = excluded.bed_label").
		Set("rent_amount = excluded.rent_amount").
		Set("currency = excluded.currency").
		Set("housed = excluded.housed").
		Set("updated_at = excluded.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetResident(ctx context.Context, studentID id.StudentID) (*housing.Resident, error) {
	m := new(residentModel)
	err := s.sdb.NewSelect(m).
		Where("student_id = ?", studentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rentledger.ErrResidentNotFound
		}
		return nil, err
	}
	return fromResidentModel(m)
}

func (s *Store) ListHousedResidents(ctx context.Context) ([]*housing.Resident, error) {
	var models []residentModel
	err := s.sdb.NewSelect(&models).
		Where("housed = ?", true).
		OrderExpr("student_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var skipped rentledger.MultiError
	result := make([]*housing.Resident, 0, len(models))
	for i := range models {
		r, err := fromResidentModel(&models[i])
		if err != nil {
			skipped.Add(malformed("resident", models[i].StudentID, err))
			continue
		}
		result = append(result, r)
	}
	return result, skipped.ErrorOrNil()
}

// ==================== Rent Store ====================

func (s *Store) CreateRentIfAbsent(ctx context.Context, r *rent.Rent) (bool, error) {
	res, err := s.sdb.NewInsert(toRentModel(r)).
		OnConflict("(student_id, month) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

func (s *Store) GetRent(ctx context.Context, rentID id.RentID) (*rent.Rent, error) {
	m := new(rentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", rentID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rentledger.ErrRentNotFound
		}
		return nil, err
	}
	return fromRentModel(m)
}

func (s *Store) ListRents(ctx context.Context, opts rent.ListOpts) ([]*rent.Rent, error) {
	var models []rentModel
	q := s.sdb.NewSelect(&models)

	if !opts.StudentID.IsNil() {
		q = q.Where("student_id = ?", opts.StudentID.String())
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("month DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromRentModels(models)
}

func (s *Store) ListLateFeeCandidates(ctx context.Context, today time.Time) ([]*rent.Rent, error) {
	var models []rentModel
	err := s.sdb.NewSelect(&models).
		Where("status = ?", string(rent.StatusUnpaid)).
		Where("late_fee = 0").
		Where("due_date < ?", formatDate(today)).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromRentModels(models)
}

func (s *Store) ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error) {
	res, err := s.sdb.NewUpdate((*rentModel)(nil)).
		Set("late_fee = ?", fee.Amount).
		Set("updated_at = ?", formatTimestamp(now())).
		Where("id = ?", rentID.String()).
		Where("status = ?", string(rent.StatusUnpaid)).
		Where("late_fee = 0").
		Where("due_date < ?", formatDate(today)).
		Where("currency = ?", fee.Currency).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// ==================== Payment Store ====================

func (s *Store) GetPaymentByTransaction(ctx context.Context, transactionID string) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("transaction_id = ?", transactionID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, rentledger.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, rentID id.RentID) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.sdb.NewSelect(&models).
		Where("rent_id = ?", rentID.String()).
		OrderExpr("captured_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	var skipped rentledger.MultiError
	result := make([]*payment.Payment, 0, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			skipped.Add(malformed("payment", models[i].ID, err))
			continue
		}
		result = append(result, p)
	}
	return result, skipped.ErrorOrNil()
}

// SettleRent flips the rent to paid and inserts the captured payment in one
// transaction. SQLite serializes writers, so the conditional update alone
// decides which concurrent settlement wins.
func (s *Store) SettleRent(ctx context.Context, p *payment.Payment) (*rent.Rent, error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rentledger.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	paidAt := formatTimestamp(p.CapturedAt)
	res, err := tx.NewUpdate((*rentModel)(nil)).
		Set("status = ?", string(rent.StatusPaid)).
		Set("paid_at = ?", paidAt).
		Set("updated_at = ?", paidAt).
		Where("id = ?", p.RentID.String()).
		Where("status = ?", string(rent.StatusUnpaid)).
		Where("amount + late_fee = ?", p.Amount.Amount).
		Where("currency = ?", p.Amount.Currency).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		_ = tx.Rollback() //nolint:errcheck // nothing written
		return nil, s.settleConflict(ctx, p.RentID)
	}

	if _, err := tx.NewInsert(toPaymentModel(p)).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, rentledger.ErrAlreadySettled
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %w", rentledger.ErrTransactionFailed, err)
	}

	return s.GetRent(ctx, p.RentID)
}

// settleConflict explains why the conditional settlement matched no row.
func (s *Store) settleConflict(ctx context.Context, rentID id.RentID) error {
	r, err := s.GetRent(ctx, rentID)
	if err != nil {
		return err
	}
	if r.IsPaid() {
		return rentledger.ErrAlreadySettled
	}
	return rentledger.ErrAmountMismatch
}

// ==================== Helpers ====================

func fromRentModels(models []rentModel) ([]*rent.Rent, error) {
	var skipped rentledger.MultiError
	result := make([]*rent.Rent, 0, len(models))
	for i := range models {
		r, err := fromRentModel(&models[i])
		if err != nil {
			skipped.Add(malformed("rent", models[i].ID, err))
			continue
		}
		result = append(result, r)
	}
	return result, skipped.ErrorOrNil()
}

// malformed reports a stored row that could not be decoded.
func malformed(kind, key string, err error) error {
	return fmt.Errorf("%w: %s %q: %v", rentledger.ErrMalformedRecord, kind, key, err)
}

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports a SQLite UNIQUE or PRIMARY KEY constraint failure.
func isUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}
