package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the migration executor
	"github.com/xraph/grove/migrate"

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

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("rentledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("rentledger/postgres: migration failed: %w", err)
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
	m := toResidentModel(r)
	_, err := s.pg.NewInsert(m).
		OnConflict("(student_id) DO UPDATE").
		Set("username = EXCLUDED.username").
		Set("full_name = EXCLUDED.full_name").
		Set("hostel_name = EXCLUDED.hostel_name").
		Set("bed_label = EXCLUDED.bed_label").
		Set("rent_amount = EXCLUDED.rent_amount").
		Set("currency = EXCLUDED.currency").
		Set("housed = EXCLUDED.housed").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetResident(ctx context.Context, studentID id.StudentID) (*housing.Resident, error) {
	m := new(residentModel)
	err := s.pg.NewSelect(m).
		Where("student_id = $1", studentID.String()).
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
	err := s.pg.NewSelect(&models).
		Where("housed = $1", true).
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
	res, err := s.pg.NewInsert(toRentModel(r)).
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
	err := s.pg.NewSelect(m).
		Where("id = $1", rentID.String()).
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
	q := s.pg.NewSelect(&models)

	argIdx := 0
	if !opts.StudentID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("student_id = $%d", argIdx), opts.StudentID.String())
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
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
	err := s.pg.NewSelect(&models).
		Where("status = $1", string(rent.StatusUnpaid)).
		Where("late_fee = 0").
		Where("due_date < $2", today.UTC()).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromRentModels(models)
}

func (s *Store) ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error) {
	res, err := s.pg.NewUpdate((*rentModel)(nil)).
		Set("late_fee = ?", fee.Amount).
		Set("updated_at = ?", now()).
		Where("id = ?", rentID.String()).
		Where("status = ?", string(rent.StatusUnpaid)).
		Where("late_fee = 0").
		Where("due_date < ?", today.UTC()).
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
	err := s.pg.NewSelect(m).
		Where("transaction_id = $1", transactionID).
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
	err := s.pg.NewSelect(&models).
		Where("rent_id = $1", rentID.String()).
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

// SettleRent flips the rent to paid with a conditional update and inserts
// the captured payment in the same transaction. Concurrent settlements of
// one rent serialize on the row lock taken by the update.
func (s *Store) SettleRent(ctx context.Context, p *payment.Payment) (*rent.Rent, error) {
	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rentledger.ErrTransactionFailed, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	paidAt := p.CapturedAt.UTC()
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
		if isUniqueViolation(err) {
			return nil, rentledger.ErrAlreadySettled
		}
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

// isNoRows checks for the standard sql.ErrNoRows sentinel and its pgx equivalent.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation reports a PostgreSQL unique_violation (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
