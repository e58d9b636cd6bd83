package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/rentledger"
	"github.com/xraph/rentledger/housing"
	"github.com/xraph/rentledger/id"
	"github.com/xraph/rentledger/payment"
	"github.com/xraph/rentledger/rent"
	rlstore "github.com/xraph/rentledger/store"
	"github.com/xraph/rentledger/types"
)

// Collection name constants.
const (
	colResidents = "rentledger_residents"
	colRents     = "rentledger_rents"
	colPayments  = "rentledger_payments"
)

// compile-time interface check
var _ rlstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
// SettleRent needs multi-document transactions, so the server must run as
// a replica set.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all rentledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("rentledger/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewUpdate((*residentModel)(nil)).
		Filter(bson.M{"student_id": m.StudentID}).
		SetUpdate(bson.M{
			"$set": bson.M{
				"username":    m.Username,
				"full_name":   m.FullName,
				"hostel_name": m.HostelName,
				"bed_label":   m.BedLabel,
				"rent_amount": m.RentAmount,
				"currency":    m.Currency,
				"housed":      m.Housed,
				"updated_at":  m.UpdatedAt,
			},
			"$setOnInsert": bson.M{"created_at": m.CreatedAt},
		}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("rentledger/mongo: upsert resident: %w", err)
	}
	return nil
}

func (s *Store) GetResident(ctx context.Context, studentID id.StudentID) (*housing.Resident, error) {
	var m residentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"student_id": studentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rentledger.ErrResidentNotFound
		}
		return nil, fmt.Errorf("rentledger/mongo: get resident: %w", err)
	}
	return fromResidentModel(&m)
}

func (s *Store) ListHousedResidents(ctx context.Context) ([]*housing.Resident, error) {
	var models []residentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"housed": true}).
		Sort(bson.D{{Key: "student_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rentledger/mongo: list residents: %w", err)
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
	_, err := s.mdb.NewInsert(toRentModel(r)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("rentledger/mongo: create rent: %w", err)
	}
	return true, nil
}

func (s *Store) GetRent(ctx context.Context, rentID id.RentID) (*rent.Rent, error) {
	var m rentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": rentID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rentledger.ErrRentNotFound
		}
		return nil, fmt.Errorf("rentledger/mongo: get rent: %w", err)
	}
	return fromRentModel(&m)
}

func (s *Store) ListRents(ctx context.Context, opts rent.ListOpts) ([]*rent.Rent, error) {
	var models []rentModel

	filter := bson.M{}
	if !opts.StudentID.IsNil() {
		filter["student_id"] = opts.StudentID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "month", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("rentledger/mongo: list rents: %w", err)
	}
	return fromRentModels(models)
}

func (s *Store) ListLateFeeCandidates(ctx context.Context, today time.Time) ([]*rent.Rent, error) {
	var models []rentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status":   string(rent.StatusUnpaid),
			"late_fee": int64(0),
			"due_date": bson.M{"$lt": today.UTC()},
		}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rentledger/mongo: list late fee candidates: %w", err)
	}
	return fromRentModels(models)
}

func (s *Store) ApplyLateFee(ctx context.Context, rentID id.RentID, fee types.Money, today time.Time) (bool, error) {
	res, err := s.mdb.NewUpdate((*rentModel)(nil)).
		Filter(bson.M{
			"_id":      rentID.String(),
			"status":   string(rent.StatusUnpaid),
			"late_fee": int64(0),
			"due_date": bson.M{"$lt": today.UTC()},
			"currency": fee.Currency,
		}).
		Set("late_fee", fee.Amount).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("rentledger/mongo: apply late fee: %w", err)
	}
	return res.MatchedCount() == 1, nil
}

// ==================== Payment Store ====================

func (s *Store) GetPaymentByTransaction(ctx context.Context, transactionID string) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"transaction_id": transactionID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, rentledger.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("rentledger/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, rentID id.RentID) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"rent_id": rentID.String()}).
		Sort(bson.D{{Key: "captured_at", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("rentledger/mongo: list payments: %w", err)
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

// SettleRent runs the conditional status flip and the payment insert in one
// session transaction. A write conflict with a concurrent settlement aborts
// the loser, which then reports ErrAlreadySettled.
func (s *Store) SettleRent(ctx context.Context, p *payment.Payment) (*rent.Rent, error) {
	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", rentledger.ErrTransactionFailed, err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected transaction type %T", rentledger.ErrTransactionFailed, raw)
	}

	paidAt := p.CapturedAt.UTC()
	res, err := tx.NewUpdate((*rentModel)(nil)).
		Filter(bson.M{
			"_id":      p.RentID.String(),
			"status":   string(rent.StatusUnpaid),
			"currency": p.Amount.Currency,
			"$expr": bson.M{"$eq": bson.A{
				bson.M{"$add": bson.A{"$amount", "$late_fee"}},
				p.Amount.Amount,
			}},
		}).
		Set("status", string(rent.StatusPaid)).
		Set("paid_at", paidAt).
		Set("updated_at", paidAt).
		Exec(ctx)
	if err != nil {
		_ = tx.Rollback() //nolint:errcheck // best effort
		if isWriteConflict(err) {
			return nil, rentledger.ErrAlreadySettled
		}
		return nil, fmt.Errorf("rentledger/mongo: settle rent: %w", err)
	}
	if res.MatchedCount() == 0 {
		_ = tx.Rollback() //nolint:errcheck // nothing written
		return nil, s.settleConflict(ctx, p.RentID)
	}

	if _, err := tx.NewInsert(toPaymentModel(p)).Exec(ctx); err != nil {
		_ = tx.Rollback() //nolint:errcheck // best effort
		if mongo.IsDuplicateKeyError(err) || isWriteConflict(err) {
			return nil, rentledger.ErrAlreadySettled
		}
		return nil, fmt.Errorf("rentledger/mongo: insert payment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		if isWriteConflict(err) {
			return nil, rentledger.ErrAlreadySettled
		}
		return nil, fmt.Errorf("%w: %w", rentledger.ErrTransactionFailed, err)
	}

	return s.GetRent(ctx, p.RentID)
}

// settleConflict explains why the conditional settlement matched no document.
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// isWriteConflict reports a transient transaction conflict (WriteConflict, code 112).
func isWriteConflict(err error) bool {
	var se mongo.ServerError
	if errors.As(err, &se) {
		return se.HasErrorCode(112) || se.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// migrationIndexes returns the index definitions for all rentledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colResidents: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "housed", Value: 1}}},
		},
		colRents: {
			{
				Keys:    bson.D{{Key: "student_id", Value: 1}, {Key: "month", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
			{Keys: bson.D{{Key: "month", Value: -1}}},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "transaction_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{
				Keys: bson.D{{Key: "rent_id", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(payment.StatusCaptured)}),
			},
		},
	}
}
