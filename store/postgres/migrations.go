package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the rentledger store.
var Migrations = migrate.NewGroup("rentledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_rentledger_residents",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rentledger_residents (
    student_id  TEXT PRIMARY KEY,
    username    TEXT NOT NULL DEFAULT '',
    full_name   TEXT NOT NULL DEFAULT '',
    hostel_name TEXT NOT NULL DEFAULT '',
    bed_label   TEXT NOT NULL DEFAULT '',
    rent_amount BIGINT NOT NULL DEFAULT 0,
    currency    TEXT NOT NULL DEFAULT 'inr',
    housed      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_rentledger_residents_housed ON rentledger_residents (housed);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rentledger_residents`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rentledger_rents",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rentledger_rents (
    id         TEXT PRIMARY KEY,
    student_id TEXT NOT NULL,
    amount     BIGINT NOT NULL CHECK (amount > 0),
    late_fee   BIGINT NOT NULL DEFAULT 0 CHECK (late_fee >= 0),
    currency   TEXT NOT NULL DEFAULT 'inr',
    month      TIMESTAMPTZ NOT NULL,
    due_date   TIMESTAMPTZ NOT NULL,
    status     TEXT NOT NULL DEFAULT 'unpaid' CHECK (status IN ('unpaid', 'paid')),
    paid_at    TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rentledger_rents_student_month ON rentledger_rents (student_id, month);
CREATE INDEX IF NOT EXISTS idx_rentledger_rents_overdue ON rentledger_rents (due_date) WHERE status = 'unpaid' AND late_fee = 0;
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rentledger_rents`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_rentledger_payments",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS rentledger_payments (
    id             TEXT PRIMARY KEY,
    rent_id        TEXT NOT NULL REFERENCES rentledger_rents (id),
    order_id       TEXT NOT NULL DEFAULT '',
    transaction_id TEXT NOT NULL,
    amount         BIGINT NOT NULL,
    currency       TEXT NOT NULL DEFAULT 'inr',
    status         TEXT NOT NULL CHECK (status IN ('captured', 'failed')),
    method         TEXT NOT NULL DEFAULT '',
    captured_at    TIMESTAMPTZ NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_rentledger_payments_transaction ON rentledger_payments (transaction_id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_rentledger_payments_captured ON rentledger_payments (rent_id) WHERE status = 'captured';
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS rentledger_payments`)
				return err
			},
		},
	)
}
