package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/operator/entity"
)

// EmailIndex is the unique constraint on operators.email.
const EmailIndex = "operators_email_key"

// OperatorRepo provides data access for the operators table using sqlx.
type OperatorRepo struct {
	db *sqlx.DB
}

func NewOperatorRepo(db *sqlx.DB) *OperatorRepo { return &OperatorRepo{db: db} }

// EnsureTable creates the operators table if not exists (idempotent).
func (r *OperatorRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS operators (
  id TEXT PRIMARY KEY,
  email CITEXT NOT NULL,
  display_name TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL,
  password_algo TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'active',
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  CONSTRAINT operators_email_key UNIQUE (email)
);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const operatorColumns = `id, email, display_name, password_hash, password_algo, status,
	login_failed_attempts, locked_until, last_login_at, created_at, updated_at`

// Create inserts a new operator row.
func (r *OperatorRepo) Create(ctx context.Context, o *entity.Operator) error {
	const q = `INSERT INTO operators (id, email, display_name, password_hash, password_algo, status, created_at, updated_at)
		VALUES (:id, :email, :display_name, :password_hash, :password_algo, :status, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, o)
	return err
}

// GetByEmail returns an operator matched by email (case-insensitive due to citext) or sql.ErrNoRows.
func (r *OperatorRepo) GetByEmail(ctx context.Context, email string) (*entity.Operator, error) {
	q := `SELECT ` + operatorColumns + ` FROM operators WHERE email=$1`
	var row entity.Operator
	if err := r.db.GetContext(ctx, &row, q, email); err != nil {
		return nil, err
	}
	return &row, nil
}

// IncrementFailedLogin increments the failure counter atomically and returns the new value.
func (r *OperatorRepo) IncrementFailedLogin(ctx context.Context, id string, now time.Time) (int, error) {
	const q = `UPDATE operators SET login_failed_attempts = login_failed_attempts + 1, updated_at=$2
		WHERE id=$1 RETURNING login_failed_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id, now); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold locks the operator until `until` if attempts >= threshold and currently active.
func (r *OperatorRepo) LockIfThreshold(ctx context.Context, id string, threshold int, until, now time.Time) (bool, error) {
	const q = `UPDATE operators SET status='locked', locked_until=$3, updated_at=$4
		WHERE id=$1 AND status='active' AND login_failed_attempts >= $2 RETURNING 1`
	return conditional(r.db.GetContext(ctx, new(int), q, id, threshold, until, now))
}

// UnlockIfExpired sets status back to active if locked_until passed.
func (r *OperatorRepo) UnlockIfExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	const q = `UPDATE operators SET status='active', locked_until=NULL, login_failed_attempts=0, updated_at=$2
		WHERE id=$1 AND status='locked' AND locked_until IS NOT NULL AND locked_until < $2 RETURNING 1`
	return conditional(r.db.GetContext(ctx, new(int), q, id, now))
}

// ResetLoginSuccess resets failure metrics on successful authentication.
func (r *OperatorRepo) ResetLoginSuccess(ctx context.Context, id string, now time.Time) error {
	const q = `UPDATE operators SET login_failed_attempts=0, last_login_at=$2, locked_until=NULL, updated_at=$2 WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, now)
	return err
}

// UpdatePassword replaces the stored hash.
func (r *OperatorRepo) UpdatePassword(ctx context.Context, id, hash, algo string, now time.Time) error {
	const q = `UPDATE operators SET password_hash=$2, password_algo=$3, updated_at=$4 WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hash, algo, now)
	return err
}

// SetStatus moves an operator to active or disabled.
func (r *OperatorRepo) SetStatus(ctx context.Context, id, status string, now time.Time) (bool, error) {
	const q = `UPDATE operators SET status=$2, locked_until=NULL, updated_at=$3 WHERE id=$1 RETURNING 1`
	return conditional(r.db.GetContext(ctx, new(int), q, id, status, now))
}

func conditional(err error) (bool, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
