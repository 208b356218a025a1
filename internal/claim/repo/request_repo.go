package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim/entity"
)

// PendingIndex enforces one pending request per (profile, requester).
const PendingIndex = "uq_claim_requests_pending"

const requestColumns = `id, profile_id, requester_id, requested_username, message, status, reviewed_by, reviewed_at, created_at`

// RequestRepo provides data access for the claim_requests table.
type RequestRepo struct {
	db *sqlx.DB
}

func NewRequestRepo(db *sqlx.DB) *RequestRepo { return &RequestRepo{db: db} }

// EnsureTable creates the claim_requests table if not exists (idempotent).
func (r *RequestRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS claim_requests (
  id VARCHAR(32) PRIMARY KEY,
  profile_id VARCHAR(32) NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
  requester_id TEXT NOT NULL,
  requested_username TEXT NOT NULL,
  message TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'pending',
  reviewed_by TEXT,
  reviewed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_claim_requests_pending ON claim_requests (profile_id, requester_id) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_claim_requests_status ON claim_requests (status, created_at);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a request row.
func (r *RequestRepo) Create(ctx context.Context, req *entity.Request) error {
	const q = `INSERT INTO claim_requests (id, profile_id, requester_id, requested_username, message, status, created_at)
		VALUES (:id, :profile_id, :requester_id, :requested_username, :message, :status, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, req)
	return err
}

// GetByID fetches a request or returns sql.ErrNoRows.
func (r *RequestRepo) GetByID(ctx context.Context, id string) (*entity.Request, error) {
	var req entity.Request
	if err := r.db.GetContext(ctx, &req, `SELECT `+requestColumns+` FROM claim_requests WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &req, nil
}

// HasPending reports whether requester already has a pending request for profileID.
func (r *RequestRepo) HasPending(ctx context.Context, profileID, requester string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM claim_requests WHERE profile_id=$1 AND requester_id=$2 AND status='pending')`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, q, profileID, requester); err != nil {
		return false, err
	}
	return exists, nil
}

// List returns requests, optionally filtered by status, oldest first.
func (r *RequestRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.Request, error) {
	out := []*entity.Request{}
	q := `SELECT ` + requestColumns + ` FROM claim_requests WHERE ($1::text = '' OR status = $1) ORDER BY created_at, id LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &out, q, status, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

// Resolve moves a pending request to status. Returns false if it was not pending.
func (r *RequestRepo) Resolve(ctx context.Context, id, status, reviewer string, now time.Time) (bool, error) {
	const q = `UPDATE claim_requests SET status=$2, reviewed_by=$3, reviewed_at=$4
		WHERE id=$1 AND status='pending' RETURNING 1`
	var one int
	if err := r.db.GetContext(ctx, &one, q, id, status, reviewer, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Reopen puts an approved request back to pending when the ownership
// transfer behind it failed.
func (r *RequestRepo) Reopen(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE claim_requests SET status='pending', reviewed_by=NULL, reviewed_at=NULL
		WHERE id=$1 AND status='approved' RETURNING 1`
	var one int
	if err := r.db.GetContext(ctx, &one, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// RejectOtherPending rejects the remaining pending requests for profileID.
func (r *RequestRepo) RejectOtherPending(ctx context.Context, profileID, exceptID, reviewer string, now time.Time) (int64, error) {
	const q = `UPDATE claim_requests SET status='rejected', reviewed_by=$3, reviewed_at=$4
		WHERE profile_id=$1 AND id <> $2 AND status='pending'`
	res, err := r.db.ExecContext(ctx, q, profileID, exceptID, reviewer, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
