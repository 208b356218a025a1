package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile/entity"
)

// UsernameIndex is the case-insensitive unique index on profiles.username.
const UsernameIndex = "uq_profiles_username_lower"

const profileColumns = `id, username, display_name, kind, owner_user_id, legacy_user_id,
	is_primary, is_hidden, claim_status, claim_token_hash, claim_expires_at, claimed_at,
	created_at, updated_at`

// ownedBy matches rows owned by $1. legacy_user_id is kept until the old
// provider ids are migrated into owner_user_id.
const ownedBy = `(owner_user_id = $1 OR legacy_user_id = $1)`

// ProfileRepo provides data access for the profiles table using sqlx.
type ProfileRepo struct {
	db *sqlx.DB
}

func NewProfileRepo(db *sqlx.DB) *ProfileRepo { return &ProfileRepo{db: db} }

// EnsureTable creates the profiles table if not exists (idempotent).
func (r *ProfileRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS profiles (
  id VARCHAR(32) PRIMARY KEY,
  username TEXT,
  display_name TEXT NOT NULL,
  kind TEXT NOT NULL DEFAULT 'designer',
  owner_user_id TEXT,
  legacy_user_id TEXT,
  is_primary BOOLEAN NOT NULL DEFAULT false,
  is_hidden BOOLEAN NOT NULL DEFAULT false,
  claim_status TEXT NOT NULL DEFAULT 'unclaimed',
  claim_token_hash TEXT,
  claim_expires_at TIMESTAMPTZ,
  claimed_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS uq_profiles_username_lower ON profiles (lower(username));
CREATE INDEX IF NOT EXISTS idx_profiles_claim_token_hash ON profiles (claim_token_hash) WHERE claim_token_hash IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_profiles_owner_user_id ON profiles (owner_user_id);
CREATE INDEX IF NOT EXISTS idx_profiles_legacy_user_id ON profiles (legacy_user_id);
`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

// Create inserts a new profile row.
func (r *ProfileRepo) Create(ctx context.Context, p *entity.Profile) error {
	const q = `INSERT INTO profiles (id, username, display_name, kind, is_primary, is_hidden, claim_status, created_at, updated_at)
		VALUES (:id, :username, :display_name, :kind, :is_primary, :is_hidden, :claim_status, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}

// GetByID fetches a profile or returns sql.ErrNoRows.
func (r *ProfileRepo) GetByID(ctx context.Context, id string) (*entity.Profile, error) {
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE id=$1`, id); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByUsername fetches a profile by username, case-insensitively.
func (r *ProfileRepo) GetByUsername(ctx context.Context, username string) (*entity.Profile, error) {
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, `SELECT `+profileColumns+` FROM profiles WHERE lower(username)=lower($1)`, username); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOwned returns every profile owned by identity, primary first.
func (r *ProfileRepo) ListOwned(ctx context.Context, identity string) ([]*entity.Profile, error) {
	out := []*entity.Profile{}
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE ` + ownedBy + ` ORDER BY is_primary DESC, claimed_at DESC NULLS LAST, created_at`
	if err := r.db.SelectContext(ctx, &out, q, identity); err != nil {
		return nil, err
	}
	return out, nil
}

// UsernameTaken reports whether a profile other than excludeID uses username (case-insensitive).
func (r *ProfileRepo) UsernameTaken(ctx context.Context, username, excludeID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM profiles WHERE lower(username)=lower($1) AND id <> $2)`
	var taken bool
	if err := r.db.GetContext(ctx, &taken, q, username, excludeID); err != nil {
		return false, err
	}
	return taken, nil
}

// SetClaimToken stores a fresh digest on the profile, overwriting any previous one,
// and resets ownership through both identity columns. Returns false when the
// profile does not exist.
func (r *ProfileRepo) SetClaimToken(ctx context.Context, id, digest string, expiresAt, now time.Time) (bool, error) {
	const q = `UPDATE profiles SET claim_token_hash=$2, claim_expires_at=$3, claim_status='unclaimed',
		owner_user_id=NULL, legacy_user_id=NULL, is_primary=false, claimed_at=NULL, updated_at=$4
		WHERE id=$1 RETURNING 1`
	return r.conditional(ctx, q, id, digest, expiresAt, now)
}

// FindClaimable returns the unclaimed, unexpired profile holding digest, or sql.ErrNoRows.
func (r *ProfileRepo) FindClaimable(ctx context.Context, digest string, now time.Time) (*entity.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles
		WHERE claim_token_hash=$1 AND claim_status='unclaimed'
		AND (claim_expires_at IS NULL OR claim_expires_at > $2)`
	var p entity.Profile
	if err := r.db.GetContext(ctx, &p, q, digest, now); err != nil {
		return nil, err
	}
	return &p, nil
}

// CompleteClaim transfers ownership only if the row still carries digest and is
// still unclaimed and unexpired. A false result means another request won.
func (r *ProfileRepo) CompleteClaim(ctx context.Context, id, digest, identity string, now time.Time) (bool, error) {
	const q = `UPDATE profiles SET owner_user_id=$3, claim_status='claimed', claim_token_hash=NULL,
		claim_expires_at=NULL, claimed_at=$4, is_primary=true, is_hidden=false, updated_at=$4
		WHERE id=$1 AND claim_token_hash=$2 AND claim_status='unclaimed'
		AND (claim_expires_at IS NULL OR claim_expires_at > $4)
		RETURNING 1`
	return r.conditional(ctx, q, id, digest, identity, now)
}

// AssignOwner gives an unclaimed or pending profile to identity under username.
// Any outstanding claim link is invalidated. Returns false if the profile is
// missing or already claimed.
func (r *ProfileRepo) AssignOwner(ctx context.Context, id, identity, username string, now time.Time) (bool, error) {
	const q = `UPDATE profiles SET owner_user_id=$2, username=$3, claim_status='claimed', claim_token_hash=NULL,
		claim_expires_at=NULL, claimed_at=$4, is_primary=true, is_hidden=false, updated_at=$4
		WHERE id=$1 AND claim_status <> 'claimed'
		RETURNING 1`
	return r.conditional(ctx, q, id, identity, username, now)
}

// DemoteSiblings hides and un-primaries every profile owned by identity except keepID.
func (r *ProfileRepo) DemoteSiblings(ctx context.Context, identity, keepID string, now time.Time) (int64, error) {
	q := `UPDATE profiles SET is_hidden=true, is_primary=false, updated_at=$3
		WHERE ` + ownedBy + ` AND id <> $2 AND (is_hidden = false OR is_primary = true)`
	res, err := r.db.ExecContext(ctx, q, identity, keepID, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// conditional runs an UPDATE ... RETURNING 1 and reports whether a row matched.
func (r *ProfileRepo) conditional(ctx context.Context, q string, args ...any) (bool, error) {
	var one int
	if err := r.db.GetContext(ctx, &one, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
