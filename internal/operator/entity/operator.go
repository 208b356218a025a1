package entity

import "time"

// Account states stored in operators.status.
const (
	StatusActive   = "active"
	StatusLocked   = "locked"
	StatusDisabled = "disabled"
)

// Operator represents a row in the `operators` table. Operators are the
// directory staff who seed profiles, mint claim links and review requests.
type Operator struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	DisplayName         string     `db:"display_name" json:"display_name"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	PasswordAlgo        string     `db:"password_algo" json:"-"`
	Status              string     `db:"status" json:"status"`
	LoginFailedAttempts int        `db:"login_failed_attempts" json:"-"`
	LockedUntil         *time.Time `db:"locked_until" json:"locked_until,omitempty"`
	LastLoginAt         *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// LockExpired reports whether a lock has run out at now.
func (o *Operator) LockExpired(now time.Time) bool {
	return o.Status == StatusLocked && o.LockedUntil != nil && o.LockedUntil.Before(now)
}
