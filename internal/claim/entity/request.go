package entity

import "time"

// Request statuses.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Request is a claim request row: a signed-in user asking an operator to hand
// over an unclaimed profile under a proposed username.
type Request struct {
	ID                string     `db:"id" json:"id"`
	ProfileID         string     `db:"profile_id" json:"profile_id"`
	RequesterID       string     `db:"requester_id" json:"requester_id"`
	RequestedUsername string     `db:"requested_username" json:"requested_username"`
	Message           string     `db:"message" json:"message"`
	Status            string     `db:"status" json:"status"`
	ReviewedBy        *string    `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt        *time.Time `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

// ValidStatus reports whether s is a known request status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}
