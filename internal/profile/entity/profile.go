package entity

import "time"

// Claim states stored in profiles.claim_status.
const (
	ClaimUnclaimed = "unclaimed"
	ClaimClaimed   = "claimed"
)

// Profile kinds.
const (
	KindDesigner = "designer"
	KindBrand    = "brand"
	KindReader   = "reader"
)

// Profile represents a row in the `profiles` table. Claim fields are only
// written through the claim package.
type Profile struct {
	ID          string  `db:"id" json:"id"`
	Username    *string `db:"username" json:"username,omitempty"`
	DisplayName string  `db:"display_name" json:"display_name"`
	Kind        string  `db:"kind" json:"kind"`

	OwnerUserID *string `db:"owner_user_id" json:"-"`
	// LegacyUserID is the identity column of the previous auth provider.
	// Ownership checks treat it as equivalent to OwnerUserID.
	LegacyUserID *string `db:"legacy_user_id" json:"-"`
	IsPrimary    bool    `db:"is_primary" json:"is_primary"`
	IsHidden     bool    `db:"is_hidden" json:"is_hidden"`

	ClaimStatus    string     `db:"claim_status" json:"claim_status"`
	ClaimTokenHash *string    `db:"claim_token_hash" json:"-"`
	ClaimExpiresAt *time.Time `db:"claim_expires_at" json:"claim_expires_at,omitempty"`
	ClaimedAt      *time.Time `db:"claimed_at" json:"claimed_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// HasUsername reports whether the profile is addressable by username.
func (p *Profile) HasUsername() bool {
	return p.Username != nil && *p.Username != ""
}

// OwnedBy reports whether identity owns the profile through either identity column.
func (p *Profile) OwnedBy(identity string) bool {
	if identity == "" {
		return false
	}
	return (p.OwnerUserID != nil && *p.OwnerUserID == identity) ||
		(p.LegacyUserID != nil && *p.LegacyUserID == identity)
}
