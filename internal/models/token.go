package models

import "time"

// RefreshToken is one sign-in session. Rotation revokes the old row and
// inserts a new one, so a replayed token is detectable.
type RefreshToken struct {
	ID        string `db:"id" json:"id"`
	UserID    string `db:"user_id" json:"user_id"`
	Token     string `db:"token" json:"token"`

	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`

	// Captured at issue time for session listings.
	IPAddress string `db:"ip_address" json:"ip_address"`
	UserAgent string `db:"user_agent" json:"user_agent"`
}
