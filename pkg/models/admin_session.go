package models

import "time"

// AdminSession tracks an issued admin session token. Trust is established by
// the token signature; the row exists for logout and cleanup.
type AdminSession struct {
	SessionID string    `db:"session_id" json:"session_id"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *AdminSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
