package models

import (
	"time"

	"github.com/google/uuid"
)

// APIKey is a credential bound to one application.
// The raw key is returned once at creation or rotation; only its SHA-256 hash
// and a masked preview are stored.
type APIKey struct {
	ID            uuid.UUID `db:"id"             json:"id"`
	ApplicationID uuid.UUID `db:"application_id" json:"application_id"`
	KeyHash       string    `db:"key_hash"       json:"-"`
	KeyPreview    string    `db:"key_preview"    json:"key_preview"`
	Metadata      *string   `db:"metadata"       json:"metadata"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// APIKeyWithApplication is an APIKey joined with the fields of its owning
// application needed for validation and operator confirmations.
type APIKeyWithApplication struct {
	APIKey
	ApplicationName string `db:"application_name"`
	KeyPrefix       string `db:"key_prefix"`
	ClientSecret    string `db:"client_secret"`
}
