package models

import "time"

// ServiceCredential is one version of the system-wide credential that
// callers of the validation endpoint present as a Bearer token. The highest
// version is current.
type ServiceCredential struct {
	Version   int64     `db:"version"    json:"version"`
	KeyHash   string    `db:"key_hash"   json:"-"`
	Preview   string    `db:"preview"    json:"preview"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
