package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// PlaceholderKeyPrefix is written on insert, before the application ID is
// known, and replaced with the derived prefix in the same create call.
const PlaceholderKeyPrefix = "temp"

// Application is a registered consumer of API keys. Every APIKey belongs to
// exactly one application and is deleted with it.
type Application struct {
	ID              uuid.UUID       `db:"id"               json:"id"`
	Name            string          `db:"name"             json:"name"`
	PrefixLabel     string          `db:"prefix_label"     json:"prefix_label"`
	KeyPrefix       string          `db:"key_prefix"       json:"key_prefix"`
	ClientSecret    string          `db:"client_secret"    json:"-"`
	DefaultTemplate json.RawMessage `db:"default_template" json:"default_template"`
	KeyCount        int             `db:"key_count"        json:"key_count"`
	CreatedAt       time.Time       `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"       json:"updated_at"`
}
