package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/store"
)

// ValidationResult is everything a successful validation reveals about a key.
type ValidationResult struct {
	Metadata        *string   `json:"metadata"`
	ApplicationName string    `json:"applicationName"`
	KeyID           uuid.UUID `json:"keyId"`
}

// Validator checks presented (API key, client secret) pairs.
type Validator struct {
	store store.Store
}

func NewValidator(s store.Store) *Validator {
	return &Validator{store: s}
}

// Validate returns the bound metadata for a matching pair. Failures are
// ErrValidation for missing input, or one of ErrMalformedKey, ErrUnknownKey
// and ErrClientSecretMismatch. Malformed keys are rejected without a store
// lookup.
func (v *Validator) Validate(ctx context.Context, apiKey, clientSecret string) (*ValidationResult, error) {
	if apiKey == "" {
		return nil, invalid("API key is required")
	}
	if clientSecret == "" {
		return nil, invalid("Client secret is required")
	}

	if !credential.ValidAPIKeyFormat(apiKey) {
		return nil, ErrMalformedKey
	}

	rec, err := v.store.GetAPIKeyByHash(ctx, credential.Hash(apiKey))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnknownKey
	}
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}

	// A hash match on a key outside its application's prefix means the row
	// is inconsistent; treat it as unknown.
	if !credential.HasKeyPrefix(apiKey, rec.KeyPrefix) {
		return nil, ErrUnknownKey
	}

	if !credential.Equal(clientSecret, rec.ClientSecret) {
		return nil, ErrClientSecretMismatch
	}

	return &ValidationResult{
		Metadata:        rec.Metadata,
		ApplicationName: rec.ApplicationName,
		KeyID:           rec.ID,
	}, nil
}
