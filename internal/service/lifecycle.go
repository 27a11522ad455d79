package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/kiranshivaraju/vince/pkg/models"
)

// CreateApplicationInput is the operator-supplied part of a new application.
type CreateApplicationInput struct {
	Name            string
	PrefixLabel     string
	DefaultTemplate json.RawMessage
}

// IssuedKey is an API key together with its plaintext, which exists only in
// the response to the create or rotate call that produced it.
type IssuedKey struct {
	Key         *models.APIKey
	Plaintext   string
	Application *models.Application
}

// Manager orchestrates create, rotate and revoke over applications and keys.
type Manager struct {
	store store.Store
}

func NewManager(s store.Store) *Manager {
	return &Manager{store: s}
}

// CreateApplication registers an application and returns it with its
// plaintext client secret. The row is written with a placeholder prefix and
// then updated to the prefix derived from its identifier.
func (m *Manager) CreateApplication(ctx context.Context, in CreateApplicationInput) (*models.Application, error) {
	name := strings.TrimSpace(in.Name)
	label := strings.TrimSpace(in.PrefixLabel)

	if name == "" {
		return nil, invalid("Application name is required")
	}
	if label == "" {
		return nil, invalid("Prefix label is required")
	}
	if !credential.ValidApplicationName(name) {
		return nil, invalid("Invalid application name. Must be 1-100 characters and contain only letters, numbers, spaces, and hyphens")
	}
	if !credential.ValidPrefixLabel(label) {
		return nil, invalid("Invalid prefix label. Must be 1-50 characters and contain only letters, numbers, spaces, and hyphens")
	}

	template, err := normalizeTemplate(in.DefaultTemplate)
	if err != nil {
		return nil, err
	}

	secret, err := credential.NewClientSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:              uuid.New(),
		Name:            name,
		PrefixLabel:     label,
		KeyPrefix:       models.PlaceholderKeyPrefix,
		ClientSecret:    secret,
		DefaultTemplate: template,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := m.store.CreateApplication(ctx, app); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return nil, conflict("Application name already exists")
		}
		return nil, fmt.Errorf("create application: %w", err)
	}

	keyPrefix := credential.KeyPrefix(app.ID.String(), label)
	if err := m.store.UpdateApplicationKeyPrefix(ctx, app.ID, keyPrefix); err != nil {
		// Do not leave an application behind that can never issue valid keys.
		if _, derr := m.store.DeleteApplication(ctx, app.ID); derr != nil {
			slog.Error("failed to remove half-created application", "application_id", app.ID, "error", derr)
		}
		return nil, fmt.Errorf("set key prefix: %w", err)
	}
	app.KeyPrefix = keyPrefix

	slog.Info("application created", "application_id", app.ID)
	return app, nil
}

func (m *Manager) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := m.store.GetApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return app, nil
}

func (m *Manager) ListApplications(ctx context.Context) ([]*models.Application, error) {
	apps, err := m.store.ListApplications(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

// DeleteApplication removes the application and all of its keys, returning
// the deleted application and how many keys went with it.
func (m *Manager) DeleteApplication(ctx context.Context, id uuid.UUID) (*models.Application, int, error) {
	app, err := m.GetApplication(ctx, id)
	if err != nil {
		return nil, 0, err
	}

	removed, err := m.store.DeleteApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, 0, ErrApplicationNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("delete application: %w", err)
	}

	slog.Info("application deleted", "application_id", id, "keys_removed", removed)
	return app, removed, nil
}

// CreateAPIKey issues a new key under the application's prefix. An empty
// metadata string is stored as no metadata.
func (m *Manager) CreateAPIKey(ctx context.Context, applicationID uuid.UUID, metadata *string) (*IssuedKey, error) {
	if !credential.ValidMetadata(metadata) {
		return nil, invalid(fmt.Sprintf("Invalid metadata. Must be a string with maximum %d characters", credential.MaxMetadataLen))
	}
	if metadata != nil && *metadata == "" {
		metadata = nil
	}

	app, err := m.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}

	plaintext, err := credential.NewAPIKey(app.KeyPrefix)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key := &models.APIKey{
		ID:            uuid.New(),
		ApplicationID: app.ID,
		KeyHash:       credential.Hash(plaintext),
		KeyPreview:    credential.Mask(plaintext),
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := m.store.CreateAPIKey(ctx, key); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			return nil, conflict("Key generation failed, please try again")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("create api key: %w", err)
	}

	slog.Info("api key created", "key_id", key.ID, "application_id", app.ID)
	return &IssuedKey{Key: key, Plaintext: plaintext, Application: app}, nil
}

// ListAPIKeys returns the application and its keys, newest first.
func (m *Manager) ListAPIKeys(ctx context.Context, applicationID uuid.UUID) (*models.Application, []*models.APIKey, error) {
	app, err := m.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}

	keys, err := m.store.ListAPIKeys(ctx, applicationID)
	if err != nil {
		return nil, nil, fmt.Errorf("list api keys: %w", err)
	}
	return app, keys, nil
}

func (m *Manager) GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error) {
	key, err := m.store.GetAPIKey(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// RotateAPIKey replaces a key's value under the same application prefix.
// The identifier and metadata are preserved; the old value stops validating.
func (m *Manager) RotateAPIKey(ctx context.Context, id uuid.UUID) (*IssuedKey, error) {
	existing, err := m.GetAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}

	plaintext, err := credential.NewAPIKey(existing.KeyPrefix)
	if err != nil {
		return nil, err
	}

	key, err := m.store.UpdateAPIKeyCredential(ctx, id, credential.Hash(plaintext), credential.Mask(plaintext))
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateKey):
			return nil, conflict("Key rotation failed, please try again")
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("rotate api key: %w", err)
	}

	slog.Info("api key rotated", "key_id", id, "application_id", key.ApplicationID)
	app := &models.Application{
		ID:        existing.ApplicationID,
		Name:      existing.ApplicationName,
		KeyPrefix: existing.KeyPrefix,
	}
	return &IssuedKey{Key: key, Plaintext: plaintext, Application: app}, nil
}

// RevokeAPIKey hard-deletes a key and returns what was deleted, without
// its value, for operator confirmation.
func (m *Manager) RevokeAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error) {
	existing, err := m.GetAPIKey(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := m.store.DeleteAPIKey(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("revoke api key: %w", err)
	}

	slog.Info("api key revoked", "key_id", id, "application_id", existing.ApplicationID)
	return existing, nil
}

// RotateClientSecret replaces an application's client secret. Every key of
// the application stops validating with the old secret immediately.
func (m *Manager) RotateClientSecret(ctx context.Context, applicationID uuid.UUID) (*models.Application, error) {
	secret, err := credential.NewClientSecret()
	if err != nil {
		return nil, err
	}

	app, err := m.store.UpdateClientSecret(ctx, applicationID, secret)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("rotate client secret: %w", err)
	}

	slog.Info("client secret rotated", "application_id", applicationID)
	return app, nil
}

// normalizeTemplate accepts an absent template or a JSON object.
func normalizeTemplate(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return json.RawMessage("{}"), nil
	}

	var obj map[string]any
	if trimmed[0] != '{' || json.Unmarshal(trimmed, &obj) != nil {
		return nil, invalid("Default template must be a valid JSON object")
	}
	return json.RawMessage(trimmed), nil
}
