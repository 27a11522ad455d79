package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/vince/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetApplicationByName(ctx context.Context, name string) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	UpdateApplicationKeyPrefix(ctx context.Context, id uuid.UUID, keyPrefix string) error
	UpdateClientSecret(ctx context.Context, id uuid.UUID, clientSecret string) (*models.Application, error)
	// DeleteApplication removes the application and all of its API keys in
	// one transaction and returns how many keys were removed.
	DeleteApplication(ctx context.Context, id uuid.UUID) (int, error)

	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*models.APIKeyWithApplication, error)
	ListAPIKeys(ctx context.Context, applicationID uuid.UUID) ([]*models.APIKey, error)
	// UpdateAPIKeyCredential replaces the hash and preview of a key, leaving
	// its ID and metadata untouched.
	UpdateAPIKeyCredential(ctx context.Context, id uuid.UUID, keyHash, keyPreview string) (*models.APIKey, error)
	DeleteAPIKey(ctx context.Context, id uuid.UUID) error

	CreateSession(ctx context.Context, session *models.AdminSession) error
	GetSession(ctx context.Context, sessionID string) (*models.AdminSession, error)
	DeleteSession(ctx context.Context, sessionID string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)

	GetServiceCredential(ctx context.Context) (*models.ServiceCredential, error)
	// PutServiceCredential stores a new version and returns it.
	PutServiceCredential(ctx context.Context, keyHash, preview string) (*models.ServiceCredential, error)
}
