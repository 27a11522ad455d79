// Package handler holds the HTTP handlers. Each handler depends on a small
// interface satisfied by the service layer, so tests can substitute fakes.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/kiranshivaraju/vince/pkg/models"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// Validator checks a presented API key and client secret.
type Validator interface {
	Validate(ctx context.Context, apiKey, clientSecret string) (*service.ValidationResult, error)
}

// Lifecycle manages applications and their API keys.
type Lifecycle interface {
	CreateApplication(ctx context.Context, in service.CreateApplicationInput) (*models.Application, error)
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	ListApplications(ctx context.Context) ([]*models.Application, error)
	DeleteApplication(ctx context.Context, id uuid.UUID) (*models.Application, int, error)
	RotateClientSecret(ctx context.Context, applicationID uuid.UUID) (*models.Application, error)

	CreateAPIKey(ctx context.Context, applicationID uuid.UUID, metadata *string) (*service.IssuedKey, error)
	ListAPIKeys(ctx context.Context, applicationID uuid.UUID) (*models.Application, []*models.APIKey, error)
	GetAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error)
	RotateAPIKey(ctx context.Context, id uuid.UUID) (*service.IssuedKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) (*models.APIKeyWithApplication, error)
}

// SessionIssuer logs operators in and out.
type SessionIssuer interface {
	Login(ctx context.Context, password string) (string, *service.SessionClaims, error)
	Logout(ctx context.Context, token string)
	TTL() time.Duration
}

// ServiceKeyRotator exposes the service credential to operators.
type ServiceKeyRotator interface {
	Current(ctx context.Context) (*models.ServiceCredential, error)
	Rotate(ctx context.Context) (string, *models.ServiceCredential, error)
}

// Recorder receives domain events for metrics. A nil Recorder is replaced
// with one that discards everything.
type Recorder interface {
	RecordValidation(result string)
	RecordCredentialOperation(operation string)
	RecordLogin(success bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordValidation(string)          {}
func (nopRecorder) RecordCredentialOperation(string) {}
func (nopRecorder) RecordLogin(bool)                 {}

func orNop(rec Recorder) Recorder {
	if rec == nil {
		return nopRecorder{}
	}
	return rec
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v at
// its zero value.
func decodeJSON(r *http.Request, v any) error {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// pathID parses a UUID route parameter. Malformed identifiers cannot name an
// existing record and are reported the same way as unknown ones.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	return id, err == nil
}

// writeError maps service errors to the error envelope.
func writeError(w http.ResponseWriter, err error) {
	var verr *service.ValidationError
	var cerr *service.ConflictError

	switch {
	case errors.As(err, &verr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message, nil)
	case errors.As(err, &cerr):
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", cerr.Message, nil)
	case errors.Is(err, service.ErrApplicationNotFound):
		response.Error(w, http.StatusNotFound, "APPLICATION_NOT_FOUND", "Application not found", nil)
	case errors.Is(err, service.ErrKeyNotFound):
		response.Error(w, http.StatusNotFound, "KEY_NOT_FOUND", "API key not found", nil)
	case errors.Is(err, service.ErrNotFound):
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Resource not found", nil)
	case errors.Is(err, service.ErrUnauthorized):
		response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
	default:
		slog.Error("request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}

// --- views ---

type applicationView struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	KeyPrefix       string          `json:"keyPrefix"`
	PrefixLabel     string          `json:"prefixLabel"`
	DefaultTemplate json.RawMessage `json:"defaultTemplate"`
	ClientSecret    string          `json:"clientSecret"`
	KeyCount        int             `json:"keyCount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// newApplicationView renders an application. The client secret is shown in
// full only when reveal is set, i.e. in the response that created it.
func newApplicationView(app *models.Application, reveal bool) applicationView {
	secret := credential.Mask(app.ClientSecret)
	if reveal {
		secret = app.ClientSecret
	}
	tmpl := app.DefaultTemplate
	if len(tmpl) == 0 {
		tmpl = json.RawMessage("{}")
	}
	return applicationView{
		ID:              app.ID,
		Name:            app.Name,
		KeyPrefix:       app.KeyPrefix,
		PrefixLabel:     app.PrefixLabel,
		DefaultTemplate: tmpl,
		ClientSecret:    secret,
		KeyCount:        app.KeyCount,
		CreatedAt:       app.CreatedAt,
		UpdatedAt:       app.UpdatedAt,
	}
}

type applicationRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	KeyPrefix string    `json:"keyPrefix"`
}

func newApplicationRef(app *models.Application) applicationRef {
	return applicationRef{ID: app.ID, Name: app.Name, KeyPrefix: app.KeyPrefix}
}

// keyView renders an API key. KeyValue is the plaintext in create and
// rotate responses and the stored preview everywhere else.
type keyView struct {
	ID            uuid.UUID `json:"id"`
	KeyValue      string    `json:"keyValue"`
	Metadata      *string   `json:"metadata"`
	ApplicationID uuid.UUID `json:"applicationId"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func newKeyView(key *models.APIKey, value string) keyView {
	if value == "" {
		value = key.KeyPreview
	}
	return keyView{
		ID:            key.ID,
		KeyValue:      value,
		Metadata:      key.Metadata,
		ApplicationID: key.ApplicationID,
		CreatedAt:     key.CreatedAt,
		UpdatedAt:     key.UpdatedAt,
	}
}
