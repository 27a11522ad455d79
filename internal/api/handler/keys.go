package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/service"
	"github.com/kiranshivaraju/vince/pkg/models"
)

var errInvalidMetadata = &service.ValidationError{
	Message: fmt.Sprintf("Invalid metadata. Must be a string with maximum %d characters", credential.MaxMetadataLen),
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/admin/applications/{appID}/keys.
// Keys are listed by preview only.
func NewListKeysHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "appID")
		if !ok {
			writeError(w, service.ErrApplicationNotFound)
			return
		}

		app, keys, err := svc.ListAPIKeys(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		views := make([]keyView, 0, len(keys))
		for _, k := range keys {
			views = append(views, newKeyView(k, ""))
		}
		response.JSON(w, map[string]any{
			"keys":        views,
			"application": newApplicationRef(app),
		})
	}
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/admin/applications/{appID}/keys.
func NewCreateKeyHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "appID")
		if !ok {
			writeError(w, service.ErrApplicationNotFound)
			return
		}

		var req struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if err := decodeJSON(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}
		metadata, err := parseMetadata(req.Metadata)
		if err != nil {
			writeError(w, err)
			return
		}

		issued, err := svc.CreateAPIKey(r.Context(), id, metadata)
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("api_key_create")
		response.Created(w, map[string]any{
			"key":         newKeyView(issued.Key, issued.Plaintext),
			"application": newApplicationRef(issued.Application),
		})
	}
}

// NewGetKeyHandler returns an http.HandlerFunc for GET /api/admin/keys/{keyID}.
func NewGetKeyHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "keyID")
		if !ok {
			writeError(w, service.ErrKeyNotFound)
			return
		}

		key, err := svc.GetAPIKey(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, map[string]any{
			"key":         newKeyView(&key.APIKey, ""),
			"application": joinedApplication(key),
		})
	}
}

// NewRotateKeyHandler returns an http.HandlerFunc for PUT /api/admin/keys/{keyID}/rotate.
func NewRotateKeyHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "keyID")
		if !ok {
			writeError(w, service.ErrKeyNotFound)
			return
		}

		issued, err := svc.RotateAPIKey(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("api_key_rotate")
		response.JSON(w, map[string]any{
			"key":         newKeyView(issued.Key, issued.Plaintext),
			"application": newApplicationRef(issued.Application),
			"message":     "API key rotated successfully",
		})
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/admin/keys/{keyID}.
func NewRevokeKeyHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "keyID")
		if !ok {
			writeError(w, service.ErrKeyNotFound)
			return
		}

		deleted, err := svc.RevokeAPIKey(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("api_key_revoke")
		response.JSON(w, map[string]any{
			"success": true,
			"message": fmt.Sprintf("API key in application %q has been revoked", deleted.ApplicationName),
			"deletedKey": map[string]any{
				"id":              deleted.ID,
				"metadata":        deleted.Metadata,
				"applicationName": deleted.ApplicationName,
				"applicationId":   deleted.ApplicationID,
			},
		})
	}
}

// parseMetadata accepts an absent or null value, or a JSON string.
func parseMetadata(raw json.RawMessage) (*string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errInvalidMetadata
	}
	return &s, nil
}

func joinedApplication(key *models.APIKeyWithApplication) applicationRef {
	return applicationRef{ID: key.ApplicationID, Name: key.ApplicationName, KeyPrefix: key.KeyPrefix}
}
