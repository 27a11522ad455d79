package handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/service"
)

// NewListApplicationsHandler returns an http.HandlerFunc for GET /api/admin/applications.
func NewListApplicationsHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apps, err := svc.ListApplications(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		views := make([]applicationView, 0, len(apps))
		for _, app := range apps {
			views = append(views, newApplicationView(app, false))
		}
		response.JSON(w, map[string]any{"applications": views})
	}
}

// NewCreateApplicationHandler returns an http.HandlerFunc for POST /api/admin/applications.
// The response is the only place the full client secret appears.
func NewCreateApplicationHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name            string          `json:"name"`
			PrefixLabel     string          `json:"prefixLabel"`
			DefaultTemplate json.RawMessage `json:"defaultTemplate"`
		}
		if err := decodeJSON(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		app, err := svc.CreateApplication(r.Context(), service.CreateApplicationInput{
			Name:            req.Name,
			PrefixLabel:     req.PrefixLabel,
			DefaultTemplate: req.DefaultTemplate,
		})
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("application_create")
		response.Created(w, map[string]any{"application": newApplicationView(app, true)})
	}
}

// NewGetApplicationHandler returns an http.HandlerFunc for GET /api/admin/applications/{appID}.
func NewGetApplicationHandler(svc Lifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "appID")
		if !ok {
			writeError(w, service.ErrApplicationNotFound)
			return
		}

		app, err := svc.GetApplication(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, map[string]any{"application": newApplicationView(app, false)})
	}
}

// NewDeleteApplicationHandler returns an http.HandlerFunc for DELETE /api/admin/applications/{appID}.
func NewDeleteApplicationHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "appID")
		if !ok {
			writeError(w, service.ErrApplicationNotFound)
			return
		}

		app, removed, err := svc.DeleteApplication(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("application_delete")
		response.JSON(w, map[string]any{
			"success":     true,
			"keysRemoved": removed,
			"message":     fmt.Sprintf("Application %q and %d associated API keys deleted successfully", app.Name, removed),
		})
	}
}

// NewRegenerateSecretHandler returns an http.HandlerFunc for
// POST /api/admin/applications/{appID}/regenerate-secret.
func NewRegenerateSecretHandler(svc Lifecycle, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(r, "appID")
		if !ok {
			writeError(w, service.ErrApplicationNotFound)
			return
		}

		app, err := svc.RotateClientSecret(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("client_secret_rotate")
		response.JSON(w, map[string]any{
			"success":      true,
			"clientSecret": app.ClientSecret,
			"message":      fmt.Sprintf("Client secret regenerated for application %q", app.Name),
		})
	}
}
