package handler

import (
	"net/http"

	"github.com/kiranshivaraju/vince/internal/api/response"
)

// NewGetServiceKeyHandler returns an http.HandlerFunc for GET /api/admin/service-key.
// Only the masked preview is available; the plaintext is shown once, at rotation.
func NewGetServiceKeyHandler(keys ServiceKeyRotator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cred, err := keys.Current(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		response.JSON(w, map[string]any{
			"serviceKey": cred.Preview,
			"version":    cred.Version,
			"createdAt":  cred.CreatedAt,
		})
	}
}

// NewRotateServiceKeyHandler returns an http.HandlerFunc for POST /api/admin/service-key/rotate.
// The new key takes effect for every instance sharing the store as soon as
// the cached hash expires or is invalidated.
func NewRotateServiceKeyHandler(keys ServiceKeyRotator, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		plaintext, cred, err := keys.Rotate(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}

		rec.RecordCredentialOperation("service_key_rotate")
		response.JSON(w, map[string]any{
			"success": true,
			"newKey":  plaintext,
			"version": cred.Version,
			"message": "Service API key rotated successfully",
		})
	}
}
