package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/metrics"
	"github.com/kiranshivaraju/vince/internal/service"
)

// NewValidateHandler returns an http.HandlerFunc for POST /api/validate.
// The service credential has already been checked by middleware.
func NewValidateHandler(v Validator, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			APIKey       any `json:"apiKey"`
			ClientSecret any `json:"clientSecret"`
		}
		if err := decodeJSON(r, &req); err != nil {
			rec.RecordValidation(metrics.ResultBadRequest)
			response.Invalid(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body")
			return
		}

		// Non-string values are treated as missing.
		apiKey, _ := req.APIKey.(string)
		clientSecret, _ := req.ClientSecret.(string)

		result, err := v.Validate(r.Context(), apiKey, clientSecret)
		if err != nil {
			writeValidationError(w, rec, err)
			return
		}

		rec.RecordValidation(metrics.ResultValid)
		response.Valid(w, result)
	}
}

func writeValidationError(w http.ResponseWriter, rec Recorder, err error) {
	var verr *service.ValidationError

	switch {
	case errors.As(err, &verr):
		rec.RecordValidation(metrics.ResultBadRequest)
		response.Invalid(w, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message)
	case errors.Is(err, service.ErrMalformedKey):
		rec.RecordValidation(metrics.ResultMalformed)
		response.Invalid(w, http.StatusBadRequest, "INVALID_API_KEY", "Invalid API key format")
	case errors.Is(err, service.ErrUnknownKey):
		rec.RecordValidation(metrics.ResultUnknownKey)
		response.Invalid(w, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid API key")
	case errors.Is(err, service.ErrClientSecretMismatch):
		rec.RecordValidation(metrics.ResultSecretMismatch)
		response.Invalid(w, http.StatusUnauthorized, "INVALID_API_KEY", "Invalid client secret for this application")
	default:
		rec.RecordValidation(metrics.ResultError)
		slog.Error("validation failed", "error", err)
		response.Invalid(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
	}
}
