package response

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Data any `json:"data"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// validEnvelope and invalidEnvelope are the bodies of the validation
// endpoint, which callers branch on by the "valid" field.
type validEnvelope struct {
	Valid bool `json:"valid"`
	Data  any  `json:"data"`
}

type invalidEnvelope struct {
	Valid bool   `json:"valid"`
	Error string `json:"error"`
	Code  string `json:"code"`
}

func JSON(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Data: data})
}

func Created(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusCreated, envelope{Data: data})
}

func Error(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, errorEnvelope{Error: errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

// Valid writes a successful validation result.
func Valid(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, validEnvelope{Valid: true, Data: data})
}

// Invalid writes a rejected validation request.
func Invalid(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, invalidEnvelope{Valid: false, Error: message, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
