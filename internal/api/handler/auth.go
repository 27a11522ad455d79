package handler

import (
	"errors"
	"net/http"

	mw "github.com/kiranshivaraju/vince/internal/api/middleware"
	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/service"
)

// NewLoginHandler returns an http.HandlerFunc for POST /api/auth/login.
// On success the session token is set as an HttpOnly cookie; secure adds
// the Secure attribute.
func NewLoginHandler(sessions SessionIssuer, secure bool, rec Recorder) http.HandlerFunc {
	rec = orNop(rec)
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil {
			response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid JSON body", nil)
			return
		}

		token, _, err := sessions.Login(r.Context(), req.Password)
		switch {
		case err == nil:
		case errors.Is(err, service.ErrInvalidPassword):
			rec.RecordLogin(false)
			response.Error(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid password", nil)
			return
		default:
			writeError(w, err)
			return
		}

		rec.RecordLogin(true)
		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(sessions.TTL().Seconds()),
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
		response.JSON(w, map[string]any{"success": true, "message": "Login successful"})
	}
}

// NewLogoutHandler returns an http.HandlerFunc for POST /api/auth/logout.
// It always succeeds and always clears the cookie.
func NewLogoutHandler(sessions SessionIssuer, secure bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(mw.SessionCookie); err == nil && c.Value != "" {
			sessions.Logout(r.Context(), c.Value)
		}

		http.SetCookie(w, &http.Cookie{
			Name:     mw.SessionCookie,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   secure,
			SameSite: http.SameSiteStrictMode,
		})
		response.JSON(w, map[string]any{"success": true, "message": "Logout successful"})
	}
}
