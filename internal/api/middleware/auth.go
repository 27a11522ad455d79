package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/vince/internal/api/response"
	"github.com/kiranshivaraju/vince/internal/service"
)

// SessionCookie is the name of the cookie carrying the admin session token.
const SessionCookie = "session"

// ServiceAuthenticator checks the service credential presented by callers of
// the validation endpoint.
type ServiceAuthenticator interface {
	Authenticate(ctx context.Context, presented string) error
}

// SessionAuthorizer verifies admin session tokens.
type SessionAuthorizer interface {
	Authorize(ctx context.Context, token string) (*service.SessionClaims, error)
}

// Auth provides the two authentication gates: the service credential for
// machine callers and the session cookie for operators.
type Auth struct {
	services ServiceAuthenticator
	sessions SessionAuthorizer
}

// NewAuth creates a new Auth middleware.
func NewAuth(services ServiceAuthenticator, sessions SessionAuthorizer) *Auth {
	return &Auth{services: services, sessions: sessions}
}

// RequireServiceKey checks the Bearer token against the current service
// credential before the request body is read. Rejections use the
// validation response shape.
func (a *Auth) RequireServiceKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractBearerToken(r)
		if token == "" {
			response.Invalid(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Authorization header required")
			return
		}

		err := a.services.Authenticate(r.Context(), token)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, service.ErrInvalidServiceKey):
			response.Invalid(w, http.StatusUnauthorized,
				"INVALID_SERVICE_KEY", "Invalid service API key")
		default:
			// No credential stored, or the store is unreachable.
			slog.Error("service credential check failed", "error", err)
			response.Invalid(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Service configuration error")
		}
	})
}

// RequireSession admits requests carrying a valid admin session cookie and
// stores the session claims in the request context.
func (a *Auth) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		if token == "" {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Authentication required", nil)
			return
		}

		claims, err := a.sessions.Authorize(r.Context(), token)
		if err != nil {
			response.Error(w, http.StatusUnauthorized,
				"UNAUTHORIZED", "Invalid or expired session", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(SetSessionClaims(r.Context(), claims)))
	})
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
