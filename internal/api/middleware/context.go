package middleware

import (
	"context"
	"net/http"

	"github.com/kiranshivaraju/vince/internal/service"
)

type contextKey string

const sessionClaimsKey contextKey = "session_claims"

func SetSessionClaims(ctx context.Context, claims *service.SessionClaims) context.Context {
	return context.WithValue(ctx, sessionClaimsKey, claims)
}

// GetSessionClaims returns the claims of the admin session that passed
// RequireSession.
func GetSessionClaims(r *http.Request) (*service.SessionClaims, bool) {
	claims, ok := r.Context().Value(sessionClaimsKey).(*service.SessionClaims)
	return claims, ok && claims != nil
}
