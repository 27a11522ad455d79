package middleware

import (
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// Audit logs every state-changing admin request with the session that made
// it. It must run after RequireSession.
func Audit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		sessionID := ""
		if claims, ok := GetSessionClaims(r); ok {
			sessionID = claims.SessionID
		}
		slog.Info("admin action",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"session_id", sessionID,
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}
