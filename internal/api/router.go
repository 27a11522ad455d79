package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	mw "github.com/kiranshivaraju/vince/internal/api/middleware"
	"github.com/kiranshivaraju/vince/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	Auth          *mw.Auth
	ValidateLimit *mw.RateLimit
	LoginLimit    func(http.Handler) http.Handler
	Metrics       mw.RequestRecorder

	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler

	ValidateHandler http.HandlerFunc
	LoginHandler    http.HandlerFunc
	LogoutHandler   http.HandlerFunc

	ListApplications  http.HandlerFunc
	CreateApplication http.HandlerFunc
	GetApplication    http.HandlerFunc
	DeleteApplication http.HandlerFunc
	RegenerateSecret  http.HandlerFunc

	ListKeys  http.HandlerFunc
	CreateKey http.HandlerFunc
	GetKey    http.HandlerFunc
	RotateKey http.HandlerFunc
	RevokeKey http.HandlerFunc

	GetServiceKey    http.HandlerFunc
	RotateServiceKey http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	if deps.Metrics != nil {
		r.Use(mw.Instrument(deps.Metrics))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public
	r.Get("/api/health", orNotImplemented(deps.HealthHandler))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// Service-to-service validation
	r.Group(func(r chi.Router) {
		r.Use(deps.Auth.RequireServiceKey)
		if deps.ValidateLimit != nil {
			r.Use(deps.ValidateLimit.Limit)
		}

		r.Post("/api/validate", orNotImplemented(deps.ValidateHandler))
	})

	// Operator login
	r.Group(func(r chi.Router) {
		if deps.LoginLimit != nil {
			r.Use(deps.LoginLimit)
		}

		r.Post("/api/auth/login", orNotImplemented(deps.LoginHandler))
	})
	r.Post("/api/auth/logout", orNotImplemented(deps.LogoutHandler))

	// Admin routes
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(deps.Auth.RequireSession, mw.Audit)

		r.Get("/applications", orNotImplemented(deps.ListApplications))
		r.Post("/applications", orNotImplemented(deps.CreateApplication))
		r.Get("/applications/{appID}", orNotImplemented(deps.GetApplication))
		r.Delete("/applications/{appID}", orNotImplemented(deps.DeleteApplication))
		r.Post("/applications/{appID}/regenerate-secret", orNotImplemented(deps.RegenerateSecret))

		r.Get("/applications/{appID}/keys", orNotImplemented(deps.ListKeys))
		r.Post("/applications/{appID}/keys", orNotImplemented(deps.CreateKey))
		r.Get("/keys/{keyID}", orNotImplemented(deps.GetKey))
		r.Delete("/keys/{keyID}", orNotImplemented(deps.RevokeKey))
		r.Put("/keys/{keyID}/rotate", orNotImplemented(deps.RotateKey))

		r.Get("/service-key", orNotImplemented(deps.GetServiceKey))
		r.Post("/service-key/rotate", orNotImplemented(deps.RotateServiceKey))
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
