package http

import (
	"net/http"

	"github.com/atinyakov/soundpad/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Guards holds the middlewares that protect routes.
type Guards struct {
	// RequireSession rejects requests without a valid session cookie.
	RequireSession func(http.Handler) http.Handler
	// RateLimit throttles the credential endpoints per client IP.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter constructs and returns an HTTP handler that serves
// the soundpad API.
//
// Routes:
//
//	GET  /healthz             → healthHandler.Health
//	POST /register            → authHandler.Register (rate limited)
//	POST /login               → authHandler.Login    (rate limited)
//	POST /logout              → authHandler.Logout
//	GET  /                    → trackHandler.List     (session)
//	POST /upload              → trackHandler.Upload   (session)
//	POST /rename/{trackId}    → trackHandler.Rename   (session)
//	POST /delete/{trackId}    → trackHandler.Delete   (session)
//	POST /reorder             → trackHandler.Reorder  (session, JSON)
//	GET  /uploads/{handle}    → trackHandler.Serve    (session)
//
// Middleware chain (applied in order):
//  1. RequestID: correlation id header and context value
//  2. WithRequestLogging: one log line per request
//  3. Recoverer: panics become 500
func NewRouter(
	authHandler *AuthHandler,
	trackHandler *TrackHandler,
	healthHandler *HealthHandler,
	guards Guards,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.WithRequestLogging(logger))
	r.Use(chiMiddleware.Recoverer)

	forms := chiMiddleware.AllowContentType("application/x-www-form-urlencoded", "multipart/form-data")

	r.Get("/healthz", healthHandler.Health)
	r.Post("/logout", authHandler.Logout)

	// Public credential endpoints
	r.Group(func(r chi.Router) {
		r.Use(guards.RateLimit, forms)
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
	})

	// Protected group: requires a valid session
	r.Group(func(r chi.Router) {
		r.Use(guards.RequireSession)

		r.Get("/", trackHandler.List)
		r.Get("/uploads/{handle}", trackHandler.Serve)
		r.With(chiMiddleware.AllowContentType("application/json")).Post("/reorder", trackHandler.Reorder)

		r.Group(func(r chi.Router) {
			r.Use(forms)
			r.Post("/upload", trackHandler.Upload)
			r.Post("/rename/{trackId:[0-9]+}", trackHandler.Rename)
			r.Post("/delete/{trackId:[0-9]+}", trackHandler.Delete)
		})
	})

	return r
}
