// Package http provides the HTTP handlers and routing of the soundpad server.
package http

import (
	"context"
	"net/http"

	"github.com/atinyakov/soundpad/internal/middleware"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/atinyakov/soundpad/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the registration operation required by the HTTP handlers.
type AuthService interface {
	// Register creates a user and returns its id.
	Register(ctx context.Context, username, password string) (int64, error)
}

// SessionService defines the login and logout operations required by the HTTP handlers.
type SessionService interface {
	Login(ctx context.Context, username, password string) (*models.User, service.Ticket, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandler handles HTTP requests for registration, login and logout.
type AuthHandler struct {
	// AuthService performs the underlying credential operations.
	AuthService AuthService
	// Sessions opens and closes login sessions.
	Sessions SessionService
	// SecureCookies marks the session cookie Secure (HTTPS deployments).
	SecureCookies bool
	Logger        *zap.Logger
}

// Register handles POST /register with form fields "username" and "password".
// It answers 201 with the new user id.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	id, err := h.AuthService.Register(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

// Login handles POST /login. On success the session cookie is set and the
// body carries the username.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	user, ticket, err := h.Sessions.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}

	middleware.SetSessionCookie(w, ticket, h.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"user":   user.Username,
	})
}

// Logout handles POST /logout. It ends the session named by the cookie, if
// any, and always clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Sessions.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	middleware.ClearSessionCookie(w, h.SecureCookies)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
