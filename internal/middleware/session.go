package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/atinyakov/soundpad/internal/service"
	"go.uber.org/zap"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "soundpad_session"

// Authenticator resolves a session token to an identity and a replacement token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Identity, service.Ticket, error)
}

// SetSessionCookie writes ticket as the session cookie.
func SetSessionCookie(w http.ResponseWriter, ticket service.Ticket, secure bool) {
	maxAge := int(time.Until(ticket.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    ticket.Token,
		Path:     "/",
		Expires:  ticket.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the client to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the raw session cookie value of r, or "".
func SessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// RequireSession rejects requests without a valid session with 401.
//
// On success it re-issues the cookie with the slid expiry and stores the
// identity in the request context, where IdentityFromContext finds it.
func RequireSession(auth Authenticator, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ticket, err := auth.Authenticate(r.Context(), SessionToken(r))
			if err != nil {
				status := apperr.Status(err)
				if status >= http.StatusInternalServerError {
					logger.Error("session lookup failed", zap.Error(err))
				} else {
					ClearSessionCookie(w, secure)
				}
				writeError(w, status, apperr.Message(err))
				return
			}

			SetSessionCookie(w, ticket, secure)
			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext returns the identity stored by RequireSession.
func IdentityFromContext(ctx context.Context) (models.Identity, bool) {
	id, ok := ctx.Value(identityKey).(models.Identity)
	return id, ok && id.UserID > 0
}
