package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/auth"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/google/uuid"
)

// DefaultSessionTTL is the sliding session lifetime.
const DefaultSessionTTL = 30 * 24 * time.Hour

// SessionStore persists login sessions server-side. The Postgres repository
// and the Redis store both implement it.
type SessionStore interface {
	Create(ctx context.Context, s models.Session) error
	// Get returns the session or apperr.ErrNotFound.
	Get(ctx context.Context, id string) (*models.Session, error)
	// Touch moves the expiry of an existing session.
	Touch(ctx context.Context, id string, expiresAt time.Time) error
	// Delete is idempotent.
	Delete(ctx context.Context, id string) error
}

// Verifier checks a username/password pair.
type Verifier interface {
	Verify(ctx context.Context, username, password string) (*models.User, error)
}

// Ticket is a freshly issued session token and when it stops being valid.
type Ticket struct {
	Token     string
	ExpiresAt time.Time
}

// SessionService logs users in and resolves session tokens to identities.
type SessionService struct {
	verifier Verifier
	store    SessionStore
	codec    *auth.TokenCodec
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionService constructs a SessionService. A non-positive ttl falls
// back to DefaultSessionTTL.
func NewSessionService(verifier Verifier, store SessionStore, codec *auth.TokenCodec, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{verifier: verifier, store: store, codec: codec, ttl: ttl, now: time.Now}
}

// Login verifies the credentials, opens a session and returns its token.
func (s *SessionService) Login(ctx context.Context, username, password string) (*models.User, Ticket, error) {
	user, err := s.verifier.Verify(ctx, username, password)
	if err != nil {
		return nil, Ticket{}, err
	}

	sess := models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Username:  user.Username,
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, Ticket{}, err
	}

	ticket, err := s.issue(sess)
	if err != nil {
		return nil, Ticket{}, err
	}
	return user, ticket, nil
}

// Authenticate resolves token to an identity and slides the session expiry.
// The returned ticket replaces the caller's token.
func (s *SessionService) Authenticate(ctx context.Context, token string) (models.Identity, Ticket, error) {
	claims, err := s.codec.Parse(token)
	if err != nil {
		return models.Identity{}, Ticket{}, err
	}

	sess, err := s.store.Get(ctx, claims.SessionID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.Identity{}, Ticket{}, fmt.Errorf("session gone: %w", apperr.ErrUnauthenticated)
	}
	if err != nil {
		return models.Identity{}, Ticket{}, err
	}
	if sess.UserID != claims.UserID {
		return models.Identity{}, Ticket{}, fmt.Errorf("session owner mismatch: %w", apperr.ErrUnauthenticated)
	}

	now := s.now()
	if !now.Before(sess.ExpiresAt) {
		_ = s.store.Delete(ctx, sess.ID)
		return models.Identity{}, Ticket{}, apperr.ErrExpired
	}

	sess.ExpiresAt = now.Add(s.ttl)
	if err := s.store.Touch(ctx, sess.ID, sess.ExpiresAt); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Identity{}, Ticket{}, fmt.Errorf("session gone: %w", apperr.ErrUnauthenticated)
		}
		return models.Identity{}, Ticket{}, err
	}

	ticket, err := s.issue(*sess)
	if err != nil {
		return models.Identity{}, Ticket{}, err
	}
	return models.Identity{UserID: sess.UserID, Username: sess.Username, SessionID: sess.ID}, ticket, nil
}

// Logout ends the session token points at. Bad tokens and sessions that are
// already gone are not errors.
func (s *SessionService) Logout(ctx context.Context, token string) error {
	claims, err := s.codec.ParseIgnoringExpiry(token)
	if err != nil {
		return nil
	}
	return s.store.Delete(ctx, claims.SessionID)
}

func (s *SessionService) issue(sess models.Session) (Ticket, error) {
	token, err := s.codec.Issue(sess.ID, sess.UserID, sess.Username, sess.ExpiresAt)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Token: token, ExpiresAt: sess.ExpiresAt}, nil
}
