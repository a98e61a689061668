package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/auth"
	"github.com/atinyakov/soundpad/internal/models"
)

type mockVerifier struct {
	VerifyFunc func(ctx context.Context, username, password string) (*models.User, error)
}

func (m *mockVerifier) Verify(ctx context.Context, username, password string) (*models.User, error) {
	return m.VerifyFunc(ctx, username, password)
}

func aliceVerifier() *mockVerifier {
	return &mockVerifier{
		VerifyFunc: func(_ context.Context, username, password string) (*models.User, error) {
			if username == "alice" && password == "pw" {
				return &models.User{ID: 1, Username: "alice"}, nil
			}
			return nil, apperr.ErrAuthFailed
		},
	}
}

func newTestSessions(t *testing.T) (*SessionService, *memSessions) {
	t.Helper()
	store := newMemSessions()
	svc := NewSessionService(aliceVerifier(), store, auth.NewTokenCodec([]byte("secret")), 0)
	return svc, store
}

func TestLogin(t *testing.T) {
	svc, store := newTestSessions(t)

	user, ticket, err := svc.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if user.ID != 1 || ticket.Token == "" {
		t.Fatalf("unexpected login result: %+v %+v", user, ticket)
	}
	if d := time.Until(ticket.ExpiresAt); d < DefaultSessionTTL-time.Minute || d > DefaultSessionTTL {
		t.Errorf("expiry in %v; want about 30 days", d)
	}
	if len(store.byID) != 1 {
		t.Errorf("sessions stored = %d; want 1", len(store.byID))
	}
}

func TestLogin_BadCredentials(t *testing.T) {
	svc, store := newTestSessions(t)

	_, _, err := svc.Login(context.Background(), "alice", "nope")
	if !errors.Is(err, apperr.ErrAuthFailed) {
		t.Fatalf("Login error = %v; want ErrAuthFailed", err)
	}
	if len(store.byID) != 0 {
		t.Errorf("no session may be created on failed login")
	}
}

func TestAuthenticate_SlidesExpiry(t *testing.T) {
	svc, store := newTestSessions(t)
	ctx := context.Background()

	start := time.Now()
	svc.now = func() time.Time { return start }
	_, ticket, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	later := start.Add(10 * 24 * time.Hour)
	svc.now = func() time.Time { return later }
	id, fresh, err := svc.Authenticate(ctx, ticket.Token)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if id.UserID != 1 || id.Username != "alice" || id.SessionID == "" {
		t.Errorf("unexpected identity: %+v", id)
	}
	if !fresh.ExpiresAt.Equal(later.Add(DefaultSessionTTL)) {
		t.Errorf("fresh expiry = %v; want %v", fresh.ExpiresAt, later.Add(DefaultSessionTTL))
	}
	if got := store.byID[id.SessionID].ExpiresAt; !got.Equal(fresh.ExpiresAt) {
		t.Errorf("stored expiry = %v; want %v", got, fresh.ExpiresAt)
	}
}

func TestAuthenticate_ExpiredSessionRemoved(t *testing.T) {
	svc, store := newTestSessions(t)
	ctx := context.Background()

	_, ticket, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	// token still valid, server-side session already past its window
	for id, s := range store.byID {
		s.ExpiresAt = time.Now().Add(-time.Minute)
		store.byID[id] = s
	}

	_, _, err = svc.Authenticate(ctx, ticket.Token)
	if !errors.Is(err, apperr.ErrExpired) {
		t.Fatalf("Authenticate error = %v; want ErrExpired", err)
	}
	if len(store.byID) != 0 {
		t.Errorf("expired session must be deleted")
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	svc, _ := newTestSessions(t)
	ctx := context.Background()

	other := auth.NewTokenCodec([]byte("secret"))
	orphan, err := other.Issue("no-such-session", 1, "alice", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	expired, err := other.Issue("sid", 1, "alice", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"empty", "", apperr.ErrUnauthenticated},
		{"forged", "abc.def.ghi", apperr.ErrUnauthenticated},
		{"unknown session", orphan, apperr.ErrUnauthenticated},
		{"expired token", expired, apperr.ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Authenticate(ctx, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authenticate error = %v; want %v", err, tt.want)
			}
		})
	}
}

func TestAuthenticate_OwnerMismatch(t *testing.T) {
	svc, store := newTestSessions(t)
	ctx := context.Background()

	_, ticket, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}
	for id, s := range store.byID {
		s.UserID = 2
		store.byID[id] = s
	}

	if _, _, err := svc.Authenticate(ctx, ticket.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("Authenticate error = %v; want ErrUnauthenticated", err)
	}
}

func TestLogout_Idempotent(t *testing.T) {
	svc, store := newTestSessions(t)
	ctx := context.Background()

	_, ticket, err := svc.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatal(err)
	}

	if err := svc.Logout(ctx, ticket.Token); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if err := svc.Logout(ctx, ticket.Token); err != nil {
		t.Fatalf("second Logout: %v", err)
	}
	if err := svc.Logout(ctx, "garbage"); err != nil {
		t.Fatalf("Logout with garbage token: %v", err)
	}
	if len(store.byID) != 0 {
		t.Errorf("session not removed")
	}

	if _, _, err := svc.Authenticate(ctx, ticket.Token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("Authenticate after logout = %v; want ErrUnauthenticated", err)
	}
}
