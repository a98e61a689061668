package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
	"golang.org/x/crypto/bcrypt"
)

type mockAuthRepo struct {
	CreateUserFunc        func(ctx context.Context, username string, hash []byte) (int64, error)
	GetUserByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
}

func (m *mockAuthRepo) CreateUser(ctx context.Context, username string, hash []byte) (int64, error) {
	return m.CreateUserFunc(ctx, username, hash)
}
func (m *mockAuthRepo) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return m.GetUserByUsernameFunc(ctx, username)
}

func TestRegister_HashesPassword(t *testing.T) {
	var stored []byte
	repo := &mockAuthRepo{
		CreateUserFunc: func(ctx context.Context, username string, hash []byte) (int64, error) {
			if username != "alice" {
				t.Errorf("CreateUser received username = %q; want %q", username, "alice")
			}
			stored = hash
			return 1, nil
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	id, err := svc.Register(context.Background(), "  alice ", "pw")
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if id != 1 {
		t.Errorf("id = %d; want 1", id)
	}
	if bytes.Equal(stored, []byte("pw")) {
		t.Fatal("password stored in plaintext")
	}
	if err := bcrypt.CompareHashAndPassword(stored, []byte("pw")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_InvalidInput(t *testing.T) {
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, string, []byte) (int64, error) {
			t.Fatal("CreateUser must not be called")
			return 0, nil
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	tests := []struct{ name, username, password string }{
		{"empty username", "", "pw"},
		{"blank username", "   ", "pw"},
		{"empty password", "alice", ""},
		{"password too long", "alice", strings.Repeat("x", 73)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.username, tt.password)
			if !errors.Is(err, apperr.ErrInvalidInput) {
				t.Errorf("Register error = %v; want ErrInvalidInput", err)
			}
		})
	}
}

func TestRegister_Duplicate(t *testing.T) {
	repo := &mockAuthRepo{
		CreateUserFunc: func(context.Context, string, []byte) (int64, error) {
			return 0, apperr.ErrAlreadyExists
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	_, err := svc.Register(context.Background(), "alice", "pw")
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Fatalf("Register error = %v; want ErrAlreadyExists", err)
	}
}

func TestVerify(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	repo := &mockAuthRepo{
		GetUserByUsernameFunc: func(_ context.Context, username string) (*models.User, error) {
			if username != "alice" {
				return nil, apperr.ErrNotFound
			}
			return &models.User{ID: 1, Username: "alice", PasswordHash: hash}, nil
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	user, err := svc.Verify(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if user.ID != 1 {
		t.Errorf("user id = %d; want 1", user.ID)
	}

	if _, err := svc.Verify(context.Background(), "alice", "wrong"); !errors.Is(err, apperr.ErrAuthFailed) {
		t.Errorf("wrong password: err = %v; want ErrAuthFailed", err)
	}
	if _, err := svc.Verify(context.Background(), "mallory", "pw"); !errors.Is(err, apperr.ErrAuthFailed) {
		t.Errorf("unknown user: err = %v; want ErrAuthFailed", err)
	}
}

func TestVerify_EmptyCredentials(t *testing.T) {
	repo := &mockAuthRepo{
		GetUserByUsernameFunc: func(context.Context, string) (*models.User, error) {
			t.Error("repository queried for empty credentials")
			return nil, apperr.ErrNotFound
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	for _, c := range []struct{ username, password string }{
		{"", "pw"},
		{"   ", "pw"},
		{"alice", ""},
		{"", ""},
	} {
		if _, err := svc.Verify(context.Background(), c.username, c.password); !errors.Is(err, apperr.ErrAuthFailed) {
			t.Errorf("Verify(%q, %q) err = %v; want ErrAuthFailed", c.username, c.password, err)
		}
	}
}

func TestVerify_RepoError(t *testing.T) {
	wantErr := apperr.IO("select user", errors.New("db down"))
	repo := &mockAuthRepo{
		GetUserByUsernameFunc: func(context.Context, string) (*models.User, error) {
			return nil, wantErr
		},
	}
	svc := newAuthService(repo, bcrypt.MinCost)

	_, err := svc.Verify(context.Background(), "alice", "pw")
	if err != wantErr {
		t.Fatalf("Verify error = %v; want %v", err, wantErr)
	}
}
