// Package service holds the soundboard business rules: credentials, login
// sessions and each user's ordered track list. Persistence is delegated to
// repository interfaces declared next to their consumers.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt hashes without truncating.
const maxPasswordBytes = 72

// AuthRepository defines the persistence operations
// required by the authentication service.
type AuthRepository interface {
	// CreateUser stores a new user and returns its id.
	// A taken username yields apperr.ErrAlreadyExists.
	CreateUser(ctx context.Context, username string, passwordHash []byte) (int64, error)
	// GetUserByUsername returns the user or apperr.ErrNotFound.
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// AuthService registers users and verifies their passwords.
type AuthService struct {
	// repo performs the data-layer operations.
	repo AuthRepository
	cost int
	// dummyHash is compared against when the user does not exist, so both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

// NewAuthService constructs an AuthService hashing with bcrypt.DefaultCost.
func NewAuthService(repo AuthRepository) *AuthService {
	return newAuthService(repo, bcrypt.DefaultCost)
}

func newAuthService(repo AuthRepository, cost int) *AuthService {
	dummy, err := bcrypt.GenerateFromPassword([]byte("soundpad-dummy-password"), cost)
	if err != nil {
		// only fails for an out-of-range cost
		panic(fmt.Sprintf("bcrypt dummy hash: %v", err))
	}
	return &AuthService{repo: repo, cost: cost, dummyHash: dummy}
}

// Register creates a user with a bcrypt hash of password.
func (s *AuthService) Register(ctx context.Context, username, password string) (int64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, apperr.Invalid("username and password required")
	}
	if len(password) > maxPasswordBytes {
		return 0, apperr.Invalid("password too long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, username, hash)
}

// Verify returns the user if password matches. Empty credentials, unknown
// users and wrong passwords all yield apperr.ErrAuthFailed after a bcrypt
// comparison.
func (s *AuthService) Verify(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.ErrAuthFailed
	}

	user, err := s.repo.GetUserByUsername(ctx, username)
	if errors.Is(err, apperr.ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, apperr.ErrAuthFailed
	}
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, apperr.ErrAuthFailed
	}
	return user, nil
}
