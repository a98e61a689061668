// Package auth encodes and decodes the signed session cookie value.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session token. The token only points at a
// server-side session; it grants nothing once that session is gone.
type Claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
	UserID    int64  `json:"uid"`
	Username  string `json:"unm"`
}

// TokenCodec signs and verifies HS256 session tokens.
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec returns a codec keyed by secret.
func NewTokenCodec(secret []byte) *TokenCodec {
	return &TokenCodec{secret: secret, now: time.Now}
}

// Issue signs a token for the given session that expires at expiresAt.
func (c *TokenCodec) Issue(sessionID string, userID int64, username string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(c.now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature and expiry of tokenString. A bad token yields
// apperr.ErrUnauthenticated, an expired one apperr.ErrExpired.
func (c *TokenCodec) Parse(tokenString string) (*Claims, error) {
	return c.parse(tokenString, jwt.WithTimeFunc(c.now), jwt.WithExpirationRequired())
}

// ParseIgnoringExpiry verifies only the signature. Logout uses it so that an
// expired cookie can still end its session.
func (c *TokenCodec) ParseIgnoringExpiry(tokenString string) (*Claims, error) {
	return c.parse(tokenString, jwt.WithoutClaimsValidation())
}

func (c *TokenCodec) parse(tokenString string, opts ...jwt.ParserOption) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("empty token: %w", apperr.ErrUnauthenticated)
	}

	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, opts...)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("token: %w", apperr.ErrExpired)
	}
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("token: %w", apperr.ErrUnauthenticated)
	}
	if claims.SessionID == "" || claims.UserID <= 0 {
		return nil, fmt.Errorf("token claims: %w", apperr.ErrUnauthenticated)
	}
	return claims, nil
}
