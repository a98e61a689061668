// Package repository provides PostgreSQL persistence for users, tracks and sessions.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/lib/pq"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgresAuthRepository implements credential persistence using a PostgreSQL database.
type PostgresAuthRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresAuthRepository creates a new PostgresAuthRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{DB: db}
}

// CreateUser inserts a user and returns its id. A taken username yields
// apperr.ErrAlreadyExists.
func (r *PostgresAuthRepository) CreateUser(ctx context.Context, username string, passwordHash []byte) (int64, error) {
	var id int64
	err := r.DB.QueryRowContext(
		ctx,
		`INSERT INTO users (username, password_hash) VALUES ($1, $2) RETURNING id`,
		username, string(passwordHash),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return 0, fmt.Errorf("user %q: %w", username, apperr.ErrAlreadyExists)
		}
		return 0, apperr.IO("insert user", err)
	}
	return id, nil
}

// GetUserByUsername fetches the user with the given username, or
// apperr.ErrNotFound when there is none.
func (r *PostgresAuthRepository) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var (
		u    models.User
		hash string
	)
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT id, username, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Username, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.IO("select user", err)
	}
	u.PasswordHash = []byte(hash)
	return &u, nil
}

// Ping reports whether the database is reachable. The health endpoint uses it.
func (r *PostgresAuthRepository) Ping(ctx context.Context) error {
	if err := r.DB.PingContext(ctx); err != nil {
		return apperr.IO("ping database", err)
	}
	return nil
}
