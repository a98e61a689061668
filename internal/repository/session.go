package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/models"
)

// PostgresSessionRepository stores login sessions in the sessions table.
// Expired rows are removed by db.StartSessionCleaner.
type PostgresSessionRepository struct {
	DB *sql.DB
}

// NewPostgresSessionRepository creates a new PostgresSessionRepository using the provided *sql.DB.
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// Create persists s.
func (r *PostgresSessionRepository) Create(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, expires_at) VALUES ($1, $2, $3)`,
		s.ID, s.UserID, s.ExpiresAt.UTC(),
	)
	if err != nil {
		return apperr.IO("insert session", err)
	}
	return nil
}

// Get returns the session with the given id together with its owner's
// username. Expired sessions are returned as-is; the caller decides.
func (r *PostgresSessionRepository) Get(ctx context.Context, id string) (*models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx, `
		SELECT s.id, s.user_id, u.username, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.id = $1
	`, id).Scan(&s.ID, &s.UserID, &s.Username, &s.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session: %w", apperr.ErrNotFound)
	}
	if err != nil {
		return nil, apperr.IO("select session", err)
	}
	return &s, nil
}

// Touch moves the expiry of session id to expiresAt.
func (r *PostgresSessionRepository) Touch(ctx context.Context, id string, expiresAt time.Time) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE sessions SET expires_at = $1 WHERE id = $2`,
		expiresAt.UTC(), id,
	)
	if err != nil {
		return apperr.IO("touch session", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.IO("touch session", err)
	}
	if n == 0 {
		return fmt.Errorf("session: %w", apperr.ErrNotFound)
	}
	return nil
}

// Delete removes session id. Deleting a missing session is not an error.
func (r *PostgresSessionRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return apperr.IO("delete session", err)
	}
	return nil
}
