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

// PostgresTrackRepository implements the per-user ordered track list against a PostgreSQL database.
//
// Every operation that computes or rewrites positions runs in a transaction
// that first locks the owner's users row, which serializes add, delete and
// reorder for one user while leaving other users independent.
type PostgresTrackRepository struct {
	// DB is the database handle for executing queries and transactions.
	DB *sql.DB
}

// NewPostgresTrackRepository creates a new PostgresTrackRepository using the provided *sql.DB.
func NewPostgresTrackRepository(db *sql.DB) *PostgresTrackRepository {
	return &PostgresTrackRepository{DB: db}
}

// List returns the user's tracks sorted by position.
func (r *PostgresTrackRepository) List(ctx context.Context, userID int64) ([]models.Track, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, user_id, name, storage_handle, position FROM tracks
		WHERE user_id = $1 ORDER BY position ASC, id ASC
	`, userID)
	if err != nil {
		return nil, apperr.IO("list tracks", err)
	}
	defer rows.Close()

	tracks := make([]models.Track, 0)
	for rows.Next() {
		var t models.Track
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Handle, &t.Position); err != nil {
			return nil, apperr.IO("scan track", err)
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.IO("list tracks", err)
	}
	return tracks, nil
}

// Add appends a track at the end of the user's list.
//
//	ctx:    context for cancellation and deadlines
//	userID: owner of the new track
//	name:   display name
//	handle: Media Storage handle of the uploaded file
//
// Returns the stored track with its assigned id and position.
func (r *PostgresTrackRepository) Add(ctx context.Context, userID int64, name, handle string) (*models.Track, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.IO("begin tx", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return nil, err
	}

	t := models.Track{UserID: userID, Name: name, Handle: handle}
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(position), -1) + 1 FROM tracks WHERE user_id = $1
	`, userID).Scan(&t.Position)
	if err != nil {
		return nil, apperr.IO("next position", err)
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO tracks (user_id, name, storage_handle, position)
		VALUES ($1, $2, $3, $4) RETURNING id
	`, userID, name, handle, t.Position).Scan(&t.ID)
	if err != nil {
		return nil, apperr.IO("insert track", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.IO("commit", err)
	}
	return &t, nil
}

// Rename sets the display name of a track owned by userID.
func (r *PostgresTrackRepository) Rename(ctx context.Context, userID, trackID int64, name string) error {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE tracks SET name = $1 WHERE id = $2 AND user_id = $3
	`, name, trackID, userID)
	if err != nil {
		return apperr.IO("rename track", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.IO("rename track", err)
	}
	if n == 0 {
		return fmt.Errorf("track %d: %w", trackID, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes a track owned by userID and returns its storage handle so the
// caller can release the file.
func (r *PostgresTrackRepository) Delete(ctx context.Context, userID, trackID int64) (string, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return "", apperr.IO("begin tx", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return "", err
	}

	var handle string
	err = tx.QueryRowContext(ctx, `
		DELETE FROM tracks WHERE id = $1 AND user_id = $2 RETURNING storage_handle
	`, trackID, userID).Scan(&handle)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("track %d: %w", trackID, apperr.ErrNotFound)
	}
	if err != nil {
		return "", apperr.IO("delete track", err)
	}

	if err := tx.Commit(); err != nil {
		return "", apperr.IO("commit", err)
	}
	return handle, nil
}

// Reorder rewrites the positions of all of userID's tracks in one statement.
// Tracks listed in order come first, in that order; ids the user does not own
// are ignored and repeated ids count once. Unlisted tracks follow in their
// current relative order, so positions always end up as 0..N-1.
func (r *PostgresTrackRepository) Reorder(ctx context.Context, userID int64, order []int64) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return apperr.IO("begin tx", err)
	}
	defer tx.Rollback()

	if err := lockUser(ctx, tx, userID); err != nil {
		return err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM tracks WHERE user_id = $1 ORDER BY position ASC, id ASC
	`, userID)
	if err != nil {
		return apperr.IO("select track ids", err)
	}
	var current []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return apperr.IO("scan track id", err)
		}
		current = append(current, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return apperr.IO("select track ids", err)
	}
	rows.Close()

	if len(current) > 0 {
		ids, positions := planOrder(current, order)
		_, err = tx.ExecContext(ctx, `
			UPDATE tracks AS t SET position = v.position
			FROM unnest($1::bigint[], $2::bigint[]) AS v(id, position)
			WHERE t.id = v.id AND t.user_id = $3
		`, pq.Array(ids), pq.Array(positions), userID)
		if err != nil {
			return apperr.IO("update positions", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.IO("commit", err)
	}
	return nil
}

// OwnsHandle reports whether handle belongs to one of userID's tracks.
func (r *PostgresTrackRepository) OwnsHandle(ctx context.Context, userID int64, handle string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM tracks WHERE user_id = $1 AND storage_handle = $2)
	`, userID, handle).Scan(&exists)
	if err != nil {
		return false, apperr.IO("check handle owner", err)
	}
	return exists, nil
}

// planOrder computes the new id -> position assignment for a user whose
// tracks are currently ordered as current.
func planOrder(current, requested []int64) (ids, positions []int64) {
	owned := make(map[int64]bool, len(current))
	for _, id := range current {
		owned[id] = true
	}

	ids = make([]int64, 0, len(current))
	placed := make(map[int64]bool, len(current))
	for _, id := range requested {
		if owned[id] && !placed[id] {
			placed[id] = true
			ids = append(ids, id)
		}
	}
	for _, id := range current {
		if !placed[id] {
			ids = append(ids, id)
		}
	}

	positions = make([]int64, len(ids))
	for i := range ids {
		positions[i] = int64(i)
	}
	return ids, positions
}

// lockUser takes the per-user row lock inside tx. A missing user means the
// caller's identity is stale.
func lockUser(ctx context.Context, tx *sql.Tx, userID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d: %w", userID, apperr.ErrUnauthenticated)
	}
	if err != nil {
		return apperr.IO("lock user", err)
	}
	return nil
}
