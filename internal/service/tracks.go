package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/media"
	"github.com/atinyakov/soundpad/internal/models"
	"go.uber.org/zap"
)

// TrackRepository defines the persistence operations needed by the TrackService.
type TrackRepository interface {
	// List returns the user's tracks ordered by position.
	List(ctx context.Context, userID int64) ([]models.Track, error)
	// Add appends a track after the user's current last position.
	Add(ctx context.Context, userID int64, name, handle string) (*models.Track, error)
	// Rename changes a track's display name; apperr.ErrNotFound if not owned.
	Rename(ctx context.Context, userID, trackID int64, name string) error
	// Delete removes an owned track and returns its storage handle.
	Delete(ctx context.Context, userID, trackID int64) (string, error)
	// Reorder rewrites all of the user's positions in one batch.
	Reorder(ctx context.Context, userID int64, order []int64) error
	// OwnsHandle reports whether handle belongs to one of the user's tracks.
	OwnsHandle(ctx context.Context, userID int64, handle string) (bool, error)
}

// TrackService implements the per-user soundboard: upload, rename, delete,
// reorder and playback of owned tracks.
type TrackService struct {
	repo  TrackRepository
	media media.Store
	log   *zap.Logger
}

// NewTrackService constructs a TrackService.
func NewTrackService(repo TrackRepository, store media.Store, log *zap.Logger) *TrackService {
	return &TrackService{repo: repo, media: store, log: log}
}

func checkUser(userID int64) error {
	if userID <= 0 {
		return apperr.ErrUnauthenticated
	}
	return nil
}

// List returns the user's tracks in playback order.
func (s *TrackService) List(ctx context.Context, userID int64) ([]models.Track, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, userID)
}

// Upload stores the file and appends it to the user's list. The file is
// written first; if the registry insert fails the file is removed again.
func (s *TrackService) Upload(ctx context.Context, userID int64, originalName string, r io.Reader) (*models.Track, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(originalName) == "" {
		return nil, apperr.Invalid("file required")
	}

	handle, err := s.media.Store(ctx, originalName, r)
	if err != nil {
		return nil, err
	}

	track, err := s.repo.Add(ctx, userID, handle, handle)
	if err != nil {
		// the request context may be the reason Add failed
		if rmErr := s.media.Remove(context.WithoutCancel(ctx), handle); rmErr != nil {
			s.log.Error("failed to remove orphaned upload",
				zap.String("handle", handle), zap.Error(rmErr))
		}
		return nil, err
	}

	s.log.Info("track uploaded",
		zap.Int64("user_id", userID), zap.Int64("track_id", track.ID), zap.String("handle", handle))
	return track, nil
}

// Rename sets a new display name on an owned track.
func (s *TrackService) Rename(ctx context.Context, userID, trackID int64, name string) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Invalid("name required")
	}
	return s.repo.Rename(ctx, userID, trackID, name)
}

// Delete removes an owned track and its file. Positions of the remaining
// tracks are left as they are.
func (s *TrackService) Delete(ctx context.Context, userID, trackID int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	handle, err := s.repo.Delete(ctx, userID, trackID)
	if err != nil {
		return err
	}
	if err := s.media.Remove(ctx, handle); err != nil {
		return fmt.Errorf("track %d deleted but file remains: %w", trackID, err)
	}
	return nil
}

// Reorder places the listed tracks first, in the given order. A missing
// order is an empty one: positions are only compacted.
func (s *TrackService) Reorder(ctx context.Context, userID int64, order []int64) error {
	if err := checkUser(userID); err != nil {
		return err
	}
	return s.repo.Reorder(ctx, userID, order)
}

// Open returns the content of handle if it belongs to one of the user's tracks.
func (s *TrackService) Open(ctx context.Context, userID int64, handle string) (*media.Object, error) {
	if err := checkUser(userID); err != nil {
		return nil, err
	}
	if !media.ValidHandle(handle) {
		return nil, fmt.Errorf("media %q: %w", handle, apperr.ErrNotFound)
	}

	owned, err := s.repo.OwnsHandle(ctx, userID, handle)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, fmt.Errorf("media %q: %w", handle, apperr.ErrNotFound)
	}

	obj, err := s.media.Open(ctx, handle)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		s.log.Error("failed to open media", zap.String("handle", handle), zap.Error(err))
	}
	return obj, err
}
