package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/media"
	"github.com/atinyakov/soundpad/internal/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TrackService defines the soundboard operations required by the HTTP handlers.
type TrackService interface {
	List(ctx context.Context, userID int64) ([]models.Track, error)
	Upload(ctx context.Context, userID int64, originalName string, r io.Reader) (*models.Track, error)
	Rename(ctx context.Context, userID, trackID int64, name string) error
	Delete(ctx context.Context, userID, trackID int64) error
	Reorder(ctx context.Context, userID int64, order []int64) error
	Open(ctx context.Context, userID int64, handle string) (*media.Object, error)
}

// TrackHandler serves the authenticated user's soundboard.
type TrackHandler struct {
	Tracks TrackService
	// MaxUploadBytes caps the whole multipart request of an upload.
	MaxUploadBytes int64
	Logger         *zap.Logger
}

type boardResponse struct {
	User   string         `json:"user"`
	Tracks []models.Track `json:"tracks"`
}

// List handles GET / and returns the caller's tracks in playback order.
func (h *TrackHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	tracks, err := h.Tracks.List(r.Context(), id.UserID)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, boardResponse{User: id.Username, Tracks: tracks})
}

// Upload handles POST /upload. The multipart part named "file" is streamed
// straight into media storage without buffering the request on disk.
func (h *TrackHandler) Upload(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, r, h.Logger, apperr.Invalid("multipart form required"))
		return
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeError(w, r, h.Logger, apperr.Invalid("file required"))
			return
		}
		if err != nil {
			h.uploadFailed(w, r, apperr.Invalid("malformed multipart body"), err)
			return
		}
		if part.FormName() != "file" {
			part.Close()
			continue
		}

		track, err := h.Tracks.Upload(r.Context(), id.UserID, part.FileName(), part)
		part.Close()
		if err != nil {
			h.uploadFailed(w, r, err, err)
			return
		}
		writeJSON(w, http.StatusCreated, track)
		return
	}
}

// uploadFailed answers 413 when cause is the body size limit, otherwise err.
func (h *TrackHandler) uploadFailed(w http.ResponseWriter, r *http.Request, err, cause error) {
	var tooBig *http.MaxBytesError
	if errors.As(cause, &tooBig) {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
		return
	}
	writeError(w, r, h.Logger, err)
}

// Rename handles POST /rename/{trackId} with form field "name".
func (h *TrackHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	trackID, err := trackIDParam(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := h.Tracks.Rename(r.Context(), id.UserID, trackID, r.PostFormValue("name")); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Delete handles POST /delete/{trackId}.
func (h *TrackHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	trackID, err := trackIDParam(r)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	if err := h.Tracks.Delete(r.Context(), id.UserID, trackID); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type reorderRequest struct {
	Order []int64 `json:"order"`
}

// Reorder handles POST /reorder with a JSON body {"order": [ids...]}.
func (h *TrackHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	var req reorderRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBytes)).Decode(&req); err != nil {
		writeError(w, r, h.Logger, apperr.Invalid("invalid body"))
		return
	}
	if err := h.Tracks.Reorder(r.Context(), id.UserID, req.Order); err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func trackIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "trackId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid("bad track id")
	}
	return id, nil
}
