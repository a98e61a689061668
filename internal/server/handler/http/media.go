package http

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// audioTypes covers the formats browsers play but that are missing from
// mime's built-in table.
var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/opus",
	".flac": "audio/flac",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".webm": "audio/webm",
}

func contentType(handle string) string {
	ext := strings.ToLower(path.Ext(handle))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// Serve handles GET /uploads/{handle}. Only the owner of the track can fetch
// its file; anything else is 404. Seekable backends get Range support.
func (h *TrackHandler) Serve(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	handle := chi.URLParam(r, "handle")

	obj, err := h.Tracks.Open(r.Context(), id.UserID, handle)
	if err != nil {
		writeError(w, r, h.Logger, err)
		return
	}
	defer obj.Body.Close()

	w.Header().Set("Content-Type", contentType(handle))
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if rs, ok := obj.Body.(io.ReadSeeker); ok {
		http.ServeContent(w, r, handle, obj.ModTime, rs)
		return
	}

	if obj.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(obj.Size, 10))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj.Body); err != nil {
		h.Logger.Warn("media stream interrupted", zap.String("handle", handle), zap.Error(err))
	}
}
