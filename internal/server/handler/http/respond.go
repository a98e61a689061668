package http

import (
	"encoding/json"
	"net/http"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/middleware"
	"github.com/atinyakov/soundpad/internal/models"
	"go.uber.org/zap"
)

// maxFormBytes caps non-upload request bodies.
const maxFormBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and a client-safe message. Causes of
// 5xx responses are logged, never sent.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperr.Status(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": apperr.Message(err)})
}

// identity returns the caller set by middleware.RequireSession, answering
// 401 itself when there is none.
func identity(w http.ResponseWriter, r *http.Request) (models.Identity, bool) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": apperr.Message(apperr.ErrUnauthenticated)})
	}
	return id, ok
}
