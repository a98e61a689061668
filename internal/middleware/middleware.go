// Package middleware provides HTTP middlewares for request tracing, logging,
// session authentication and rate limiting.
package middleware

import (
	"encoding/json"
	"net/http"
)

type ctxKey string

const (
	identityKey  ctxKey = "identity"
	requestIDKey ctxKey = "request_id"
)

// writeError outputs the same {"error": "..."} body the handlers use.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
