// Package media stores uploaded audio files under collision-free handles.
//
// A handle is the sanitized file name actually used on the backend, e.g.
// "kick.wav" or "kick_1.wav" when "kick.wav" was already taken. Handles never
// contain path separators, so they can be used directly as object keys.
package media

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
)

const (
	// maxAttempts bounds the base, base_1, base_2, ... candidates Store tries.
	maxAttempts = 1000
	// maxHandleBytes keeps handles well below common NAME_MAX and S3 key limits.
	maxHandleBytes = 200
	// maxTokenBytes leaves room for the longest suffix, "_999".
	maxTokenBytes = maxHandleBytes - len("_999")
)

// ErrInvalidName reports a file name that cannot be turned into a handle.
var ErrInvalidName = fmt.Errorf("%w: invalid file name", apperr.ErrInvalidInput)

// Store is implemented by every media backend.
type Store interface {
	// Store writes r under a fresh handle derived from originalName.
	Store(ctx context.Context, originalName string, r io.Reader) (string, error)
	// Open returns the content stored under handle.
	Open(ctx context.Context, handle string) (*Object, error)
	// Remove deletes handle. A missing handle is not an error.
	Remove(ctx context.Context, handle string) error
}

// Object is an open stored file. Callers must close Body.
type Object struct {
	Body    io.ReadCloser
	Size    int64
	ModTime time.Time
}

// ValidHandle reports whether h could have been produced by Store.
func ValidHandle(h string) bool {
	if len(h) > maxHandleBytes {
		return false
	}
	token, err := sanitizeChars(h)
	return err == nil && token == h
}

// candidate returns the n-th name tried for token: token itself, then
// base_1.ext, base_2.ext and so on.
func candidate(token string, n int) string {
	if n == 0 {
		return token
	}
	ext := path.Ext(token)
	base := strings.TrimSuffix(token, ext)
	return base + "_" + strconv.Itoa(n) + ext
}

func notFound(handle string) error {
	return fmt.Errorf("media %q: %w", handle, apperr.ErrNotFound)
}
