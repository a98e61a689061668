package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/atinyakov/soundpad/internal/apperr"
)

// Filesystem keeps uploads as plain files in one directory. All access goes
// through an os.Root, so no handle can reach outside that directory.
type Filesystem struct {
	root *os.Root
}

// NewFilesystem creates dir if needed and opens it as the upload root.
func NewFilesystem(dir string) (*Filesystem, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open upload dir: %w", err)
	}
	return &Filesystem{root: root}, nil
}

// Close releases the upload root.
func (f *Filesystem) Close() error {
	return f.root.Close()
}

// Store writes r to the first free candidate name. Exclusive create makes
// concurrent uploads of the same name land on distinct handles.
func (f *Filesystem) Store(ctx context.Context, originalName string, r io.Reader) (string, error) {
	token, err := Sanitize(originalName)
	if err != nil {
		return "", err
	}

	for n := 0; n < maxAttempts; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		handle := candidate(token, n)
		file, err := f.root.OpenFile(handle, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", apperr.IO("create media file", err)
		}

		_, copyErr := io.Copy(file, r)
		closeErr := file.Close()
		if err := errors.Join(copyErr, closeErr); err != nil {
			_ = f.root.Remove(handle)
			return "", apperr.IO("write media file", err)
		}
		return handle, nil
	}
	return "", apperr.IO("store media", fmt.Errorf("no free name for %q after %d attempts", token, maxAttempts))
}

// Open opens the file stored under handle.
func (f *Filesystem) Open(_ context.Context, handle string) (*Object, error) {
	if !ValidHandle(handle) {
		return nil, notFound(handle)
	}
	file, err := f.root.Open(handle)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, notFound(handle)
	}
	if err != nil {
		return nil, apperr.IO("open media file", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, apperr.IO("stat media file", err)
	}
	if !info.Mode().IsRegular() {
		file.Close()
		return nil, notFound(handle)
	}
	return &Object{Body: file, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Remove deletes the file stored under handle.
func (f *Filesystem) Remove(_ context.Context, handle string) error {
	if !ValidHandle(handle) {
		return notFound(handle)
	}
	err := f.root.Remove(handle)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.IO("remove media file", err)
	}
	return nil
}
