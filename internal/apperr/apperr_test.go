package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"invalid", Invalid("name required"), http.StatusBadRequest},
		{"auth failed", ErrAuthFailed, http.StatusForbidden},
		{"unauthenticated", fmt.Errorf("session: %w", ErrUnauthenticated), http.StatusUnauthorized},
		{"expired", ErrExpired, http.StatusUnauthorized},
		{"not found", fmt.Errorf("track 7: %w", ErrNotFound), http.StatusNotFound},
		{"exists", ErrAlreadyExists, http.StatusConflict},
		{"io", IO("write", errors.New("disk full")), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Status(tt.err); got != tt.want {
				t.Errorf("Status(%v) = %d; want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	if got := Message(Invalid("name required")); got != "invalid input: name required" {
		t.Errorf("Message = %q", got)
	}
	if got := Message(IO("write", errors.New("secret path /var/x"))); got != "internal error" {
		t.Errorf("Message leaked cause: %q", got)
	}
	if got := Message(fmt.Errorf("track 9 of user 2: %w", ErrNotFound)); got != "not found" {
		t.Errorf("Message = %q", got)
	}
}

func TestIO_KeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := IO("store", cause)
	if !errors.Is(err, ErrIO) || !errors.Is(err, cause) {
		t.Fatalf("IO() = %v; want both ErrIO and cause in chain", err)
	}
}
