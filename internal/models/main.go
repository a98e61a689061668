// Package models defines the core data structures for users, tracks and sessions.
package models

import "time"

// User represents an application user with credentials.
type User struct {
	// ID is the unique identifier for the user.
	ID int64
	// Username is the login name chosen by the user.
	Username string
	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash []byte
}

// Track is one entry of a user's soundboard.
type Track struct {
	// ID is assigned by the store and increases monotonically.
	ID int64 `json:"id"`
	// UserID identifies the owner; it never changes after creation.
	UserID int64 `json:"-"`
	// Name is the user-editable display name.
	Name string `json:"name"`
	// Handle is the Media Storage handle of the uploaded file.
	Handle string `json:"handle"`
	// Position defines render order within the owner's list, lower first.
	Position int64 `json:"position"`
}

// Session binds a client to a user until ExpiresAt.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	ExpiresAt time.Time
}

// Identity is the authenticated caller resolved from a session.
type Identity struct {
	UserID   int64
	Username string
	// SessionID is the session the identity was resolved from.
	SessionID string
}
