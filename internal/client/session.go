package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// SessionState is what the CLI remembers between runs.
type SessionState struct {
	BaseURL   string    `json:"base_url"`
	Username  string    `json:"username,omitempty"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// SessionFile persists the session cookie to a file readable by the owner only.
type SessionFile struct {
	path  string
	mu    sync.Mutex
	state SessionState
}

// DefaultSessionPath returns the session file location under the user's
// config directory.
func DefaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "soundpad-session.json"
	}
	return filepath.Join(dir, "soundpad", "session.json")
}

// OpenSessionFile loads the state stored at path. A missing file yields an
// empty state.
func OpenSessionFile(path string) (*SessionFile, error) {
	sf := &SessionFile{path: path}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return sf, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}
	if err := json.Unmarshal(data, &sf.state); err != nil {
		return nil, fmt.Errorf("decode session file: %w", err)
	}
	return sf, nil
}

// State returns a copy of the current state.
func (sf *SessionFile) State() SessionState {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	return sf.state
}

// Token returns the stored session token for baseURL, or "" when the stored
// session belongs to another server or has expired.
func (sf *SessionFile) Token(baseURL string, now time.Time) string {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	if sf.state.BaseURL != baseURL || sf.state.Token == "" {
		return ""
	}
	if !sf.state.ExpiresAt.IsZero() && now.After(sf.state.ExpiresAt) {
		return ""
	}
	return sf.state.Token
}

// Update replaces the state and writes it to disk.
func (sf *SessionFile) Update(state SessionState) error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.state = state
	return sf.save()
}

// Clear forgets the session token but keeps the server URL.
func (sf *SessionFile) Clear() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.state = SessionState{BaseURL: sf.state.BaseURL}
	return sf.save()
}

func (sf *SessionFile) save() error {
	if err := os.MkdirAll(filepath.Dir(sf.path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(sf.state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session file: %w", err)
	}
	tmp := sf.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}
	if err := os.Rename(tmp, sf.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}
