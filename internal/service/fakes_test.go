package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atinyakov/soundpad/internal/apperr"
	"github.com/atinyakov/soundpad/internal/media"
	"github.com/atinyakov/soundpad/internal/models"
)

// memSessions is an in-memory SessionStore.
type memSessions struct {
	mu   sync.Mutex
	byID map[string]models.Session
}

func newMemSessions() *memSessions {
	return &memSessions{byID: map[string]models.Session{}}
}

func (m *memSessions) Create(_ context.Context, s models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[s.ID] = s
	return nil
}

func (m *memSessions) Get(_ context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &s, nil
}

func (m *memSessions) Touch(_ context.Context, id string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.byID[id]
	if !ok {
		return apperr.ErrNotFound
	}
	s.ExpiresAt = exp
	m.byID[id] = s
	return nil
}

func (m *memSessions) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// memTracks is an in-memory TrackRepository with the same ordering rules as
// the Postgres repository.
type memTracks struct {
	mu     sync.Mutex
	nextID int64
	tracks map[int64]*models.Track
	users  map[int64]bool
}

func newMemTracks(users ...int64) *memTracks {
	m := &memTracks{tracks: map[int64]*models.Track{}, users: map[int64]bool{}}
	for _, u := range users {
		m.users[u] = true
	}
	return m
}

func (m *memTracks) owned(userID int64) []*models.Track {
	var out []*models.Track
	for _, t := range m.tracks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memTracks) List(_ context.Context, userID int64) ([]models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Track, 0)
	for _, t := range m.owned(userID) {
		out = append(out, *t)
	}
	return out, nil
}

func (m *memTracks) Add(_ context.Context, userID int64, name, handle string) (*models.Track, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.users[userID] {
		return nil, apperr.ErrUnauthenticated
	}
	pos := int64(0)
	for _, t := range m.owned(userID) {
		if t.Position >= pos {
			pos = t.Position + 1
		}
	}
	m.nextID++
	t := &models.Track{ID: m.nextID, UserID: userID, Name: name, Handle: handle, Position: pos}
	m.tracks[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *memTracks) Rename(_ context.Context, userID, trackID int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[trackID]
	if !ok || t.UserID != userID {
		return apperr.ErrNotFound
	}
	t.Name = name
	return nil
}

func (m *memTracks) Delete(_ context.Context, userID, trackID int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tracks[trackID]
	if !ok || t.UserID != userID {
		return "", apperr.ErrNotFound
	}
	delete(m.tracks, trackID)
	return t.Handle, nil
}

func (m *memTracks) Reorder(_ context.Context, userID int64, order []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.owned(userID)
	placed := map[int64]bool{}
	var pos int64
	for _, id := range order {
		t, ok := m.tracks[id]
		if !ok || t.UserID != userID || placed[id] {
			continue
		}
		placed[id] = true
		t.Position = pos
		pos++
	}
	for _, t := range current {
		if !placed[t.ID] {
			t.Position = pos
			pos++
		}
	}
	return nil
}

func (m *memTracks) OwnsHandle(_ context.Context, userID int64, handle string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tracks {
		if t.UserID == userID && t.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

// memMedia is an in-memory media.Store using the real naming rules.
type memMedia struct {
	mu    sync.Mutex
	files map[string]string
}

func newMemMedia() *memMedia {
	return &memMedia{files: map[string]string{}}
}

func (m *memMedia) Store(_ context.Context, name string, r io.Reader) (string, error) {
	token, err := media.Sanitize(name)
	if err != nil {
		return "", err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return "", apperr.IO("read", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for n := 0; ; n++ {
		h := token
		if n > 0 {
			dot := strings.LastIndex(token, ".")
			if dot < 0 {
				h = fmt.Sprintf("%s_%d", token, n)
			} else {
				h = fmt.Sprintf("%s_%d%s", token[:dot], n, token[dot:])
			}
		}
		if _, taken := m.files[h]; !taken {
			m.files[h] = string(body)
			return h, nil
		}
	}
}

func (m *memMedia) Open(_ context.Context, handle string) (*media.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.files[handle]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &media.Object{Body: io.NopCloser(strings.NewReader(body)), Size: int64(len(body))}, nil
}

func (m *memMedia) Remove(_ context.Context, handle string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, handle)
	return nil
}
