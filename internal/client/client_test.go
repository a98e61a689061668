package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal in-memory soundpad API.
type fakeServer struct {
	mu       sync.Mutex
	users    map[string]string
	tokens   map[string]string
	tracks   []map[string]any
	files    map[string]string
	lastBody string
}

func newFakeServer(t *testing.T) (*fakeServer, *httptest.Server) {
	t.Helper()
	fs := &fakeServer{
		users:  map[string]string{},
		tokens: map[string]string{},
		files:  map[string]string{},
	}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reply := func(status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	user := ""
	if c, err := r.Cookie(sessionCookie); err == nil {
		user = f.tokens[c.Value]
	}

	switch {
	case r.URL.Path == "/register":
		name, pass := r.PostFormValue("username"), r.PostFormValue("password")
		if _, ok := f.users[name]; ok {
			reply(http.StatusConflict, map[string]string{"error": "user already exists"})
			return
		}
		f.users[name] = pass
		reply(http.StatusCreated, map[string]int64{"id": int64(len(f.users))})
	case r.URL.Path == "/login":
		name := r.PostFormValue("username")
		if pass, ok := f.users[name]; !ok || pass != r.PostFormValue("password") {
			reply(http.StatusForbidden, map[string]string{"error": "authentication failed"})
			return
		}
		token := "tok-" + name
		f.tokens[token] = name
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: token, MaxAge: 3600, Path: "/"})
		reply(http.StatusOK, map[string]string{"status": "ok", "user": name})
	case r.URL.Path == "/logout":
		if c, err := r.Cookie(sessionCookie); err == nil {
			delete(f.tokens, c.Value)
		}
		http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", MaxAge: -1, Path: "/"})
		reply(http.StatusOK, map[string]string{"status": "ok"})
	case user == "":
		reply(http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
	case r.URL.Path == "/":
		reply(http.StatusOK, map[string]any{"user": user, "tracks": f.tracks})
	case r.URL.Path == "/upload":
		file, hdr, err := r.FormFile("file")
		if err != nil {
			reply(http.StatusBadRequest, map[string]string{"error": "file required"})
			return
		}
		body, _ := io.ReadAll(file)
		f.files[hdr.Filename] = string(body)
		track := map[string]any{"id": len(f.tracks) + 1, "name": hdr.Filename, "handle": hdr.Filename, "position": len(f.tracks)}
		f.tracks = append(f.tracks, track)
		reply(http.StatusCreated, track)
	case strings.HasPrefix(r.URL.Path, "/uploads/"):
		body, ok := f.files[strings.TrimPrefix(r.URL.Path, "/uploads/")]
		if !ok {
			reply(http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		_, _ = io.WriteString(w, body)
	default:
		data, _ := io.ReadAll(r.Body)
		f.lastBody = r.URL.Path + " " + string(data)
		reply(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *SessionFile) {
	t.Helper()
	sf, err := OpenSessionFile(filepath.Join(t.TempDir(), "session.json"))
	require.NoError(t, err)
	return New(srv.URL+"/", srv.Client(), sf), sf
}

func TestClient_Flow(t *testing.T) {
	fake, srv := newFakeServer(t)
	c, sf := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.List(ctx)
	require.ErrorIs(t, err, ErrNotLoggedIn)

	id, err := c.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = c.Register(ctx, "alice", "pw")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "user already exists", apiErr.Message)

	require.NoError(t, c.Login(ctx, "alice", "pw"))
	assert.Equal(t, "alice", c.Username())
	state := sf.State()
	assert.Equal(t, "tok-alice", state.Token)
	assert.Equal(t, srv.URL, state.BaseURL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), state.ExpiresAt, time.Minute)

	src := filepath.Join(t.TempDir(), "kick.wav")
	require.NoError(t, os.WriteFile(src, []byte("RIFFboom"), 0o644))
	track, err := c.Upload(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "kick.wav", track.Handle)

	board, err := c.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", board.User)
	require.Len(t, board.Tracks, 1)
	assert.Equal(t, "kick.wav", board.Tracks[0].Name)

	var buf strings.Builder
	n, err := c.Fetch(ctx, "kick.wav", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "RIFFboom", buf.String())

	require.NoError(t, c.Reorder(ctx, []int64{2, 1}))
	assert.Equal(t, `/reorder {"order":[2,1]}`, fake.lastBody)

	require.NoError(t, c.Rename(ctx, 1, "Big Kick"))
	assert.Equal(t, "/rename/1 name=Big+Kick", fake.lastBody)

	require.NoError(t, c.Delete(ctx, 1))
	assert.Equal(t, "/delete/1 ", fake.lastBody)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, sf.State().Token)
	assert.Empty(t, c.Username())
	_, err = c.List(ctx)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestClient_SessionSurvivesRestart(t *testing.T) {
	_, srv := newFakeServer(t)
	path := filepath.Join(t.TempDir(), "session.json")
	ctx := context.Background()

	sf, err := OpenSessionFile(path)
	require.NoError(t, err)
	c := New(srv.URL, srv.Client(), sf)
	_, err = c.Register(ctx, "bob", "pw")
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "bob", "pw"))

	sf2, err := OpenSessionFile(path)
	require.NoError(t, err)
	board, err := New(srv.URL, srv.Client(), sf2).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "bob", board.User)
}

func TestClient_UnauthorizedDropsSession(t *testing.T) {
	fake, srv := newFakeServer(t)
	c, sf := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.Register(ctx, "alice", "pw")
	require.NoError(t, err)
	require.NoError(t, c.Login(ctx, "alice", "pw"))

	fake.mu.Lock()
	fake.tokens = map[string]string{}
	fake.mu.Unlock()

	_, err = c.List(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Empty(t, sf.State().Token)
}

func TestClient_LoginFailure(t *testing.T) {
	_, srv := newFakeServer(t)
	c, sf := newTestClient(t, srv)

	err := c.Login(context.Background(), "nobody", "pw")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Empty(t, sf.State().Token)
}

func TestClient_UploadMissingFile(t *testing.T) {
	_, srv := newFakeServer(t)
	c, _ := newTestClient(t, srv)

	_, err := c.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.wav"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestAPIError_Message(t *testing.T) {
	assert.Equal(t, "server returned 500", (&APIError{Status: 500}).Error())
	assert.Equal(t, "server returned 404: not found", (&APIError{Status: 404, Message: "not found"}).Error())
}
