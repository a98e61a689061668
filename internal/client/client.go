// Package client implements the soundpad command-line client: an HTTP API
// client whose session cookie survives between runs, and the interactive
// shell built on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/atinyakov/soundpad/internal/models"
)

const sessionCookie = "soundpad_session"

// ErrNotLoggedIn is returned before any request when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Board is the listing returned by GET /.
type Board struct {
	User   string         `json:"user"`
	Tracks []models.Track `json:"tracks"`
}

// Client talks to one soundpad server.
type Client struct {
	baseURL  string
	http     *http.Client
	sessions *SessionFile
	now      func() time.Time
}

// New creates a client for baseURL. Sessions stored for a different server
// are ignored.
func New(baseURL string, httpClient *http.Client, sessions *SessionFile) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		sessions: sessions,
		now:      time.Now,
	}
}

// Username returns the user of the stored session, if any.
func (c *Client) Username() string {
	if c.sessions.Token(c.baseURL, c.now()) == "" {
		return ""
	}
	return c.sessions.State().Username
}

// Register creates an account and returns its id. It does not log in.
func (c *Client) Register(ctx context.Context, username, password string) (int64, error) {
	form := url.Values{"username": {username}, "password": {password}}
	var out struct {
		ID int64 `json:"id"`
	}
	if err := c.postForm(ctx, "/register", form, false, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

// Login opens a session and stores its cookie.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	var out struct {
		User string `json:"user"`
	}
	if err := c.postForm(ctx, "/login", form, false, &out); err != nil {
		return err
	}
	state := c.sessions.State()
	state.Username = out.User
	return c.sessions.Update(state)
}

// Logout ends the stored session. The local session is forgotten even when
// the server cannot be reached.
func (c *Client) Logout(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/logout", nil, false)
	if err != nil {
		return err
	}
	err = c.do(req, nil)
	if clearErr := c.sessions.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// List returns the caller's soundboard.
func (c *Client) List(ctx context.Context) (*Board, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/", nil, true)
	if err != nil {
		return nil, err
	}
	var board Board
	if err := c.do(req, &board); err != nil {
		return nil, err
	}
	return &board, nil
}

// Upload streams the file at path as a new track.
func (c *Client) Upload(ctx context.Context, path string) (*models.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filepath.Base(path))
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", pr, true)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var track models.Track
	if err := c.do(req, &track); err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	return &track, nil
}

// Rename changes the display name of a track.
func (c *Client) Rename(ctx context.Context, trackID int64, name string) error {
	return c.postForm(ctx, "/rename/"+strconv.FormatInt(trackID, 10), url.Values{"name": {name}}, true, nil)
}

// Delete removes a track and its file.
func (c *Client) Delete(ctx context.Context, trackID int64) error {
	return c.postForm(ctx, "/delete/"+strconv.FormatInt(trackID, 10), url.Values{}, true, nil)
}

// Reorder sets the playback order of the caller's tracks.
func (c *Client) Reorder(ctx context.Context, order []int64) error {
	if order == nil {
		order = []int64{}
	}
	body, err := json.Marshal(map[string][]int64{"order": order})
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/reorder", bytes.NewReader(body), true)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

// Fetch downloads the file behind handle into w and returns the bytes copied.
func (c *Client) Fetch(ctx context.Context, handle string, w io.Writer) (int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/uploads/"+url.PathEscape(handle), nil, true)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if err := c.checkResponse(resp); err != nil {
		return 0, err
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download: %w", err)
	}
	return n, nil
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, auth bool, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, strings.NewReader(form.Encode()), auth)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

// newRequest builds a request carrying the stored session cookie. With auth
// set, a missing session fails fast with ErrNotLoggedIn.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, auth bool) (*http.Request, error) {
	token := c.sessions.Token(c.baseURL, c.now())
	if auth && token == "" {
		return nil, ErrNotLoggedIn
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := c.checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkResponse records any session cookie the server set and turns error
// statuses into *APIError. A 401 also drops the local session.
func (c *Client) checkResponse(resp *http.Response) error {
	if err := c.storeCookie(resp); err != nil {
		return err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode}
	var body struct {
		Error string `json:"error"`
	}
	if data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10)); err == nil {
		if json.Unmarshal(data, &body) == nil {
			apiErr.Message = body.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		_ = c.sessions.Clear()
	}
	return apiErr
}

func (c *Client) storeCookie(resp *http.Response) error {
	for _, ck := range resp.Cookies() {
		if ck.Name != sessionCookie {
			continue
		}
		if ck.MaxAge < 0 || ck.Value == "" {
			return c.sessions.Clear()
		}
		state := c.sessions.State()
		state.BaseURL = c.baseURL
		state.Token = ck.Value
		switch {
		case !ck.Expires.IsZero():
			state.ExpiresAt = ck.Expires.UTC()
		case ck.MaxAge > 0:
			state.ExpiresAt = c.now().Add(time.Duration(ck.MaxAge) * time.Second).UTC()
		}
		return c.sessions.Update(state)
	}
	return nil
}
