// Package client talks to the SmartNotes server over HTTP/JSON and WebSocket.
//
// Client implements notesync.Store, so a sync session can run against a remote server, and
// Identity tracks the signed-in user for the CLI.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.hc = hc } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithRedialDelay sets the pause between stream reconnect attempts.
func WithRedialDelay(d time.Duration) Option { return func(c *Client) { c.redial = d } }

// Client is a SmartNotes API client.
type Client struct {
	base   string
	hc     *http.Client
	dialer *websocket.Dialer
	log    *zap.Logger
	redial time.Duration

	mu   sync.RWMutex
	sess *model.Session
}

// New constructs a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:   strings.TrimRight(baseURL, "/"),
		hc:     &http.Client{Timeout: 90 * time.Second},
		dialer: websocket.DefaultDialer,
		log:    zap.NewNop(),
		redial: 2 * time.Second,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetSession installs (or with nil, clears) the credentials used for authenticated calls.
func (c *Client) SetSession(s *model.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s == nil {
		c.sess = nil
		return
	}
	cp := *s
	c.sess = &cp
}

func (c *Client) session() *model.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sess
}

type apiError struct {
	Error string `json:"error"`
}

// do sends one JSON request. Transport failures and unexpected statuses wrap failure.
func (c *Client) do(ctx context.Context, method, path string, auth bool, in, out any, failure error) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		s := c.session()
		if s == nil {
			return fmt.Errorf("%w: %w: not signed in", failure, errs.ErrUnauthorized)
		}
		req.Header.Set("Authorization", "Bearer "+s.AccessToken)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", failure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var ae apiError
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&ae)
		return statusError(resp.StatusCode, ae.Error, failure)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", failure, err)
	}
	return nil
}

// statusError maps an HTTP status back to a sentinel.
func statusError(code int, msg string, failure error) error {
	if msg == "" {
		msg = http.StatusText(code)
	}
	switch code {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", errs.ErrValidation, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %w: %s", failure, errs.ErrUnauthorized, msg)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", errs.ErrNotFound, msg)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", errs.ErrRateLimited, msg)
	case http.StatusBadGateway:
		return fmt.Errorf("%w: %s", errs.ErrGateway, msg)
	}
	return fmt.Errorf("%w: status %d: %s", failure, code, msg)
}

// Register creates an account and returns its user id.
func (c *Client) Register(ctx context.Context, email, password string) (string, error) {
	var out struct {
		UserID string `json:"userId"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/register", false,
		map[string]string{"email": email, "password": password}, &out, errs.ErrStore)
	return out.UserID, err
}

// Login exchanges credentials for a session. It does not install the session.
func (c *Client) Login(ctx context.Context, email, password string) (model.Session, error) {
	var out struct {
		AccessToken string    `json:"accessToken"`
		ExpiresAt   time.Time `json:"expiresAt"`
		UserID      string    `json:"userId"`
		Email       string    `json:"email"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login", false,
		map[string]string{"email": email, "password": password}, &out, errs.ErrStore)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{UserID: out.UserID, Email: out.Email, AccessToken: out.AccessToken, ExpiresAt: out.ExpiresAt}, nil
}

// List returns the signed-in user's notes, optionally filtered server-side.
func (c *Client) List(ctx context.Context, query string) ([]model.Note, error) {
	path := "/api/notes"
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	var out struct {
		Notes []model.Note `json:"notes"`
	}
	if err := c.do(ctx, http.MethodGet, path, true, nil, &out, errs.ErrStore); err != nil {
		return nil, err
	}
	return out.Notes, nil
}

// Get returns one note.
func (c *Client) Get(ctx context.Context, noteID string) (model.Note, error) {
	var n model.Note
	err := c.do(ctx, http.MethodGet, "/api/notes/"+url.PathEscape(noteID), true, nil, &n, errs.ErrStore)
	return n, err
}

// Create inserts a note for userID.
func (c *Client) Create(ctx context.Context, userID string, f model.NoteFields) (model.Note, error) {
	if err := c.checkUser(userID); err != nil {
		return model.Note{}, err
	}
	var n model.Note
	err := c.do(ctx, http.MethodPost, "/api/notes", true, f, &n, errs.ErrStore)
	return n, err
}

// Update overwrites a note's fields and returns the stored note.
func (c *Client) Update(ctx context.Context, userID, noteID string, f model.NoteFields) (model.Note, error) {
	if err := c.checkUser(userID); err != nil {
		return model.Note{}, err
	}
	var n model.Note
	err := c.do(ctx, http.MethodPut, "/api/notes/"+url.PathEscape(noteID), true, f, &n, errs.ErrStore)
	return n, err
}

// Delete removes a note.
func (c *Client) Delete(ctx context.Context, userID, noteID string) error {
	if err := c.checkUser(userID); err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, "/api/notes/"+url.PathEscape(noteID), true, nil, nil, errs.ErrStore)
}

// checkUser refuses to act for anyone but the signed-in user.
func (c *Client) checkUser(userID string) error {
	s := c.session()
	if s == nil || s.UserID != userID {
		return fmt.Errorf("%w: %w: not signed in as %s", errs.ErrStore, errs.ErrUnauthorized, userID)
	}
	return nil
}
