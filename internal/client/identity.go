package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/model"
)

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	Load() (*model.Session, error)
	Save(s *model.Session) error
	Clear() error
}

// Identity tracks who is signed in and tells listeners when that changes.
type Identity struct {
	client *Client
	store  SessionStore
	log    *zap.Logger

	mu        sync.Mutex
	current   *model.Session
	listeners map[int]func(*model.Session)
	next      int
}

// NewIdentity constructs an Identity; store may be nil for in-memory sessions.
func NewIdentity(c *Client, store SessionStore, log *zap.Logger) *Identity {
	if log == nil {
		log = zap.NewNop()
	}
	return &Identity{client: c, store: store, log: log, listeners: map[int]func(*model.Session){}}
}

// OnSessionChange registers fn and calls it right away with the current session (nil when
// signed out). Listeners run synchronously, in no particular order.
func (i *Identity) OnSessionChange(fn func(*model.Session)) (unsubscribe func()) {
	i.mu.Lock()
	id := i.next
	i.next++
	i.listeners[id] = fn
	cur := i.current
	i.mu.Unlock()

	fn(cur)
	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

// Current returns the signed-in session or nil.
func (i *Identity) Current() *model.Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Restore signs in from the persisted session if it has not expired.
func (i *Identity) Restore() (*model.Session, error) {
	if i.store == nil {
		return nil, nil
	}
	s, err := i.store.Load()
	if err != nil || s == nil {
		return nil, err
	}
	if s.AccessToken == "" || time.Now().After(s.ExpiresAt) {
		i.log.Info("saved session expired")
		return nil, nil
	}
	i.set(s)
	return s, nil
}

// Login authenticates and becomes the signed-in session.
func (i *Identity) Login(ctx context.Context, email, password string) (*model.Session, error) {
	s, err := i.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if prev := i.Current(); prev != nil && prev.UserID != s.UserID {
		// sign the previous user out first so their buffer is flushed with their own token
		i.set(nil)
	}
	if i.store != nil {
		if err := i.store.Save(&s); err != nil {
			i.log.Warn("persist session failed", zap.Error(err))
		}
	}
	i.set(&s)
	return &s, nil
}

// Logout signs out. Listeners see nil while the old credentials are still installed so a final
// flush can reach the server.
func (i *Identity) Logout() error {
	i.set(nil)
	if i.store != nil {
		return i.store.Clear()
	}
	return nil
}

func (i *Identity) set(s *model.Session) {
	if s != nil {
		i.client.SetSession(s)
	}

	i.mu.Lock()
	i.current = s
	fns := make([]func(*model.Session), 0, len(i.listeners))
	for _, fn := range i.listeners {
		fns = append(fns, fn)
	}
	i.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}

	if s == nil {
		i.client.SetSession(nil)
	}
}
