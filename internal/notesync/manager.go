package notesync

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/model"
)

// Manager owns the Session of whoever is signed in and swaps it on identity changes.
type Manager struct {
	store Store
	opts  []Option
	log   *zap.Logger

	mu      sync.Mutex
	current *Session
}

// NewManager constructs a Manager; opts are applied to every Session it opens.
func NewManager(store Store, opts ...Option) *Manager {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Manager{store: store, opts: opts, log: o.log}
}

// HandleSessionChange opens a Session for a newly signed-in user and shuts down the previous
// one (flush, then unsubscribe). A nil identity means signed out.
func (m *Manager) HandleSessionChange(ctx context.Context, id *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != nil && m.current != nil && m.current.UserID() == id.UserID {
		return nil
	}

	var shutdownErr error
	if m.current != nil {
		if err := m.current.Shutdown(ctx); err != nil {
			m.log.Warn("final flush failed; discarding buffer", zap.String("user", m.current.UserID()), zap.Error(err))
			m.current.Close()
			shutdownErr = err
		}
		m.current = nil
	}
	if id == nil {
		return shutdownErr
	}

	s, err := Open(ctx, m.store, id.UserID, m.opts...)
	if err != nil {
		return err
	}
	m.current = s
	return shutdownErr
}

// Session returns the active session, or nil when signed out.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Close shuts the active session down.
func (m *Manager) Close(ctx context.Context) error {
	return m.HandleSessionChange(ctx, nil)
}
