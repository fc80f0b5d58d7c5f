package notesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
)

// Save status labels for the editor.
const (
	StatusSaving = "Saving…"
	StatusSaved  = "Saved"
)

// Session is the sync state of one signed-in user.
//
// Every state transition happens under mu; store round-trips happen without it, so edits and
// snapshot pushes keep landing while a write is outstanding. At most one update write is in
// flight at a time: a concurrent Flush waits for it and then re-reads the latest buffer.
type Session struct {
	userID string
	store  Store
	opts   options

	mu          sync.Mutex
	snapshot    []model.Note
	created     map[string]model.Note // created here, not yet seen in a pushed list
	acked       map[string]model.Note // written here, newer than the last pushed copy
	openID      string
	pending     model.NoteFields
	dirty       bool
	rev         uint64 // bumped on every buffer change
	timer       *time.Timer
	timerGen    uint64 // stale timer callbacks compare against this
	inflight    chan struct{}
	closed      bool
	unsubscribe func()
}

// Open subscribes to userID's notes and returns a session with no note open.
func Open(ctx context.Context, store Store, userID string, opts ...Option) (*Session, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", errs.ErrValidation)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	s := &Session{
		userID:  userID,
		store:   store,
		opts:    o,
		created: map[string]model.Note{},
		acked:   map[string]model.Note{},
	}
	cancel, err := store.Subscribe(ctx, userID, s.OnRemoteSnapshot)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	s.mu.Lock()
	s.unsubscribe = cancel
	s.mu.Unlock()
	s.opts.log.Debug("sync session opened", zap.String("user", userID))
	return s, nil
}

// UserID returns the user this session belongs to.
func (s *Session) UserID() string { return s.userID }

// Select opens noteID in the editor. A dirty note that is currently open is flushed first;
// if that flush fails the switch is abandoned and the error returned. Unknown ids are ignored.
func (s *Session) Select(ctx context.Context, noteID string) error {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return errs.ErrSessionClosed
		}
		n, ok := findNote(s.snapshot, noteID)
		if !ok || s.openID == noteID {
			s.mu.Unlock()
			return nil
		}
		if s.openID == "" || !s.dirty {
			s.stopTimerLocked()
			s.openID = noteID
			s.pending = n.Fields()
			s.dirty = false
			s.rev++
			s.mu.Unlock()
			s.changed()
			return nil
		}
		s.mu.Unlock()

		if err := s.flush(ctx); err != nil {
			return err
		}
	}
}

// Edit replaces one field of the open note's buffer and restarts the autosave timer.
// It does nothing when no note is open.
func (s *Session) Edit(field model.Field, value string) {
	s.mu.Lock()
	if s.closed || s.openID == "" || !field.Valid() {
		s.mu.Unlock()
		return
	}
	s.pending = s.pending.Set(field, value)
	s.dirty = true
	s.rev++
	s.armTimerLocked()
	s.mu.Unlock()
	s.changed()
}

// Flush writes the buffered edit of the open note. It is a no-op when nothing is dirty.
// On failure the buffer stays dirty; nothing is retried until the next edit or flush.
func (s *Session) Flush(ctx context.Context) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errs.ErrSessionClosed
	}
	return s.flush(ctx)
}

func (s *Session) flush(ctx context.Context) error {
	s.mu.Lock()
	for s.inflight != nil {
		wait := s.inflight
		s.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
	}
	if s.openID == "" || !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	noteID, fields, rev := s.openID, s.pending, s.rev
	done := make(chan struct{})
	s.inflight = done
	s.mu.Unlock()
	s.changed()

	start := time.Now()
	saved, err := s.store.Update(ctx, s.userID, noteID, fields)

	s.mu.Lock()
	s.inflight = nil
	close(done)
	switch {
	case err == nil:
		if saved.ID == noteID {
			s.rememberLocked(saved)
		}
		if s.openID == noteID && s.rev == rev {
			s.dirty = false
		}
		s.opts.log.Debug("note flushed",
			zap.String("note", noteID),
			zap.Int("bytes", len(fields.Content)),
			zap.Duration("dur", time.Since(start)),
		)
	case errors.Is(err, errs.ErrNotFound):
		s.opts.log.Warn("note vanished before save landed", zap.String("note", noteID))
		s.forgetLocked(noteID)
		if s.openID == noteID {
			s.clearLocked()
		}
		err = nil
	default:
		err = fmt.Errorf("flush note %s: %w", noteID, err)
	}
	s.mu.Unlock()
	s.changed()
	return err
}

// Create writes a new note with default field values and opens it.
func (s *Session) Create(ctx context.Context, initial model.NoteFields) (model.Note, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return model.Note{}, errs.ErrSessionClosed
	}

	n, err := s.store.Create(ctx, s.userID, initial.WithDefaults())
	if err != nil {
		return model.Note{}, fmt.Errorf("create note: %w", err)
	}

	// The subscription echo may lag, and a list loaded before the insert may still arrive;
	// keep the note until a pushed list contains it.
	s.mu.Lock()
	s.created[n.ID] = n
	if _, ok := findNote(s.snapshot, n.ID); !ok {
		s.snapshot = append([]model.Note{n}, s.snapshot...)
	}
	s.mu.Unlock()

	if err := s.Select(ctx, n.ID); err != nil {
		return n, err
	}
	return n, nil
}

// Delete removes noteID. Deleting the open note discards its buffer without flushing.
func (s *Session) Delete(ctx context.Context, noteID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errs.ErrSessionClosed
	}
	isOpen := s.openID == noteID
	if isOpen {
		s.stopTimerLocked()
	}
	s.mu.Unlock()

	err := s.store.Delete(ctx, s.userID, noteID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		s.mu.Lock()
		if isOpen && s.openID == noteID && s.dirty && !s.closed {
			s.armTimerLocked()
		}
		s.mu.Unlock()
		return fmt.Errorf("delete note %s: %w", noteID, err)
	}

	s.mu.Lock()
	s.forgetLocked(noteID)
	if s.openID == noteID {
		s.clearLocked()
	}
	s.mu.Unlock()
	s.changed()
	return nil
}

// OnRemoteSnapshot replaces the last-known note list. If the open note is gone the session is
// cleared; if it is present and clean the buffer is refreshed; a dirty buffer is never touched.
// Entries older than what this session last wrote, and notes it created that the list does not
// show yet, are kept from the local copy: the list may have been read before those writes.
func (s *Session) OnRemoteSnapshot(notes []model.Note) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.snapshot = s.reconcileLocked(notes)
	if s.openID != "" {
		n, ok := findNote(s.snapshot, s.openID)
		switch {
		case !ok:
			s.opts.log.Info("open note removed remotely", zap.String("note", s.openID))
			s.clearLocked()
		case !s.dirty:
			s.pending = n.Fields()
		}
	}
	s.mu.Unlock()
	s.changed()
}

// Shutdown flushes a dirty buffer and then tears the session down. If the flush fails the
// session stays usable and the error is returned; Close discards instead.
func (s *Session) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.stopTimerLocked()
	s.mu.Unlock()

	if err := s.flush(ctx); err != nil {
		return err
	}
	s.Close()
	return nil
}

// Close tears the session down without flushing and cancels the subscription.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.stopTimerLocked()
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.opts.log.Debug("sync session closed", zap.String("user", s.userID))
}

// Snapshot returns a copy of the last-known note list.
func (s *Session) Snapshot() []model.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Note(nil), s.snapshot...)
}

// Current returns the open note id and its buffered fields.
func (s *Session) Current() (noteID string, fields model.NoteFields, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID, s.pending, s.openID != ""
}

// Dirty reports whether the buffer holds edits not yet written.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Status returns the editor save label, or "" when no note is open.
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.openID == "":
		return ""
	case s.dirty || s.inflight != nil:
		return StatusSaving
	default:
		return StatusSaved
	}
}

func (s *Session) armTimerLocked() {
	s.stopTimerLocked()
	gen := s.timerGen
	s.timer = time.AfterFunc(s.opts.debounce, func() { s.onTimer(gen) })
}

func (s *Session) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerGen++
}

func (s *Session) onTimer(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.flushTimeout)
	defer cancel()
	if err := s.flush(ctx); err != nil {
		s.opts.log.Warn("autosave failed", zap.Error(err))
		if s.opts.onError != nil {
			s.opts.onError(err)
		}
	}
}

func (s *Session) reconcileLocked(notes []model.Note) []model.Note {
	out := make([]model.Note, 0, len(notes)+len(s.created))
	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		seen[n.ID] = true
		delete(s.created, n.ID)
		if a, ok := s.acked[n.ID]; ok {
			if n.UpdatedAt.Before(a.UpdatedAt) {
				n = a
			} else {
				delete(s.acked, n.ID)
			}
		}
		out = append(out, n)
	}
	for id, n := range s.created {
		if a, ok := s.acked[id]; ok {
			n = a
		}
		out = append(out, n)
		seen[id] = true
	}
	for id := range s.acked {
		if !seen[id] {
			delete(s.acked, id)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// rememberLocked records a write the pushed list may not reflect yet.
func (s *Session) rememberLocked(n model.Note) {
	s.acked[n.ID] = n
	if _, ok := s.created[n.ID]; ok {
		s.created[n.ID] = n
	}
	for i := range s.snapshot {
		if s.snapshot[i].ID == n.ID {
			s.snapshot[i] = n
			return
		}
	}
}

func (s *Session) forgetLocked(noteID string) {
	delete(s.created, noteID)
	delete(s.acked, noteID)
}

func (s *Session) clearLocked() {
	s.stopTimerLocked()
	s.openID = ""
	s.pending = model.NoteFields{}
	s.dirty = false
	s.rev++
}

func (s *Session) changed() {
	if s.opts.onChange != nil {
		s.opts.onChange()
	}
}

func findNote(notes []model.Note, id string) (model.Note, bool) {
	for _, n := range notes {
		if n.ID == id {
			return n, true
		}
	}
	return model.Note{}, false
}
