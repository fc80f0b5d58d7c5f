// Package notesync keeps an editor's buffer for the open note in step with the remote note store.
//
// A Session is created per signed-in user. It buffers edits for one open note, flushes them
// after a quiet period (debounce) or at explicit flush points (switching notes, deleting,
// logout, manual save), and reconciles with the ordered snapshots pushed by the store.
package notesync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/model"
)

// DefaultDebounce is the pause after the last edit before an automatic flush.
const DefaultDebounce = 1500 * time.Millisecond

// Store is the remote note store a Session writes to and listens on.
type Store interface {
	// Subscribe pushes the user's full note list (most recently updated first) on every change.
	// The returned cancel func stops further pushes.
	Subscribe(ctx context.Context, userID string, onChange func([]model.Note)) (cancel func(), err error)
	// Create inserts a note and returns it with store-assigned id and timestamps.
	Create(ctx context.Context, userID string, f model.NoteFields) (model.Note, error)
	// Update overwrites a note's fields and returns the stored note; errs.ErrNotFound if it no
	// longer exists.
	Update(ctx context.Context, userID, noteID string, f model.NoteFields) (model.Note, error)
	// Delete removes a note.
	Delete(ctx context.Context, userID, noteID string) error
}

// Option configures a Session.
type Option func(*options)

type options struct {
	debounce     time.Duration
	flushTimeout time.Duration
	log          *zap.Logger
	onError      func(error)
	onChange     func()
}

func defaultOptions() options {
	return options{
		debounce:     DefaultDebounce,
		flushTimeout: 10 * time.Second,
		log:          zap.NewNop(),
	}
}

// WithDebounce overrides the autosave delay.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithFlushTimeout bounds background (timer-driven) flushes.
func WithFlushTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.flushTimeout = d
		}
	}
}

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// WithErrorHandler receives failures of background flushes, which have no caller to return to.
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.onError = fn }
}

// WithChangeHandler is called after every state change (snapshot, open note, dirty flag).
// It runs without the session lock held and may call the read accessors.
func WithChangeHandler(fn func()) Option {
	return func(o *options) { o.onChange = fn }
}
