// Package testutil runs the SmartNotes HTTP stack in-process over an in-memory note store.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/repository"
)

// MemNotes is an in-memory NoteRepository. OnChange plays the part of the database notify trigger.
type MemNotes struct {
	OnChange func(userID uuid.UUID)

	mu      sync.Mutex
	notes   map[uuid.UUID]model.Note
	updates int
}

var _ repository.NoteRepository = (*MemNotes)(nil)

// NewMemNotes returns an empty store.
func NewMemNotes() *MemNotes {
	return &MemNotes{notes: map[uuid.UUID]model.Note{}}
}

func (r *MemNotes) changed(userID uuid.UUID) {
	if r.OnChange != nil {
		r.OnChange(userID)
	}
}

func (r *MemNotes) Create(_ context.Context, userID uuid.UUID, f model.NoteFields) (model.Note, error) {
	id := uuid.Must(uuid.NewV4())
	now := time.Now()
	n := model.Note{ID: id.String(), UserID: userID.String(), Title: f.Title, Content: f.Content, Subject: f.Subject, CreatedAt: now, UpdatedAt: now}
	r.mu.Lock()
	r.notes[id] = n
	r.mu.Unlock()
	r.changed(userID)
	return n, nil
}

func (r *MemNotes) Update(_ context.Context, userID, noteID uuid.UUID, f model.NoteFields) (model.Note, error) {
	r.mu.Lock()
	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID.String() {
		r.mu.Unlock()
		return model.Note{}, errs.ErrNotFound
	}
	r.updates++
	n.Title, n.Content, n.Subject, n.UpdatedAt = f.Title, f.Content, f.Subject, time.Now()
	r.notes[noteID] = n
	r.mu.Unlock()
	r.changed(userID)
	return n, nil
}

func (r *MemNotes) Delete(_ context.Context, userID, noteID uuid.UUID) error {
	r.mu.Lock()
	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID.String() {
		r.mu.Unlock()
		return errs.ErrNotFound
	}
	delete(r.notes, noteID)
	r.mu.Unlock()
	r.changed(userID)
	return nil
}

func (r *MemNotes) Get(_ context.Context, userID, noteID uuid.UUID) (model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.notes[noteID]
	if !ok || n.UserID != userID.String() {
		return model.Note{}, errs.ErrNotFound
	}
	return n, nil
}

// List orders like the Postgres repo: most recently updated first, id as tiebreak.
func (r *MemNotes) List(_ context.Context, userID uuid.UUID) ([]model.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []model.Note{}
	for _, n := range r.notes {
		if n.UserID == userID.String() {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Content returns the stored content of a note, "" if absent.
func (r *MemNotes) Content(noteID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.notes[uuid.FromStringOrNil(noteID)].Content
}

// Updates counts successful Update calls.
func (r *MemNotes) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}
