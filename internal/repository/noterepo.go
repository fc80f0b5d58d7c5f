package repository

import (
	"context"

	"github.com/and161185/smartnotes/internal/model"
	"github.com/gofrs/uuid/v5"
)

// NoteRepository provides per-user access to notes. Every call is scoped by userID.
type NoteRepository interface {
	// Create inserts a note and returns it with store-assigned id and timestamps.
	Create(ctx context.Context, userID uuid.UUID, f model.NoteFields) (model.Note, error)

	// Update overwrites editable fields and refreshes updated_at.
	Update(ctx context.Context, userID, noteID uuid.UUID, f model.NoteFields) (model.Note, error)

	// Delete removes a note.
	Delete(ctx context.Context, userID, noteID uuid.UUID) error

	// Get returns a single note.
	Get(ctx context.Context, userID, noteID uuid.UUID) (model.Note, error)

	// List returns the user's notes, most recently updated first.
	List(ctx context.Context, userID uuid.UUID) ([]model.Note, error)
}
