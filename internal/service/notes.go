package service

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/repository"
)

// Field limits enforced before anything reaches storage.
const (
	MaxTitleLen     = 200
	MaxSubjectLen   = 100
	MaxContentBytes = 1 << 20
)

// NoteService defines per-user note operations.
type NoteService interface {
	// Create inserts a note, filling default title/subject.
	Create(ctx context.Context, userID uuid.UUID, f model.NoteFields) (model.Note, error)
	// Update overwrites a note's fields.
	Update(ctx context.Context, userID, noteID uuid.UUID, f model.NoteFields) (model.Note, error)
	// Delete removes a note.
	Delete(ctx context.Context, userID, noteID uuid.UUID) error
	// Get returns one note.
	Get(ctx context.Context, userID, noteID uuid.UUID) (model.Note, error)
	// List returns the user's notes, most recently updated first, optionally filtered by query.
	List(ctx context.Context, userID uuid.UUID, query string) ([]model.Note, error)
}

type NoteServiceImpl struct {
	repo repository.NoteRepository
}

// NewNoteService constructs NoteService over a repository.
func NewNoteService(repo repository.NoteRepository) *NoteServiceImpl {
	return &NoteServiceImpl{repo: repo}
}

// Create validates input and delegates to the repository.
func (s *NoteServiceImpl) Create(ctx context.Context, userID uuid.UUID, f model.NoteFields) (model.Note, error) {
	if userID == uuid.Nil {
		return model.Note{}, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	f = f.WithDefaults()
	if err := validateFields(f); err != nil {
		return model.Note{}, err
	}
	return s.repo.Create(ctx, userID, f)
}

// Update validates input and overwrites the note; errs.ErrNotFound if it is gone.
// The title is stored as given, an empty subject falls back to the default.
func (s *NoteServiceImpl) Update(ctx context.Context, userID, noteID uuid.UUID, f model.NoteFields) (model.Note, error) {
	if userID == uuid.Nil || noteID == uuid.Nil {
		return model.Note{}, fmt.Errorf("%w: empty userID/noteID", errs.ErrValidation)
	}
	if f.Subject == "" {
		f.Subject = model.DefaultSubject
	}
	if err := validateFields(f); err != nil {
		return model.Note{}, err
	}
	return s.repo.Update(ctx, userID, noteID, f)
}

// Delete removes a note.
func (s *NoteServiceImpl) Delete(ctx context.Context, userID, noteID uuid.UUID) error {
	if userID == uuid.Nil || noteID == uuid.Nil {
		return fmt.Errorf("%w: empty userID/noteID", errs.ErrValidation)
	}
	return s.repo.Delete(ctx, userID, noteID)
}

// Get fetches a single note.
func (s *NoteServiceImpl) Get(ctx context.Context, userID, noteID uuid.UUID) (model.Note, error) {
	if userID == uuid.Nil || noteID == uuid.Nil {
		return model.Note{}, fmt.Errorf("%w: empty userID/noteID", errs.ErrValidation)
	}
	return s.repo.Get(ctx, userID, noteID)
}

// List returns the user's notes filtered by query.
func (s *NoteServiceImpl) List(ctx context.Context, userID uuid.UUID, query string) ([]model.Note, error) {
	if userID == uuid.Nil {
		return nil, fmt.Errorf("%w: empty userID", errs.ErrValidation)
	}
	notes, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return model.Filter(notes, query), nil
}

func validateFields(f model.NoteFields) error {
	switch {
	case utf8.RuneCountInString(f.Title) > MaxTitleLen:
		return fmt.Errorf("%w: title longer than %d characters", errs.ErrValidation, MaxTitleLen)
	case utf8.RuneCountInString(f.Subject) > MaxSubjectLen:
		return fmt.Errorf("%w: subject longer than %d characters", errs.ErrValidation, MaxSubjectLen)
	case len(f.Content) > MaxContentBytes:
		return fmt.Errorf("%w: content larger than %d bytes", errs.ErrValidation, MaxContentBytes)
	}
	return nil
}
