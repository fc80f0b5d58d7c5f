package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// NoteRepo implements NoteRepository using PostgreSQL.
type NoteRepo struct{ db *DB }

// NewNoteRepo constructs a note repository.
func NewNoteRepo(db *DB) *NoteRepo { return &NoteRepo{db: db} }

// Create inserts a note with a fresh id; timestamps come from the database.
func (r *NoteRepo) Create(ctx context.Context, userID uuid.UUID, f model.NoteFields) (model.Note, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return model.Note{}, err
	}
	const q = `
INSERT INTO notes (id, user_id, title, content, subject)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at, updated_at`
	n := model.Note{
		ID:      id.String(),
		UserID:  userID.String(),
		Title:   f.Title,
		Content: f.Content,
		Subject: f.Subject,
	}
	if err := r.db.Pool.QueryRow(ctx, q, id, userID, f.Title, f.Content, f.Subject).Scan(&n.CreatedAt, &n.UpdatedAt); err != nil {
		return model.Note{}, err
	}
	return n, nil
}

// Update overwrites title/content/subject and refreshes updated_at.
func (r *NoteRepo) Update(ctx context.Context, userID, noteID uuid.UUID, f model.NoteFields) (model.Note, error) {
	const q = `
UPDATE notes SET title=$3, content=$4, subject=$5, updated_at=now()
WHERE id=$1 AND user_id=$2
RETURNING created_at, updated_at`
	n := model.Note{
		ID:      noteID.String(),
		UserID:  userID.String(),
		Title:   f.Title,
		Content: f.Content,
		Subject: f.Subject,
	}
	err := r.db.Pool.QueryRow(ctx, q, noteID, userID, f.Title, f.Content, f.Subject).Scan(&n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Note{}, errs.ErrNotFound
	}
	if err != nil {
		return model.Note{}, err
	}
	return n, nil
}

// Delete removes a note owned by the user.
func (r *NoteRepo) Delete(ctx context.Context, userID, noteID uuid.UUID) error {
	const q = `DELETE FROM notes WHERE id=$1 AND user_id=$2`
	tag, err := r.db.Pool.Exec(ctx, q, noteID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// Get returns a single note by id.
func (r *NoteRepo) Get(ctx context.Context, userID, noteID uuid.UUID) (model.Note, error) {
	const q = `
SELECT id, title, content, subject, created_at, updated_at
FROM notes WHERE id=$1 AND user_id=$2`
	n, err := scanNote(r.db.Pool.QueryRow(ctx, q, noteID, userID), userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Note{}, errs.ErrNotFound
	}
	return n, err
}

// List returns all notes of the user, most recently updated first.
func (r *NoteRepo) List(ctx context.Context, userID uuid.UUID) ([]model.Note, error) {
	const q = `
SELECT id, title, content, subject, created_at, updated_at
FROM notes
WHERE user_id=$1
ORDER BY updated_at DESC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Note{}
	for rows.Next() {
		n, err := scanNote(rows, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNote(row pgx.Row, userID uuid.UUID) (model.Note, error) {
	var (
		id      uuid.UUID
		n       model.Note
		created time.Time
		updated time.Time
	)
	if err := row.Scan(&id, &n.Title, &n.Content, &n.Subject, &created, &updated); err != nil {
		return model.Note{}, err
	}
	n.ID = id.String()
	n.UserID = userID.String()
	n.CreatedAt, n.UpdatedAt = created, updated
	return n, nil
}
