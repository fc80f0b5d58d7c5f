// Package model defines domain entities used by services, stores and the sync core.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// Defaults applied when a note is created or saved without a title/subject.
const (
	DefaultTitle   = "Untitled"
	DefaultSubject = "General"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// User represents an account stored on the server. Passwords are never stored in plaintext.
type User struct {
	ID        uuid.UUID // PK
	Email     string    // unique
	PwdHash   []byte    // Argon2id(password, Salt)
	Salt      []byte    // per-user salt
	CreatedAt time.Time
}

// Session identifies the signed-in user on the client side.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Note is one user document. ID, CreatedAt and UpdatedAt are assigned by the store.
type Note struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Fields returns the editable part of the note.
func (n Note) Fields() NoteFields {
	return NoteFields{Title: n.Title, Content: n.Content, Subject: n.Subject}
}

// NoteFields is the editable triple written by create/update and buffered by the editor.
type NoteFields struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Subject string `json:"subject"`
}

// WithDefaults fills empty title/subject with their defaults.
func (f NoteFields) WithDefaults() NoteFields {
	if f.Title == "" {
		f.Title = DefaultTitle
	}
	if f.Subject == "" {
		f.Subject = DefaultSubject
	}
	return f
}

// Field names one editable attribute of a note.
type Field string

const (
	FieldTitle   Field = "title"
	FieldContent Field = "content"
	FieldSubject Field = "subject"
)

// Valid reports whether f is a known field.
func (f Field) Valid() bool {
	switch f {
	case FieldTitle, FieldContent, FieldSubject:
		return true
	}
	return false
}

// Set returns a copy of fields with the named attribute replaced.
func (f NoteFields) Set(field Field, value string) NoteFields {
	switch field {
	case FieldTitle:
		f.Title = value
	case FieldContent:
		f.Content = value
	case FieldSubject:
		f.Subject = value
	}
	return f
}
