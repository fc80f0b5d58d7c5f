package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
	"github.com/and161185/smartnotes/internal/service"
)

var signKey = []byte("secret")

func init() { gin.SetMode(gin.TestMode) }

func makeJWT(t *testing.T, sub string, key []byte, method jwt.SigningMethod, iat time.Time, ttl time.Duration) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		IssuedAt:  jwt.NewNumericDate(iat),
		NotBefore: jwt.NewNumericDate(iat),
		ExpiresAt: jwt.NewNumericDate(iat.Add(ttl)),
	}
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func tokenFor(t *testing.T, id uuid.UUID) string {
	return makeJWT(t, id.String(), signKey, jwt.SigningMethodHS256, time.Now().Add(-time.Minute), 10*time.Minute)
}

type fakeAuth struct {
	registerErr error
	loginErr    error
	user        model.User
	lastIP      string
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Register(_ context.Context, email, _ string) (string, error) {
	if f.registerErr != nil {
		return "", f.registerErr
	}
	f.user.Email = email
	return f.user.ID.String(), nil
}

func (f *fakeAuth) LoginWithIP(_ context.Context, _, _ string, ip string) (model.Tokens, model.User, error) {
	f.lastIP = ip
	if f.loginErr != nil {
		return model.Tokens{}, model.User{}, f.loginErr
	}
	return model.Tokens{AccessToken: "tok", ExpiresAt: time.Now().Add(time.Hour)}, f.user, nil
}

type fakeNoteService struct {
	mu     sync.Mutex
	notes  map[uuid.UUID]model.Note
	err    error
	lastQ  string
	lastUp model.NoteFields
}

var _ service.NoteService = (*fakeNoteService)(nil)

func (f *fakeNoteService) Create(_ context.Context, userID uuid.UUID, nf model.NoteFields) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return model.Note{}, f.err
	}
	nf = nf.WithDefaults()
	id := uuid.Must(uuid.NewV4())
	n := model.Note{ID: id.String(), UserID: userID.String(), Title: nf.Title, Content: nf.Content, Subject: nf.Subject}
	f.notes[id] = n
	return n, nil
}

func (f *fakeNoteService) Update(_ context.Context, _, noteID uuid.UUID, nf model.NoteFields) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastUp = nf
	if f.err != nil {
		return model.Note{}, f.err
	}
	n, ok := f.notes[noteID]
	if !ok {
		return model.Note{}, errs.ErrNotFound
	}
	n.Title, n.Content, n.Subject = nf.Title, nf.Content, nf.Subject
	f.notes[noteID] = n
	return n, nil
}

func (f *fakeNoteService) Delete(_ context.Context, _, noteID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[noteID]; !ok {
		return errs.ErrNotFound
	}
	delete(f.notes, noteID)
	return nil
}

func (f *fakeNoteService) Get(_ context.Context, _, noteID uuid.UUID) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notes[noteID]
	if !ok {
		return model.Note{}, errs.ErrNotFound
	}
	return n, nil
}

func (f *fakeNoteService) List(_ context.Context, _ uuid.UUID, q string) ([]model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQ = q
	if f.err != nil {
		return nil, f.err
	}
	out := []model.Note{}
	for _, n := range f.notes {
		out = append(out, n)
	}
	return model.Filter(out, q), nil
}

type fakeCompleter struct {
	out string
	err error
}

func (f fakeCompleter) Complete(context.Context, string, string) (string, error) { return f.out, f.err }

type fakeChanges struct {
	mu      sync.Mutex
	fn      func([]model.Note)
	initial []model.Note
	err     error
	cancels int
}

func (f *fakeChanges) Subscribe(_ context.Context, _ uuid.UUID, fn func([]model.Note)) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
	fn(f.initial)
	return func() {
		f.mu.Lock()
		f.cancels++
		f.fn = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeChanges) push(notes []model.Note) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(notes)
	}
}

type fixture struct {
	srv     *Server
	router  *gin.Engine
	auth    *fakeAuth
	notes   *fakeNoteService
	changes *fakeChanges
	userID  uuid.UUID
	token   string
}

func newFixture(t *testing.T, llm fakeCompleter) *fixture {
	t.Helper()
	uid := uuid.Must(uuid.NewV4())
	f := &fixture{
		auth:    &fakeAuth{user: model.User{ID: uid, Email: "a@b.c"}},
		notes:   &fakeNoteService{notes: map[uuid.UUID]model.Note{}},
		changes: &fakeChanges{},
		userID:  uid,
		token:   tokenFor(t, uid),
	}
	f.srv = New(Deps{
		Auth:      f.auth,
		Notes:     f.notes,
		Assistant: service.NewStudyAssistant(llm),
		Changes:   f.changes,
		SignKey:   signKey,
		AIReady:   true,
	})
	f.router = f.srv.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

