package testutil

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/hub"
	"github.com/and161185/smartnotes/internal/model"
	httpserver "github.com/and161185/smartnotes/internal/server/http"
	"github.com/and161185/smartnotes/internal/service"
)

// Password is the only password StubAuth accepts.
const Password = "correct"

// SignKey signs the access tokens issued by StubAuth.
var SignKey = []byte("test-key")

// StubAuth signs in any email with Password as the same user.
type StubAuth struct{ User model.User }

func (a StubAuth) Register(context.Context, string, string) (string, error) {
	return a.User.ID.String(), nil
}

func (a StubAuth) LoginWithIP(_ context.Context, email, password, _ string) (model.Tokens, model.User, error) {
	if password != Password {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}
	exp := time.Now().Add(time.Hour)
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   a.User.ID.String(),
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString(SignKey)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	u := a.User
	u.Email = email
	return model.Tokens{AccessToken: tok, ExpiresAt: exp}, u, nil
}

// Marker is the word EchoCompleter looks for in prompts.
const Marker = "photosynthesis"

// EchoCompleter answers "seen" when the prompt carries Marker and "missing" otherwise.
type EchoCompleter struct{}

func (EchoCompleter) Complete(_ context.Context, _, user string) (string, error) {
	if strings.Contains(user, Marker) {
		return "seen", nil
	}
	return "missing", nil
}

// Stack is a running server with its collaborators exposed.
type Stack struct {
	Notes  *MemNotes
	Hub    *hub.Hub
	Server *httptest.Server
	UserID uuid.UUID
}

// URL is the server base URL.
func (s *Stack) URL() string { return s.Server.URL }

// NewStack starts the real router over MemNotes; it is closed with the test.
func NewStack(t testing.TB) *Stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Stack{Notes: NewMemNotes(), UserID: uuid.Must(uuid.NewV4())}
	s.Hub = hub.New(s.Notes, nil)
	s.Notes.OnChange = func(userID uuid.UUID) { s.Hub.Notify(context.Background(), userID) }

	srv := httpserver.New(httpserver.Deps{
		Auth:      StubAuth{User: model.User{ID: s.UserID}},
		Notes:     service.NewNoteService(s.Notes),
		Assistant: service.NewStudyAssistant(EchoCompleter{}),
		Changes:   s.Hub,
		SignKey:   SignKey,
		AIReady:   true,
	})
	s.Server = httptest.NewServer(srv.Router())
	t.Cleanup(s.Server.Close)
	return s
}
