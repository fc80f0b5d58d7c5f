package client

import (
	"context"
	"testing"

	"github.com/and161185/smartnotes/internal/testutil"
)

// signedIn returns a client with a valid session for the stack user.
func signedIn(t *testing.T, st *testutil.Stack, opts ...Option) *Client {
	t.Helper()
	c := New(st.URL(), opts...)
	s, err := c.Login(context.Background(), "a@b.c", testutil.Password)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	c.SetSession(&s)
	return c
}
