package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
)

type snapshotMessage struct {
	Type  string       `json:"type"`
	Notes []model.Note `json:"notes"`
}

// Subscribe opens the note stream for userID and calls onChange with every pushed list, in
// order, from a single goroutine. A dropped stream is redialed until cancel is called; the
// server sends a full list on every connect so nothing is missed.
func (c *Client) Subscribe(ctx context.Context, userID string, onChange func([]model.Note)) (func(), error) {
	if err := c.checkUser(userID); err != nil {
		return nil, err
	}
	conn, err := c.dialStream(ctx)
	if err != nil {
		return nil, err
	}

	sctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.pump(sctx, conn, onChange)
	}()
	return func() {
		cancel()
		<-done
	}, nil
}

func (c *Client) pump(ctx context.Context, conn *websocket.Conn, onChange func([]model.Note)) {
	for {
		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		err := readSnapshots(conn, onChange)
		stop()
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.log.Warn("note stream dropped; reconnecting", zap.Error(err))

		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.redial):
			}
			conn, err = c.dialStream(ctx)
			if err == nil {
				break
			}
			c.log.Warn("note stream redial failed", zap.Error(err))
		}
	}
}

func readSnapshots(conn *websocket.Conn, onChange func([]model.Note)) error {
	for {
		var msg snapshotMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Type != "snapshot" {
			continue
		}
		if msg.Notes == nil {
			msg.Notes = []model.Note{}
		}
		onChange(msg.Notes)
	}
}

func (c *Client) dialStream(ctx context.Context) (*websocket.Conn, error) {
	s := c.session()
	if s == nil {
		return nil, fmt.Errorf("%w: %w: not signed in", errs.ErrStore, errs.ErrUnauthorized)
	}
	u := c.base + "/api/notes/stream"
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+s.AccessToken)

	conn, resp, err := c.dialer.DialContext(ctx, u, h)
	if err != nil {
		if resp != nil {
			return nil, statusError(resp.StatusCode, "stream handshake", errs.ErrStore)
		}
		return nil, fmt.Errorf("%w: dial stream: %v", errs.ErrStore, err)
	}
	return conn, nil
}
