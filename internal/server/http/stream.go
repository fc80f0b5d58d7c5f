package httpserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/smartnotes/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(*http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// SnapshotMessage is pushed to stream clients on connect and after every change.
type SnapshotMessage struct {
	Type  string       `json:"type"`
	Notes []model.Note `json:"notes"`
}

// streamNotes upgrades to a WebSocket and pushes the user's ordered note list on every change.
// Only the newest pending list is kept for a slow client.
func (s *Server) streamNotes(c *gin.Context) {
	userID, _ := UserIDFromCtx(c.Request.Context())

	updates := make(chan []model.Note, 1)
	cancel, err := s.changes.Subscribe(c.Request.Context(), userID, func(notes []model.Note) {
		offerLatest(updates, notes)
	})
	if err != nil {
		s.writeError(c, "subscribe", err)
		return
	}
	defer cancel()

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()
	s.metrics.streams.Inc()
	defer s.metrics.streams.Dec()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		ws.SetReadLimit(512)
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error { return ws.SetReadDeadline(time.Now().Add(pongWait)) })
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case notes := <-updates:
			if notes == nil {
				notes = []model.Note{}
			}
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteJSON(SnapshotMessage{Type: "snapshot", Notes: notes}); err != nil {
				s.log.Debug("stream write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// offerLatest replaces any undelivered list with v. Deliveries to one subscriber never overlap.
func offerLatest(ch chan []model.Note, v []model.Note) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
