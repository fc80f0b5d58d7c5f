package postgres

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// NotesChannel is the NOTIFY channel fed by the notes trigger; the payload is the owner's user id.
const NotesChannel = "notes_changed"

// notifyConn is the subset of *pgx.Conn used for LISTEN.
type notifyConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// ChangeListener delivers note change notifications from a dedicated connection.
type ChangeListener struct {
	dial       func(ctx context.Context) (notifyConn, error)
	retryDelay time.Duration
	log        *zap.Logger
}

// NewChangeListener constructs a listener that opens its own connection to dsn.
func NewChangeListener(dsn string, log *zap.Logger) *ChangeListener {
	dial := func(ctx context.Context) (notifyConn, error) {
		return pgx.Connect(ctx, dsn)
	}
	return newChangeListener(dial, time.Second, log)
}

func newChangeListener(dial func(ctx context.Context) (notifyConn, error), retry time.Duration, log *zap.Logger) *ChangeListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChangeListener{dial: dial, retryDelay: retry, log: log}
}

// Listen blocks until ctx is done, calling fn with the user id of every changed note.
// A lost connection is re-established after retryDelay; fn is then called with uuid.Nil
// so callers can resync everything they may have missed.
func (l *ChangeListener) Listen(ctx context.Context, fn func(userID uuid.UUID)) error {
	first := true
	for {
		err := l.listenOnce(ctx, fn, !first)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		first = false
		l.log.Warn("notes listener disconnected", zap.Error(err), zap.Duration("retry", l.retryDelay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *ChangeListener) listenOnce(ctx context.Context, fn func(uuid.UUID), resync bool) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.Close(closeCtx)
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotesChannel); err != nil {
		return err
	}
	l.log.Info("listening for note changes", zap.String("channel", NotesChannel))
	if resync {
		fn(uuid.Nil)
	}

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		if n.Channel != NotesChannel {
			continue
		}
		id, err := uuid.FromString(n.Payload)
		if err != nil {
			l.log.Warn("bad notification payload", zap.String("payload", n.Payload))
			continue
		}
		fn(id)
	}
}
