// Package hub fans ordered per-user note lists out to live subscribers.
//
// A change notification for a user reloads that user's list once and pushes it to every
// subscriber of that user. Loads are shared between concurrent callers via singleflight; each
// load carries a sequence number taken when it starts so a subscriber never goes back to an
// older list.
package hub

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/and161185/smartnotes/internal/model"
)

// Loader returns a user's notes, most recently updated first.
type Loader interface {
	List(ctx context.Context, userID uuid.UUID) ([]model.Note, error)
}

// Listener delivers ids of users whose notes changed; uuid.Nil asks for a full resync.
type Listener interface {
	Listen(ctx context.Context, fn func(userID uuid.UUID)) error
}

type snapshot struct {
	seq   uint64
	notes []model.Note
}

type subscriber struct {
	fn func([]model.Note)

	mu   sync.Mutex
	last uint64
}

func (s *subscriber) deliver(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.seq <= s.last {
		return
	}
	s.last = snap.seq
	s.fn(snap.notes)
}

// Hub tracks subscribers per user.
type Hub struct {
	loader  Loader
	log     *zap.Logger
	timeout time.Duration

	sf  singleflight.Group
	seq atomic.Uint64

	mu   sync.Mutex
	subs map[uuid.UUID]map[uint64]*subscriber
	next uint64
}

// New constructs a Hub.
func New(loader Loader, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		loader:  loader,
		log:     log,
		timeout: 10 * time.Second,
		subs:    map[uuid.UUID]map[uint64]*subscriber{},
	}
}

// Subscribe delivers the user's current list to fn and then every reloaded list until cancel
// is called. fn must not block; deliveries to one subscriber never overlap.
func (h *Hub) Subscribe(ctx context.Context, userID uuid.UUID, fn func([]model.Note)) (cancel func(), err error) {
	sub := &subscriber{fn: fn}

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[userID] == nil {
		h.subs[userID] = map[uint64]*subscriber{}
	}
	h.subs[userID][id] = sub
	h.mu.Unlock()

	snap, err := h.load(ctx, userID, false)
	if err != nil {
		h.remove(userID, id)
		return nil, err
	}
	sub.deliver(snap)

	var once sync.Once
	return func() { once.Do(func() { h.remove(userID, id) }) }, nil
}

// Notify reloads userID's list and pushes it to its subscribers. uuid.Nil refreshes everyone.
func (h *Hub) Notify(ctx context.Context, userID uuid.UUID) {
	if userID != uuid.Nil {
		h.refresh(ctx, userID)
		return
	}
	h.mu.Lock()
	users := make([]uuid.UUID, 0, len(h.subs))
	for u := range h.subs {
		users = append(users, u)
	}
	h.mu.Unlock()
	h.log.Info("resyncing all subscribers", zap.Int("users", len(users)))
	for _, u := range users {
		h.refresh(ctx, u)
	}
}

// Run feeds change notifications from l into the hub until ctx is done.
func (h *Hub) Run(ctx context.Context, l Listener) error {
	return l.Listen(ctx, func(userID uuid.UUID) { h.Notify(ctx, userID) })
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, m := range h.subs {
		n += len(m)
	}
	return n
}

func (h *Hub) refresh(ctx context.Context, userID uuid.UUID) {
	subs := h.subscribers(userID)
	if len(subs) == 0 {
		return
	}
	// A load already in flight may predate the change; start a new one.
	snap, err := h.load(ctx, userID, true)
	if err != nil {
		h.log.Warn("reload notes failed", zap.String("user", userID.String()), zap.Error(err))
		return
	}
	for _, s := range h.subscribers(userID) {
		s.deliver(snap)
	}
}

func (h *Hub) load(ctx context.Context, userID uuid.UUID, fresh bool) (snapshot, error) {
	key := userID.String()
	if fresh {
		h.sf.Forget(key)
	}
	v, err, _ := h.sf.Do(key, func() (any, error) {
		seq := h.seq.Add(1)
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.timeout)
		defer cancel()
		notes, err := h.loader.List(lctx, userID)
		if err != nil {
			return nil, err
		}
		return snapshot{seq: seq, notes: notes}, nil
	})
	if err != nil {
		return snapshot{}, err
	}
	return v.(snapshot), nil
}

func (h *Hub) subscribers(userID uuid.UUID) []*subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*subscriber, 0, len(h.subs[userID]))
	for _, s := range h.subs[userID] {
		out = append(out, s)
	}
	return out
}

func (h *Hub) remove(userID uuid.UUID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[userID], id)
	if len(h.subs[userID]) == 0 {
		delete(h.subs, userID)
	}
}
