package notesync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
)

const (
	shortDebounce = 30 * time.Millisecond
	never         = time.Hour
)

func noteA() model.Note {
	return model.Note{ID: "A", Title: "Cells", Content: "a0", Subject: "Biology"}
}

func noteB() model.Note {
	return model.Note{ID: "B", Title: "Limits", Content: "b0", Subject: "Math"}
}

func openSession(t *testing.T, st *fakeStore, opts ...Option) *Session {
	t.Helper()
	s, err := Open(context.Background(), st, "u1", opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestOpen_ReceivesInitialSnapshot(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st)

	require.Len(t, s.Snapshot(), 2)
	_, _, ok := s.Current()
	require.False(t, ok)
	require.Equal(t, "", s.Status())

	_, err := Open(context.Background(), st, "")
	require.ErrorIs(t, err, errs.ErrValidation)

	st.subscribeErr = errs.ErrStore
	_, err = Open(context.Background(), st, "u1")
	require.ErrorIs(t, err, errs.ErrStore)
}

func TestEdit_CoalescesIntoOneFlush(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(shortDebounce))
	require.NoError(t, s.Select(context.Background(), "A"))

	s.Edit(model.FieldContent, "a")
	s.Edit(model.FieldContent, "ab")
	s.Edit(model.FieldTitle, "Cell theory")
	s.Edit(model.FieldContent, "abc")
	require.True(t, s.Dirty())
	require.Equal(t, StatusSaving, s.Status())

	require.Eventually(t, func() bool { return st.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	got := st.lastUpdate()
	require.Equal(t, "A", got.noteID)
	require.Equal(t, model.NoteFields{Title: "Cell theory", Content: "abc", Subject: "Biology"}, got.fields)

	time.Sleep(3 * shortDebounce)
	require.Equal(t, 1, st.updateCount())
	require.False(t, s.Dirty())
	require.Equal(t, StatusSaved, s.Status())
}

func TestEdit_NoOpenNoteDoesNothing(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(shortDebounce))

	s.Edit(model.FieldContent, "ghost")
	require.False(t, s.Dirty())
	time.Sleep(3 * shortDebounce)
	require.Zero(t, st.updateCount())
}

func TestSelect_UnknownIDIsNoOp(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	require.NoError(t, s.Select(context.Background(), "A"))
	s.Edit(model.FieldContent, "dirty")

	require.NoError(t, s.Select(context.Background(), "missing"))
	id, f, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "A", id)
	require.Equal(t, "dirty", f.Content)
	require.Zero(t, st.updateCount())
}

func TestSelect_FlushesDirtyNoteFirst(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()

	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "a1")
	s.Edit(model.FieldContent, "a2")

	require.NoError(t, s.Select(ctx, "B"))
	require.Equal(t, 1, st.updateCount())
	require.Equal(t, update{noteID: "A", fields: model.NoteFields{Title: "Cells", Content: "a2", Subject: "Biology"}}, st.lastUpdate())

	id, f, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, "B", id)
	require.Equal(t, noteB().Fields(), f)
	require.False(t, s.Dirty())

	// clean switch does not write
	require.NoError(t, s.Select(ctx, "A"))
	require.Equal(t, 1, st.updateCount())
}

func TestSelect_AbortsWhenFlushFails(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()

	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "unsaved")
	st.setUpdateErr(errs.ErrStore)

	err := s.Select(ctx, "B")
	require.ErrorIs(t, err, errs.ErrStore)
	id, f, _ := s.Current()
	require.Equal(t, "A", id)
	require.Equal(t, "unsaved", f.Content)
	require.True(t, s.Dirty())
}

func TestFlush_Idempotent(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()

	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Select(ctx, "A"))
	require.NoError(t, s.Flush(ctx))
	require.Zero(t, st.updateCount())

	s.Edit(model.FieldSubject, "Chemistry")
	require.NoError(t, s.Flush(ctx))
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 1, st.updateCount())
}

func TestFlush_FailureKeepsDirtyWithoutRetry(t *testing.T) {
	st := newFakeStore(noteA())
	var reported atomic.Int32
	s := openSession(t, st, WithDebounce(shortDebounce), WithErrorHandler(func(err error) {
		if errors.Is(err, errs.ErrStore) {
			reported.Add(1)
		}
	}))
	require.NoError(t, s.Select(context.Background(), "A"))
	st.setUpdateErr(errs.ErrStore)

	s.Edit(model.FieldContent, "x")
	require.Eventually(t, func() bool { return reported.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.True(t, s.Dirty())

	time.Sleep(3 * shortDebounce)
	require.Equal(t, 1, st.updateCount(), "no automatic retry")

	st.setUpdateErr(nil)
	require.NoError(t, s.Flush(context.Background()))
	require.False(t, s.Dirty())
	require.Equal(t, "x", st.lastUpdate().fields.Content)
}

func TestFlush_NotFoundClearsSession(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	require.NoError(t, s.Select(context.Background(), "A"))
	s.Edit(model.FieldContent, "x")

	st.setUpdateErr(errs.ErrNotFound)
	require.NoError(t, s.Flush(context.Background()))
	_, _, ok := s.Current()
	require.False(t, ok)
	require.False(t, s.Dirty())
}

func TestFlush_SerializedAndRereadsLatestBuffer(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))

	st.started = make(chan struct{})
	st.release = make(chan struct{})

	s.Edit(model.FieldContent, "first")
	first := make(chan error, 1)
	go func() { first <- s.Flush(ctx) }()
	<-st.started

	// edit while the write is outstanding, then ask for another flush
	s.Edit(model.FieldContent, "second")
	second := make(chan error, 1)
	go func() { second <- s.Flush(ctx) }()

	st.release <- struct{}{}
	require.NoError(t, <-first)
	require.True(t, s.Dirty(), "edit during write keeps buffer dirty")

	<-st.started
	st.release <- struct{}{}
	require.NoError(t, <-second)

	require.Equal(t, 2, st.updateCount())
	require.Equal(t, "second", st.lastUpdate().fields.Content)
	require.False(t, s.Dirty())
	st.mu.Lock()
	require.Equal(t, 1, st.maxActive)
	st.mu.Unlock()
}

func TestOnRemoteSnapshot_DoesNotOverwriteDirtyBuffer(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	require.NoError(t, s.Select(context.Background(), "A"))

	s.Edit(model.FieldContent, "local")
	remote := noteA()
	remote.Content = "remote"
	s.OnRemoteSnapshot([]model.Note{remote})

	_, f, _ := s.Current()
	require.Equal(t, "local", f.Content)
	require.Equal(t, "remote", s.Snapshot()[0].Content)
}

func TestOnRemoteSnapshot_ReloadsCleanBuffer(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	require.NoError(t, s.Select(context.Background(), "A"))

	remote := noteA()
	remote.Content = "from another tab"
	s.OnRemoteSnapshot([]model.Note{remote})

	_, f, _ := s.Current()
	require.Equal(t, "from another tab", f.Content)
	require.False(t, s.Dirty())
}

func TestOnRemoteSnapshot_StaleListAfterFlushKeepsSavedText(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))

	s.Edit(model.FieldContent, "abc")
	require.NoError(t, s.Flush(ctx))
	require.False(t, s.Dirty())

	// read before the write committed
	st.pushList(noteA())
	_, f, _ := s.Current()
	require.Equal(t, "abc", f.Content)
	require.Equal(t, "abc", s.Snapshot()[0].Content)

	s.Edit(model.FieldTitle, "T2")
	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 2, st.updateCount())
	require.Equal(t, model.NoteFields{Title: "T2", Content: "abc", Subject: "Biology"}, st.lastUpdate().fields)

	// once the feed catches up, later remote changes load again
	st.push()
	remote := st.notes[0]
	remote.Content = "from another tab"
	remote.UpdatedAt = remote.UpdatedAt.Add(time.Second)
	st.pushList(remote)
	_, f, _ = s.Current()
	require.Equal(t, "from another tab", f.Content)
}

func TestOnRemoteSnapshot_OpenNoteRemovedClearsSession(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st, WithDebounce(shortDebounce))
	require.NoError(t, s.Select(context.Background(), "A"))
	s.Edit(model.FieldContent, "doomed")

	s.OnRemoteSnapshot([]model.Note{noteB()})
	_, _, ok := s.Current()
	require.False(t, ok)
	require.False(t, s.Dirty())

	time.Sleep(3 * shortDebounce)
	require.Zero(t, st.updateCount(), "cleared session must not flush")
}

func TestDelete_OpenNoteNeverFlushesAfterwards(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st, WithDebounce(shortDebounce))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "typing")

	require.NoError(t, s.Delete(ctx, "A"))
	_, _, ok := s.Current()
	require.False(t, ok)

	time.Sleep(3 * shortDebounce)
	require.Zero(t, st.updateCount())
	require.Equal(t, []string{"A"}, st.deletes)
}

func TestDelete_OtherNoteKeepsOpenBuffer(t *testing.T) {
	st := newFakeStore(noteA(), noteB())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "keep")

	require.NoError(t, s.Delete(ctx, "B"))
	id, f, _ := s.Current()
	require.Equal(t, "A", id)
	require.Equal(t, "keep", f.Content)
	require.True(t, s.Dirty())
}

func TestDelete_FailureRearmsTimer(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(shortDebounce))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "survivor")

	st.mu.Lock()
	st.deleteErr = errs.ErrStore
	st.mu.Unlock()
	require.ErrorIs(t, s.Delete(ctx, "A"), errs.ErrStore)

	require.Eventually(t, func() bool { return st.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, "survivor", st.lastUpdate().fields.Content)
}

func TestCreate_EditThenAutosave(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(shortDebounce))
	ctx := context.Background()

	n, err := s.Create(ctx, model.NoteFields{})
	require.NoError(t, err)
	require.Equal(t, model.DefaultTitle, n.Title)
	require.Equal(t, model.DefaultSubject, n.Subject)

	id, _, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, n.ID, id)
	require.Equal(t, n.ID, s.Snapshot()[0].ID)

	s.Edit(model.FieldContent, "abc")
	require.Eventually(t, func() bool { return st.updateCount() == 1 }, time.Second, 5*time.Millisecond)
	require.Equal(t, n.ID, st.lastUpdate().noteID)
	require.Equal(t, "abc", st.lastUpdate().fields.Content)

	// the subscription echo must not duplicate the merged note
	st.push()
	require.Len(t, s.Snapshot(), 2)
}

func TestCreate_StaleListKeepsNewNoteOpen(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()

	n, err := s.Create(ctx, model.NoteFields{Title: "Fresh"})
	require.NoError(t, err)
	s.Edit(model.FieldContent, "typed")

	// loaded before the insert
	st.pushList(noteA())
	id, f, ok := s.Current()
	require.True(t, ok)
	require.Equal(t, n.ID, id)
	require.Equal(t, "typed", f.Content)
	require.True(t, s.Dirty())
	require.Len(t, s.Snapshot(), 2)

	require.NoError(t, s.Flush(ctx))
	require.Equal(t, 1, st.updateCount())
	require.Equal(t, "typed", st.lastUpdate().fields.Content)

	// seen once, a later list without it means it was deleted elsewhere
	st.push()
	st.pushList(noteA())
	_, _, ok = s.Current()
	require.False(t, ok)
}

func TestCreate_FailureLeavesStateAlone(t *testing.T) {
	st := newFakeStore(noteA())
	st.createErr = errs.ErrStore
	s := openSession(t, st, WithDebounce(never))

	_, err := s.Create(context.Background(), model.NoteFields{Title: "x"})
	require.ErrorIs(t, err, errs.ErrStore)
	require.Len(t, s.Snapshot(), 1)
	_, _, ok := s.Current()
	require.False(t, ok)
}

func TestShutdown_FlushesThenUnsubscribes(t *testing.T) {
	st := newFakeStore(noteA())
	s, err := Open(context.Background(), st, "u1", WithDebounce(never))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "last words")

	require.NoError(t, s.Shutdown(ctx))
	require.Equal(t, 1, st.updateCount())
	require.Equal(t, "last words", st.lastUpdate().fields.Content)
	require.True(t, st.unsubbed)

	require.ErrorIs(t, s.Flush(ctx), errs.ErrSessionClosed)
	require.ErrorIs(t, s.Select(ctx, "A"), errs.ErrSessionClosed)
	require.ErrorIs(t, s.Delete(ctx, "A"), errs.ErrSessionClosed)
	_, err = s.Create(ctx, model.NoteFields{})
	require.ErrorIs(t, err, errs.ErrSessionClosed)
	require.NoError(t, s.Shutdown(ctx))

	// late pushes are ignored
	s.OnRemoteSnapshot(nil)
	require.Len(t, s.Snapshot(), 1)
}

func TestShutdown_FailedFlushKeepsSessionOpen(t *testing.T) {
	st := newFakeStore(noteA())
	s := openSession(t, st, WithDebounce(never))
	ctx := context.Background()
	require.NoError(t, s.Select(ctx, "A"))
	s.Edit(model.FieldContent, "pending")
	st.setUpdateErr(errs.ErrStore)

	require.ErrorIs(t, s.Shutdown(ctx), errs.ErrStore)
	require.False(t, st.unsubbed)
	require.True(t, s.Dirty())

	st.setUpdateErr(nil)
	require.NoError(t, s.Shutdown(ctx))
	require.True(t, st.unsubbed)
}

func TestChangeHandler_Fires(t *testing.T) {
	st := newFakeStore(noteA())
	var n atomic.Int32
	s := openSession(t, st, WithDebounce(never), WithChangeHandler(func() { n.Add(1) }))
	before := n.Load()

	require.NoError(t, s.Select(context.Background(), "A"))
	s.Edit(model.FieldTitle, "t")
	require.Greater(t, n.Load(), before+1)
}
