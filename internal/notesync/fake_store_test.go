package notesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/and161185/smartnotes/internal/errs"
	"github.com/and161185/smartnotes/internal/model"
)

type update struct {
	noteID string
	fields model.NoteFields
}

type fakeStore struct {
	mu       sync.Mutex
	notes    []model.Note
	updates  []update
	deletes  []string
	creates  int
	onChange func([]model.Note)
	unsubbed bool
	nextID   int

	subscribeErr error
	createErr    error
	updateErr    error
	deleteErr    error

	// when set, Update signals started and waits for release
	started chan struct{}
	release chan struct{}

	active    int
	maxActive int
}

var _ Store = (*fakeStore)(nil)

func newFakeStore(notes ...model.Note) *fakeStore {
	return &fakeStore{notes: notes}
}

func (f *fakeStore) Subscribe(_ context.Context, _ string, onChange func([]model.Note)) (func(), error) {
	f.mu.Lock()
	if f.subscribeErr != nil {
		f.mu.Unlock()
		return nil, f.subscribeErr
	}
	f.onChange = onChange
	notes := append([]model.Note(nil), f.notes...)
	f.mu.Unlock()
	onChange(notes)
	return func() {
		f.mu.Lock()
		f.unsubbed = true
		f.onChange = nil
		f.mu.Unlock()
	}, nil
}

func (f *fakeStore) Create(_ context.Context, userID string, nf model.NoteFields) (model.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Note{}, f.createErr
	}
	f.creates++
	f.nextID++
	now := time.Now()
	n := model.Note{ID: fmt.Sprintf("new-%d", f.nextID), UserID: userID, Title: nf.Title, Content: nf.Content, Subject: nf.Subject, CreatedAt: now, UpdatedAt: now}
	f.notes = append([]model.Note{n}, f.notes...)
	return n, nil
}

func (f *fakeStore) Update(_ context.Context, _, noteID string, nf model.NoteFields) (model.Note, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	f.updates = append(f.updates, update{noteID: noteID, fields: nf})
	if f.updateErr != nil {
		return model.Note{}, f.updateErr
	}
	for i := range f.notes {
		if f.notes[i].ID == noteID {
			f.notes[i].Title, f.notes[i].Content, f.notes[i].Subject = nf.Title, nf.Content, nf.Subject
			f.notes[i].UpdatedAt = time.Now()
			return f.notes[i], nil
		}
	}
	return model.Note{}, errs.ErrNotFound
}

func (f *fakeStore) Delete(_ context.Context, _, noteID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, noteID)
	for i := range f.notes {
		if f.notes[i].ID == noteID {
			f.notes = append(f.notes[:i], f.notes[i+1:]...)
			return nil
		}
	}
	return errs.ErrNotFound
}

// pushList delivers notes as if read by a load that started before the latest writes.
func (f *fakeStore) pushList(notes ...model.Note) {
	f.mu.Lock()
	fn := f.onChange
	f.mu.Unlock()
	if fn != nil {
		fn(notes)
	}
}

// push delivers the store's current list to the subscriber.
func (f *fakeStore) push() {
	f.mu.Lock()
	fn := f.onChange
	notes := append([]model.Note(nil), f.notes...)
	f.mu.Unlock()
	if fn != nil {
		fn(notes)
	}
}

func (f *fakeStore) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeStore) lastUpdate() update {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates[len(f.updates)-1]
}

func (f *fakeStore) setUpdateErr(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}
