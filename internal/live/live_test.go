package live_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/live"
	"github.com/go-ports/notevault/internal/models"
)

// fakeStore is an in-memory FetchFunc target.
type fakeStore struct {
	mu    sync.Mutex
	notes []models.Note
	err   error
	calls int
}

func (f *fakeStore) set(notes ...models.Note) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notes = notes
}

func (f *fakeStore) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) fetch(_ context.Context, query string) ([]models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Note
	for _, n := range f.notes {
		if query == "" || n.Title == query {
			out = append(out, n)
		}
	}
	return out, nil
}

// next waits for the next snapshot or fails the test after a timeout.
func next(c *qt.C, q *live.Query) live.Snapshot {
	c.Helper()
	select {
	case s, ok := <-q.Updates():
		c.Assert(ok, qt.IsTrue, qt.Commentf("updates channel closed"))
		return s
	case <-time.After(2 * time.Second):
		c.Fatal("timed out waiting for snapshot")
	}
	return live.Snapshot{}
}

// ---------------------------------------------------------------------------
// Hub
// ---------------------------------------------------------------------------

func TestHub_PublishSubscribe(t *testing.T) {
	c := qt.New(t)
	h := live.NewHub()

	ch, cancel := h.Subscribe()
	c.Assert(h.Subscribers(), qt.Equals, 1)

	h.Publish(live.Event{Type: live.EventCreate, ID: "a"})
	h.Publish(live.Event{Type: live.EventUpdate, ID: "a"}) // dropped: one already pending

	ev := <-ch
	c.Assert(ev, qt.Equals, live.Event{Type: live.EventCreate, ID: "a"})
	select {
	case ev := <-ch:
		c.Fatalf("unexpected extra event %v", ev)
	default:
	}

	cancel()
	cancel()
	c.Assert(h.Subscribers(), qt.Equals, 0)
	_, ok := <-ch
	c.Assert(ok, qt.IsFalse)
}

func TestHub_Close(t *testing.T) {
	c := qt.New(t)
	h := live.NewHub()
	ch, cancel := h.Subscribe()
	h.Close()
	_, ok := <-ch
	c.Assert(ok, qt.IsFalse)
	cancel()

	late, _ := h.Subscribe()
	_, ok = <-late
	c.Assert(ok, qt.IsFalse)
}

// ---------------------------------------------------------------------------
// Query
// ---------------------------------------------------------------------------

func TestQuery_EmitsInitialAndOnChange(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}
	store.set(models.Note{ID: "1", Title: "a"})

	q := live.NewQuery(context.Background(), hub, store.fetch, "")
	defer q.Close()

	s := next(c, q)
	c.Assert(s.Err, qt.IsNil)
	c.Assert(s.Notes, qt.HasLen, 1)
	c.Assert(s.Seq, qt.Equals, uint64(1))

	store.set(models.Note{ID: "1", Title: "a"}, models.Note{ID: "2", Title: "b"})
	hub.Publish(live.Event{Type: live.EventCreate, ID: "2"})

	s = next(c, q)
	c.Assert(s.Notes, qt.HasLen, 2)
	c.Assert(s.Seq > 1, qt.IsTrue)
}

func TestQuery_SetQuery(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}
	store.set(models.Note{ID: "1", Title: "a"}, models.Note{ID: "2", Title: "b"})

	q := live.NewQuery(context.Background(), hub, store.fetch, "")
	defer q.Close()
	c.Assert(next(c, q).Notes, qt.HasLen, 2)

	q.SetQuery("b")
	c.Assert(q.Text(), qt.Equals, "b")
	s := next(c, q)
	c.Assert(s.Query, qt.Equals, "b")
	c.Assert(s.Notes, qt.HasLen, 1)
	c.Assert(s.Notes[0].ID, qt.Equals, "2")
}

func TestQuery_FetchError(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}
	boom := errors.New("boom")
	store.fail(boom)

	q := live.NewQuery(context.Background(), hub, store.fetch, "x")
	defer q.Close()

	s := next(c, q)
	c.Assert(errors.Is(s.Err, boom), qt.IsTrue)
	c.Assert(s.Notes, qt.IsNil)
}

func TestQuery_CoalescesSlowConsumer(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}

	q := live.NewQuery(context.Background(), hub, store.fetch, "")
	defer q.Close()
	first := next(c, q)

	for range 20 {
		hub.Publish(live.Event{Type: live.EventUpdate})
		time.Sleep(time.Millisecond)
	}
	// Let the worker settle, then only the newest snapshot is buffered.
	time.Sleep(50 * time.Millisecond)
	last := next(c, q)
	c.Assert(last.Seq > first.Seq, qt.IsTrue)
	select {
	case s := <-q.Updates():
		c.Fatalf("expected a single buffered snapshot, got another with seq %d", s.Seq)
	default:
	}
}

func TestQuery_CloseUnsubscribes(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}

	q := live.NewQuery(context.Background(), hub, store.fetch, "")
	next(c, q)
	c.Assert(hub.Subscribers(), qt.Equals, 1)

	c.Assert(q.Close(), qt.IsNil)
	c.Assert(q.Close(), qt.IsNil)
	c.Assert(hub.Subscribers(), qt.Equals, 0)

	_, ok := <-q.Updates()
	c.Assert(ok, qt.IsFalse)

	// Publishing after close must not panic or refetch.
	store.mu.Lock()
	before := store.calls
	store.mu.Unlock()
	hub.Publish(live.Event{Type: live.EventDelete, ID: "1"})
	time.Sleep(20 * time.Millisecond)
	store.mu.Lock()
	c.Assert(store.calls, qt.Equals, before)
	store.mu.Unlock()
}

func TestQuery_ContextCancel(t *testing.T) {
	c := qt.New(t)
	hub := live.NewHub()
	store := &fakeStore{}
	ctx, cancel := context.WithCancel(context.Background())

	q := live.NewQuery(ctx, hub, store.fetch, "")
	next(c, q)
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-q.Updates():
			if !ok {
				c.Assert(hub.Subscribers(), qt.Equals, 0)
				return
			}
		case <-deadline:
			c.Fatal("updates not closed after cancel")
		}
	}
}

// ---------------------------------------------------------------------------
// Watcher
// ---------------------------------------------------------------------------

func TestWatcher_PublishesExternal(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "notes.db")
	c.Assert(os.WriteFile(dbPath, nil, 0o600), qt.IsNil)

	hub := live.NewHub()
	events, cancel := hub.Subscribe()
	defer cancel()

	w, err := live.NewWatcher(dbPath, hub, 20*time.Millisecond)
	c.Assert(err, qt.IsNil)
	defer w.Close()

	c.Assert(os.WriteFile(filepath.Join(dir, "unrelated.txt"), []byte("x"), 0o600), qt.IsNil)
	c.Assert(os.WriteFile(dbPath+"-wal", []byte("x"), 0o600), qt.IsNil)

	select {
	case ev := <-events:
		c.Assert(ev.Type, qt.Equals, live.EventExternal)
	case <-time.After(2 * time.Second):
		c.Fatal("no external event")
	}

	c.Assert(w.Close(), qt.IsNil)
	c.Assert(w.Close(), qt.IsNil)
}
