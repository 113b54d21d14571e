package listview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/live"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/ui"
)

// fakeStore serves live queries from an in-memory slice.
type fakeStore struct {
	hub *live.Hub

	mu        sync.Mutex
	notes     []models.Note
	queryErr  error
	createErr error
	created   []models.NoteFields
}

func newFakeStore(notes ...models.Note) *fakeStore {
	return &fakeStore{hub: live.NewHub(), notes: notes}
}

func (f *fakeStore) Watch(ctx context.Context, query string) *live.Query {
	return live.NewQuery(ctx, f.hub, func(_ context.Context, q string) ([]models.Note, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.queryErr != nil {
			return nil, f.queryErr
		}
		var out []models.Note
		for _, n := range f.notes {
			if strings.Contains(strings.ToLower(n.Title+" "+n.Content), strings.ToLower(q)) {
				out = append(out, n)
			}
		}
		return out, nil
	}, query)
}

func (f *fakeStore) Create(_ context.Context, fields models.NoteFields) (*models.Note, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, fields)
	n := models.NewNote(fields)
	f.notes = append([]models.Note{*n}, f.notes...)
	f.hub.Publish(live.Event{Type: live.EventCreate, ID: n.ID})
	return n, nil
}

func newModel(c *qt.C, store *fakeStore, opts Options) Model {
	m := New(context.Background(), store, opts)
	c.Cleanup(func() { _ = m.Close() })
	return m
}

// pump delivers the next snapshot to m.
func pump(c *qt.C, m Model) Model {
	c.Helper()
	done := make(chan tea.Msg, 1)
	go func() { done <- waitForSnapshot(m.query)() }()
	select {
	case msg := <-done:
		m, _ = m.Update(msg)
		return m
	case <-time.After(2 * time.Second):
		c.Fatal("timed out waiting for snapshot")
	}
	return m
}

func typeText(m Model, s string) Model {
	for _, r := range s {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func notes() []models.Note {
	now := time.Now()
	return []models.Note{
		{ID: "1", Title: "Groceries", Content: "milk\neggs", Color: "yellow", UpdatedAt: now},
		{ID: "2", Title: "Trip", Content: "book train", UpdatedAt: now.Add(-time.Hour)},
	}
}

func TestList_ShowsInitialResults(t *testing.T) {
	c := qt.New(t)
	m := newModel(c, newFakeStore(notes()...), Options{})

	c.Assert(m.View(), qt.Contains, "Loading")
	m = pump(c, m)

	c.Assert(m.Notes(), qt.HasLen, 2)
	view := m.View()
	c.Assert(view, qt.Contains, "Groceries")
	c.Assert(view, qt.Contains, "milk")
	c.Assert(view, qt.Contains, "edited")
}

func TestList_TypingUpdatesQuery(t *testing.T) {
	c := qt.New(t)
	m := newModel(c, newFakeStore(notes()...), Options{})
	m = pump(c, m)

	m = typeText(m, "train")
	c.Assert(m.query.Text(), qt.Equals, "train")

	// Snapshots for intermediate text are skipped until the current one lands.
	for m.seq == 0 || len(m.Notes()) != 1 {
		m = pump(c, m)
	}
	c.Assert(m.Notes()[0].ID, qt.Equals, "2")

	m = typeText(m, "zzz")
	for len(m.Notes()) != 0 {
		m = pump(c, m)
	}
	c.Assert(m.View(), qt.Contains, `No notes match "trainzzz"`)
}

func TestList_ReactsToStoreChanges(t *testing.T) {
	c := qt.New(t)
	store := newFakeStore()
	m := newModel(c, store, Options{})
	m = pump(c, m)
	c.Assert(m.View(), qt.Contains, "No notes yet")

	_, err := store.Create(context.Background(), models.NoteFields{Title: "Fresh"})
	c.Assert(err, qt.IsNil)
	m = pump(c, m)
	c.Assert(m.Notes(), qt.HasLen, 1)
	c.Assert(m.Notes()[0].Title, qt.Equals, "Fresh")
}

func TestList_QueryFailedKeepsResults(t *testing.T) {
	c := qt.New(t)
	store := newFakeStore(notes()...)
	m := newModel(c, store, Options{})
	m = pump(c, m)

	store.mu.Lock()
	store.queryErr = fmt.Errorf("Search: %w: %w", models.ErrQueryFailed, errors.New("disk I/O error"))
	store.mu.Unlock()
	store.hub.Publish(live.Event{Type: live.EventExternal})
	m = pump(c, m)

	c.Assert(m.Notice(), qt.Equals, "Couldn't load notes: disk I/O error")
	c.Assert(m.Notes(), qt.HasLen, 2)

	store.mu.Lock()
	store.queryErr = nil
	store.mu.Unlock()
	store.hub.Publish(live.Event{Type: live.EventExternal})
	m = pump(c, m)
	c.Assert(m.Notice(), qt.Equals, "")
}

func TestList_IgnoresStaleSnapshots(t *testing.T) {
	c := qt.New(t)
	m := newModel(c, newFakeStore(notes()...), Options{})
	m = pump(c, m)
	seq := m.seq

	m, _ = m.Update(SnapshotMsg{Snapshot: live.Snapshot{Seq: seq, Notes: nil}})
	c.Assert(m.Notes(), qt.HasLen, 2)

	m, _ = m.Update(SnapshotMsg{Snapshot: live.Snapshot{Query: "other", Seq: seq + 10}})
	c.Assert(m.Notes(), qt.HasLen, 2)
}

func TestList_SelectOpensEditor(t *testing.T) {
	c := qt.New(t)
	m := newModel(c, newFakeStore(notes()...), Options{})
	m = pump(c, m)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	sel, ok := m.Selected()
	c.Assert(ok, qt.IsTrue)
	c.Assert(sel.ID, qt.Equals, "2")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	c.Assert(cmd, qt.IsNotNil)
	open, ok := cmd().(ui.OpenEditorMsg)
	c.Assert(ok, qt.IsTrue)
	c.Assert(open.Note.ID, qt.Equals, "2")
	c.Assert(open.Note.Title, qt.Equals, "Trip")
}

func TestList_CreateOpensEditorWithNewNote(t *testing.T) {
	c := qt.New(t)
	store := newFakeStore()
	m := newModel(c, store, Options{DefaultColor: "green"})
	m = pump(c, m)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	c.Assert(cmd, qt.IsNotNil)
	m, cmd = m.Update(cmd())
	c.Assert(cmd, qt.IsNotNil)

	open, ok := cmd().(ui.OpenEditorMsg)
	c.Assert(ok, qt.IsTrue)
	c.Assert(open.Note.ID, qt.Not(qt.Equals), "")
	c.Assert(open.Note.Title, qt.Equals, "")
	c.Assert(open.Note.Color, qt.Equals, "green")
	c.Assert(store.created, qt.DeepEquals, []models.NoteFields{{Color: "green"}})
	c.Assert(m.Notice(), qt.Equals, "")
}

func TestList_CreateFailedShowsNotice(t *testing.T) {
	c := qt.New(t)
	store := newFakeStore()
	store.createErr = fmt.Errorf("Create: %w: %w", models.ErrCreateFailed, errors.New("database is locked"))
	m := newModel(c, store, Options{})
	m = pump(c, m)

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlN})
	m, cmd = m.Update(cmd())
	c.Assert(cmd, qt.IsNil)
	c.Assert(m.Notice(), qt.Equals, "Couldn't create note: database is locked")
	c.Assert(m.View(), qt.Contains, "database is locked")
}

func TestList_CloseEndsQuery(t *testing.T) {
	c := qt.New(t)
	store := newFakeStore()
	m := New(context.Background(), store, Options{})
	m = pump(c, m)

	c.Assert(store.hub.Subscribers(), qt.Equals, 1)
	c.Assert(m.Close(), qt.IsNil)
	c.Assert(store.hub.Subscribers(), qt.Equals, 0)
	c.Assert(waitForSnapshot(m.query)(), qt.Equals, tea.Msg(queryClosedMsg{}))
}

func TestList_CustomDateFormat(t *testing.T) {
	c := qt.New(t)
	n := models.Note{ID: "1", Title: "Dated", UpdatedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)}
	m := newModel(c, newFakeStore(n), Options{DateFormat: "2006-01-02"})
	m = pump(c, m)
	c.Assert(m.View(), qt.Contains, "edited 2024-05-01")
}

func TestExcerpt(t *testing.T) {
	c := qt.New(t)
	c.Assert(excerpt("\n  \n first \nsecond"), qt.Equals, "first")
	c.Assert(excerpt(""), qt.Equals, "")
}
