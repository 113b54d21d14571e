package app_test

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	qt "github.com/frankban/quicktest"

	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/service"
	"github.com/go-ports/notevault/internal/ui"
	"github.com/go-ports/notevault/internal/ui/app"
	"github.com/go-ports/notevault/internal/ui/listview"
)

func newService(c *qt.C) *service.Service {
	svc, err := service.New(c.TempDir())
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestApp_Navigation(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)
	n, err := svc.Create(context.Background(), models.NoteFields{Title: "Plan", Content: "step one"})
	c.Assert(err, qt.IsNil)

	m := app.New(context.Background(), svc, listview.Options{})
	defer m.Close()
	m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	c.Assert(m.View(), qt.Contains, "Notes")

	m.Update(ui.OpenEditorMsg{Note: *n})
	c.Assert(m.Editing(), qt.IsTrue)
	c.Assert(m.View(), qt.Contains, "Plan")
	c.Assert(m.View(), qt.Contains, "step one")

	// Typing goes to the editor and is saved through the service.
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("!")})
	c.Assert(cmd, qt.IsNotNil)
	deliver(m, cmd)

	got, err := svc.Get(context.Background(), n.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, "Plan!")
	c.Assert(got.Revision, qt.Equals, int64(1))

	ed, ok := m.Editor()
	c.Assert(ok, qt.IsTrue)
	c.Assert(ed.Title(), qt.Equals, "Plan")
	c.Assert(ed.Status(), qt.Matches, `Saved .*`)

	m.Update(ui.BackMsg{})
	c.Assert(m.Editing(), qt.IsFalse)
}

func TestApp_QuitClosesQuery(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)

	m := app.New(context.Background(), svc, listview.Options{})
	c.Assert(svc.Hub().Subscribers(), qt.Equals, 1)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	c.Assert(cmd(), qt.Equals, tea.Msg(tea.QuitMsg{}))
	c.Assert(svc.Hub().Subscribers(), qt.Equals, 0)
}

// slowStore holds every update until release is closed.
type slowStore struct {
	*service.Service
	entered chan struct{}
	release chan struct{}
}

func (s *slowStore) Update(ctx context.Context, in models.UpdateInput) (*models.UpdateResult, error) {
	close(s.entered)
	<-s.release
	return s.Service.Update(ctx, in)
}

func TestApp_QuitWaitsForInFlightSave(t *testing.T) {
	c := qt.New(t)
	svc := newService(c)
	n, err := svc.Create(context.Background(), models.NoteFields{Title: "a"})
	c.Assert(err, qt.IsNil)
	store := &slowStore{Service: svc, entered: make(chan struct{}), release: make(chan struct{})}

	m := app.New(context.Background(), store, listview.Options{})
	m.Update(ui.OpenEditorMsg{Note: *n})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("b")})
	spawn(cmd)
	select {
	case <-store.entered:
	case <-time.After(time.Second):
		c.Fatal("save never reached the store")
	}

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	quitted := make(chan tea.Msg, 1)
	go func() { quitted <- quit() }()
	select {
	case <-quitted:
		c.Fatal("quit before the save finished")
	case <-time.After(50 * time.Millisecond):
	}

	// Keys pressed while quitting are ignored.
	_, again := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	c.Assert(again, qt.IsNil)

	close(store.release)
	select {
	case msg := <-quitted:
		c.Assert(msg, qt.Equals, tea.Msg(tea.QuitMsg{}))
	case <-time.After(time.Second):
		c.Fatal("quit did not follow the save")
	}
	got, err := svc.Get(context.Background(), n.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Title, qt.Equals, "ab")
}

// spawn runs cmd and every command it batches in the background, discarding
// the messages.
func spawn(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	go func() {
		if batch, ok := cmd().(tea.BatchMsg); ok {
			for _, next := range batch {
				spawn(next)
			}
		}
	}()
}

// deliver runs cmd with a timeout per command and feeds store replies back
// into m. Blink ticks are dropped so the loop ends.
func deliver(m *app.Model, cmd tea.Cmd) {
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if next == nil {
			continue
		}
		done := make(chan tea.Msg, 1)
		go func() { done <- next() }()
		var msg tea.Msg
		select {
		case msg = <-done:
		case <-time.After(time.Second):
			continue
		}
		if batch, ok := msg.(tea.BatchMsg); ok {
			queue = append(queue, batch...)
			continue
		}
		if msg == nil {
			continue
		}
		if _, isKey := msg.(tea.KeyMsg); isKey {
			continue
		}
		_, more := m.Update(msg)
		if _, isSnapshot := msg.(listview.SnapshotMsg); isSnapshot {
			// The list re-arms its wait; do not block on it.
			continue
		}
		queue = append(queue, more)
	}
}
