// Package editview is the note editor screen. Every change is saved
// immediately; there is no explicit save action.
package editview

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/ui"
)

// Store is what the editor needs from the note service.
type Store interface {
	Update(ctx context.Context, in models.UpdateInput) (*models.UpdateResult, error)
	Delete(ctx context.Context, id string) error
}

// State is the editor lifecycle.
type State int

const (
	Editing State = iota
	Deleted       // terminal
)

type field int

const (
	titleField field = iota
	contentField
)

// sessions tags messages with the editor instance that issued them so a
// reply cannot land in a later editor.
var sessions atomic.Uint64

type savedMsg struct {
	session  uint64
	revision int64
	result   *models.UpdateResult
	err      error
}

type deletedMsg struct {
	session uint64
	err     error
}

// Model is the editor screen for a single note.
type Model struct {
	ctx     context.Context
	store   Store
	keys    ui.EditKeyMap
	session uint64

	id          string
	screenTitle string // fixed at mount

	title   textinput.Model
	content textarea.Model
	color   string
	focus   field

	// sent is the revision of the newest update issued; acked is the newest
	// one the store confirmed.
	sent  int64
	acked int64

	savedAt  time.Time
	notice   string
	state    State
	deleting bool
}

// New returns an editor initialised from the snapshot n. The editor never
// reads the store; n is its only source of the note's identity and fields.
func New(ctx context.Context, store Store, n models.Note) Model {
	ti := textinput.New()
	ti.Placeholder = "Title"
	ti.Prompt = ""
	ti.SetValue(n.Title)
	ti.Focus()

	ta := textarea.New()
	ta.Placeholder = "Note"
	ta.ShowLineNumbers = false
	ta.SetValue(n.Content)
	ta.Blur()

	screenTitle := n.Title
	if strings.TrimSpace(screenTitle) == "" {
		screenTitle = "New note"
	}
	return Model{
		ctx:         ctx,
		store:       store,
		keys:        ui.DefaultEditKeyMap(),
		session:     sessions.Add(1),
		id:          n.ID,
		screenTitle: screenTitle,
		title:       ti,
		content:     ta,
		color:       n.Color,
		sent:        n.Revision,
		acked:       n.Revision,
	}
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Title is the screen title. It is the note's title when the editor opened
// and does not follow later edits.
func (m Model) Title() string { return m.screenTitle }

// KeyMap returns the screen's bindings for the help footer.
func (m Model) KeyMap() ui.EditKeyMap { return m.keys }

// State reports the editor lifecycle state.
func (m Model) State() State { return m.state }

// Notice returns the inline error notice, if any.
func (m Model) Notice() string { return m.notice }

// Status returns the save confirmation line, or "" before the first save.
func (m Model) Status() string {
	if m.savedAt.IsZero() {
		return ""
	}
	return models.FormatSavedAt(m.savedAt)
}

// Fields returns the current field values.
func (m Model) Fields() models.NoteFields {
	return models.NoteFields{
		Title:   m.title.Value(),
		Content: m.content.Value(),
		Color:   m.color,
	}
}

// Revision returns the revision of the newest update issued.
func (m Model) Revision() int64 { return m.sent }

// Update handles editing keys and store replies.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.state == Deleted {
		return m, nil
	}
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.title.Width = max(msg.Width-4, 10)
		m.content.SetWidth(max(msg.Width-2, 10))
		m.content.SetHeight(max(msg.Height-10, 3))
		return m, nil

	case savedMsg:
		if msg.session != m.session {
			return m, nil
		}
		return m.handleSaved(msg)

	case deletedMsg:
		if msg.session != m.session {
			return m, nil
		}
		m.deleting = false
		if msg.err != nil {
			m.notice = "Couldn't delete note: " + causeText(msg.err, models.ErrDeleteFailed)
			return m, nil
		}
		m.state = Deleted
		return m, func() tea.Msg { return ui.BackMsg{} }

	case tea.KeyMsg:
		if m.deleting {
			return m, nil
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return ui.BackMsg{} }
	case key.Matches(msg, m.keys.Delete):
		m.deleting = true
		return m, m.remove()
	case key.Matches(msg, m.keys.NextField):
		m.toggleFocus()
		return m, nil
	case key.Matches(msg, m.keys.Color):
		m.color = models.NextColor(m.color)
		return m, m.save()
	}

	before := m.Fields()
	var cmd tea.Cmd
	if m.focus == titleField {
		m.title, cmd = m.title.Update(msg)
	} else {
		m.content, cmd = m.content.Update(msg)
	}
	if m.Fields() != before {
		return m, tea.Batch(cmd, m.save())
	}
	return m, cmd
}

func (m *Model) toggleFocus() {
	if m.focus == titleField {
		m.focus = contentField
		m.title.Blur()
		m.content.Focus()
		return
	}
	m.focus = titleField
	m.content.Blur()
	m.title.Focus()
}

// save issues an update carrying the full field set and the next revision.
func (m *Model) save() tea.Cmd {
	m.sent++
	in := models.UpdateInput{
		ID:       m.id,
		Title:    m.title.Value(),
		Content:  m.content.Value(),
		Color:    m.color,
		Revision: m.sent,
	}
	ctx, store, session := m.ctx, m.store, m.session
	return func() tea.Msg {
		res, err := store.Update(ctx, in)
		return savedMsg{session: session, revision: in.Revision, result: res, err: err}
	}
}

func (m Model) handleSaved(msg savedMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		if msg.revision >= m.acked {
			m.notice = "Couldn't save: " + causeText(msg.err, models.ErrUpdateFailed)
		}
		return m, nil
	}
	res := msg.result
	if res.Applied {
		if msg.revision > m.acked {
			m.acked = msg.revision
			m.savedAt = res.SavedAt
			m.notice = ""
		}
		return m, nil
	}
	// Rejected as stale. A stored revision below sent means a newer update
	// from this editor is still in flight and will settle it. Otherwise
	// nothing newer of ours is coming: continue numbering after the stored
	// note and resend what is on screen if the store holds something else.
	if res.Note == nil || res.Note.Revision < m.sent {
		return m, nil
	}
	m.sent = res.Note.Revision
	if storedFields(res.Note) != m.Fields() {
		return m, m.save()
	}
	return m, nil
}

func storedFields(n *models.Note) models.NoteFields {
	return models.NoteFields{Title: n.Title, Content: n.Content, Color: n.Color}
}

func (m Model) remove() tea.Cmd {
	ctx, store, session, id := m.ctx, m.store, m.session, m.id
	return func() tea.Msg {
		return deletedMsg{session: session, err: store.Delete(ctx, id)}
	}
}

// causeText strips the taxonomy prefix so notices read naturally.
func causeText(err error, sentinel error) string {
	s := err.Error()
	if errors.Is(err, sentinel) {
		if i := strings.LastIndex(s, sentinel.Error()+": "); i >= 0 {
			return s[i+len(sentinel.Error())+2:]
		}
	}
	return s
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// View renders the fields, the color swatch and the save status.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(ui.Label.Render("Title"))
	b.WriteString("\n")
	b.WriteString(m.title.View())
	b.WriteString("\n\n")
	b.WriteString(m.content.View())
	b.WriteString("\n\n")
	b.WriteString(ui.Label.Render("Color "))
	b.WriteString(ui.Swatch(m.color))
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(ui.Notice.Render(m.notice))
		b.WriteString("\n")
	}
	if s := m.Status(); s != "" {
		b.WriteString(ui.Status.Render(s))
		b.WriteString("\n")
	}
	return b.String()
}
