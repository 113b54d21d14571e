// Package listview is the list/search screen: a live search field over the
// notes with a card per result.
package listview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/go-ports/notevault/internal/live"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/ui"
)

// Store is what the list screen needs from the note service.
type Store interface {
	Watch(ctx context.Context, query string) *live.Query
	Create(ctx context.Context, f models.NoteFields) (*models.Note, error)
}

// Options configure a list screen.
type Options struct {
	DefaultColor string // color given to notes created here
	DateFormat   string // "relative" or a Go time layout
}

// SnapshotMsg delivers a live query result to the screen.
type SnapshotMsg struct {
	Snapshot live.Snapshot
}

type queryClosedMsg struct{}

type createdMsg struct {
	note *models.Note
	err  error
}

type yankedMsg struct {
	err error
}

// Model is the list/search screen.
type Model struct {
	ctx   context.Context
	store Store
	opts  Options
	keys  ui.ListKeyMap

	query *live.Query
	input textinput.Model

	notes  []models.Note
	seq    uint64
	loaded bool
	cursor int

	notice string // inline, non-blocking
	status string

	width  int
	height int
}

// New registers a live query for the empty search and returns the screen.
// The caller must Close the screen to unsubscribe.
func New(ctx context.Context, store Store, opts Options) Model {
	in := textinput.New()
	in.Placeholder = "Search notes"
	in.Prompt = "/ "
	in.Focus()

	if opts.DateFormat == "" {
		opts.DateFormat = "relative"
	}
	return Model{
		ctx:   ctx,
		store: store,
		opts:  opts,
		keys:  ui.DefaultListKeyMap(),
		query: store.Watch(ctx, ""),
		input: in,
	}
}

// Init starts listening for snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForSnapshot(m.query))
}

// Close unsubscribes the live query. It is safe to call more than once.
func (m Model) Close() error {
	return m.query.Close()
}

// Title is shown in the app header.
func (m Model) Title() string { return "Notes" }

// KeyMap returns the screen's bindings for the help footer.
func (m Model) KeyMap() ui.ListKeyMap { return m.keys }

// Notes returns the currently displayed results.
func (m Model) Notes() []models.Note { return m.notes }

// Notice returns the inline error notice, if any.
func (m Model) Notice() string { return m.notice }

// Selected returns the highlighted note.
func (m Model) Selected() (models.Note, bool) {
	if m.cursor < 0 || m.cursor >= len(m.notes) {
		return models.Note{}, false
	}
	return m.notes[m.cursor], true
}

func waitForSnapshot(q *live.Query) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-q.Updates()
		if !ok {
			return queryClosedMsg{}
		}
		return SnapshotMsg{Snapshot: s}
	}
}

// Update handles input and query results.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case SnapshotMsg:
		m.applySnapshot(msg.Snapshot)
		return m, waitForSnapshot(m.query)

	case queryClosedMsg:
		return m, nil

	case createdMsg:
		if msg.err != nil {
			m.notice = "Couldn't create note: " + causeText(msg.err)
			return m, nil
		}
		m.notice = ""
		n := *msg.note
		return m, func() tea.Msg { return ui.OpenEditorMsg{Note: n} }

	case yankedMsg:
		if msg.err != nil {
			m.status = "Copy failed: " + msg.err.Error()
		} else {
			m.status = "Copied note content"
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) applySnapshot(s live.Snapshot) {
	if s.Seq <= m.seq || s.Query != m.query.Text() {
		return
	}
	m.seq = s.Seq
	if s.Err != nil {
		// Keep the previous results on screen.
		m.notice = "Couldn't load notes: " + causeText(s.Err)
		return
	}
	m.notice = ""
	m.loaded = true
	m.notes = s.Notes
	if m.cursor >= len(m.notes) {
		m.cursor = max(len(m.notes)-1, 0)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.notes)-1 {
			m.cursor++
		}
		return m, nil
	case key.Matches(msg, m.keys.Select):
		n, ok := m.Selected()
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg { return ui.OpenEditorMsg{Note: n} }
	case key.Matches(msg, m.keys.Create):
		return m, m.create()
	case key.Matches(msg, m.keys.Yank):
		return m, m.yank()
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if text := m.input.Value(); text != before {
		m.query.SetQuery(text)
		m.cursor = 0
		m.status = ""
	}
	return m, cmd
}

func (m Model) create() tea.Cmd {
	ctx, store := m.ctx, m.store
	fields := models.NoteFields{Color: m.opts.DefaultColor}
	return func() tea.Msg {
		n, err := store.Create(ctx, fields)
		return createdMsg{note: n, err: err}
	}
}

func (m Model) yank() tea.Cmd {
	n, ok := m.Selected()
	if !ok {
		return nil
	}
	return func() tea.Msg {
		return yankedMsg{err: clipboard.WriteAll(n.Content)}
	}
}

// causeText strips the taxonomy prefix so notices read naturally.
func causeText(err error) string {
	for _, sentinel := range []error{models.ErrQueryFailed, models.ErrCreateFailed} {
		if errors.Is(err, sentinel) {
			if i := strings.LastIndex(err.Error(), sentinel.Error()+": "); i >= 0 {
				return err.Error()[i+len(sentinel.Error())+2:]
			}
		}
	}
	return err.Error()
}

// ---------------------------------------------------------------------------
// View
// ---------------------------------------------------------------------------

// View renders the search field, notices and the result cards.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.input.View())
	b.WriteString("\n")
	if m.notice != "" {
		b.WriteString(ui.Notice.Render(m.notice))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(ui.Status.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	switch {
	case !m.loaded && m.notice == "":
		b.WriteString(ui.Muted.Render("Loading…"))
	case len(m.notes) == 0 && m.input.Value() != "":
		b.WriteString(ui.Muted.Render(fmt.Sprintf("No notes match %q", m.input.Value())))
	case len(m.notes) == 0:
		b.WriteString(ui.Muted.Render("No notes yet. Press ctrl+n to create one."))
	default:
		b.WriteString(m.renderCards())
	}
	return b.String()
}

// cardHeight is the rendered height of one card including border and margin.
const cardHeight = 5

func (m Model) renderCards() string {
	width := m.width
	if width <= 0 {
		width = 60
	}
	inner := max(width-4, 10)

	// Keep the cursor's card in view.
	visible := len(m.notes)
	if m.height > 0 {
		visible = max((m.height-4)/cardHeight, 1)
	}
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(m.notes))

	cards := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		n := m.notes[i]
		title := n.Title
		if strings.TrimSpace(title) == "" {
			title = "Untitled"
		}
		lines := []string{
			ui.Label.Render(runewidth.Truncate(title, inner, "…")),
			runewidth.Truncate(excerpt(n.Content), inner, "…"),
			ui.Muted.Render("edited " + m.formatTime(n.UpdatedAt)),
		}
		cards = append(cards, ui.Card(n.Color, i == m.cursor).Width(inner).Render(strings.Join(lines, "\n")))
	}
	return strings.Join(cards, "\n")
}

func (m Model) formatTime(t time.Time) string {
	if m.opts.DateFormat == "relative" {
		return humanize.Time(t)
	}
	return t.Local().Format(m.opts.DateFormat)
}

// excerpt returns the first non-blank line of content.
func excerpt(content string) string {
	for line := range strings.SplitSeq(content, "\n") {
		if s := strings.TrimSpace(line); s != "" {
			return s
		}
	}
	return ""
}
