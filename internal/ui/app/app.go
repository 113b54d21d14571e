// Package app is the root bubbletea model: a list screen with an optional
// editor pushed on top of it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/go-ports/notevault/internal/ui"
	"github.com/go-ports/notevault/internal/ui/editview"
	"github.com/go-ports/notevault/internal/ui/listview"
)

// Store is the union of what the screens need.
type Store interface {
	listview.Store
	editview.Store
}

// Model is the navigation stack. The list is always at the bottom; editor is
// non-nil while a note is open.
type Model struct {
	ctx   context.Context
	store *trackedStore

	list   listview.Model
	editor *editview.Model

	help     help.Model
	quit     key.Binding
	quitting bool
	width    int
	height   int
}

// New builds the root model. The list screen registers its live query
// immediately; Close releases it.
func New(ctx context.Context, store Store, opts listview.Options) *Model {
	tracked := newTrackedStore(store)
	return &Model{
		ctx:   ctx,
		store: tracked,
		list:  listview.New(ctx, tracked, opts),
		help:  help.New(),
		quit:  key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd { return m.list.Init() }

// Close tears down the list's live query.
func (m *Model) Close() error { return m.list.Close() }

// Editing reports whether an editor is on top.
func (m *Model) Editing() bool { return m.editor != nil }

// Editor returns the open editor, if any.
func (m *Model) Editor() (editview.Model, bool) {
	if m.editor == nil {
		return editview.Model{}, false
	}
	return *m.editor, true
}

// List returns the list screen.
func (m *Model) List() listview.Model { return m.list }

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		inner := tea.WindowSizeMsg{Width: msg.Width, Height: max(msg.Height-2, 1)}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(inner)
		if m.editor != nil {
			e, _ := m.editor.Update(inner)
			m.editor = &e
		}
		return m, cmd

	case ui.OpenEditorMsg:
		e := editview.New(m.ctx, m.store, msg.Note)
		if m.width > 0 {
			e, _ = e.Update(tea.WindowSizeMsg{Width: m.width, Height: max(m.height-2, 1)})
		}
		m.editor = &e
		return m, e.Init()

	case ui.BackMsg:
		// The list's live query kept running underneath, so it is current.
		m.editor = nil
		return m, nil

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		if key.Matches(msg, m.quit) || (m.editor == nil && key.Matches(msg, m.list.KeyMap().Quit)) {
			m.quitting = true
			_ = m.Close()
			return m, m.quitWhenIdle()
		}
		if m.editor != nil {
			e, cmd := m.editor.Update(msg)
			m.editor = &e
			return m, cmd
		}
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	// Everything else is a reply to a command issued by one of the screens;
	// each ignores what it did not ask for.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	cmds = append(cmds, cmd)
	if m.editor != nil {
		e, cmd := m.editor.Update(msg)
		m.editor = &e
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// quitWhenIdle lets saves and deletes already issued reach the store before
// the program exits.
func (m *Model) quitWhenIdle() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		if !store.wait(quitTimeout) {
			slog.Warn("quit: writes still in flight")
		}
		return tea.QuitMsg{}
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var title, body, footer string
	if m.editor != nil {
		title = m.editor.Title()
		body = m.editor.View()
		footer = m.help.View(m.editor.KeyMap())
	} else {
		title = m.list.Title()
		body = m.list.View()
		footer = m.help.View(m.list.KeyMap())
	}
	return lipgloss.JoinVertical(lipgloss.Left, ui.Header.Render(title), body, footer)
}

// Run starts the terminal UI and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, store Store, opts listview.Options) error {
	m := New(ctx, store, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	// Cancelling ctx ends the program without the quit key.
	m.store.wait(quitTimeout)
	if err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
