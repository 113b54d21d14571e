package ui

import "github.com/charmbracelet/bubbles/key"

// ListKeyMap are the bindings of the list/search screen. Printable keys go to
// the search field, so every action uses a control chord or arrow.
type ListKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Create key.Binding
	Yank   key.Binding
	Quit   key.Binding
}

// DefaultListKeyMap returns the default list bindings.
func DefaultListKeyMap() ListKeyMap {
	return ListKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "ctrl+p"),
			key.WithHelp("↑", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "ctrl+j"),
			key.WithHelp("↓", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open"),
		),
		Create: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("ctrl+n", "new note"),
		),
		Yank: key.NewBinding(
			key.WithKeys("ctrl+y"),
			key.WithHelp("ctrl+y", "copy"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k ListKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Select, k.Create, k.Yank, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k ListKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Create, k.Yank, k.Quit},
	}
}

// EditKeyMap are the bindings of the editor screen.
type EditKeyMap struct {
	NextField key.Binding
	Color     key.Binding
	Delete    key.Binding
	Back      key.Binding
	Quit      key.Binding
}

// DefaultEditKeyMap returns the default editor bindings.
func DefaultEditKeyMap() EditKeyMap {
	return EditKeyMap{
		NextField: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "switch field"),
		),
		Color: key.NewBinding(
			key.WithKeys("ctrl+k"),
			key.WithHelp("ctrl+k", "color"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+d"),
			key.WithHelp("ctrl+d", "delete"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k EditKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Color, k.Delete, k.Back}
}

// FullHelp implements help.KeyMap.
func (k EditKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextField, k.Color},
		{k.Delete, k.Back, k.Quit},
	}
}
