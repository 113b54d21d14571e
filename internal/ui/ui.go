// Package ui holds what the terminal screens share: navigation messages,
// key bindings and styles.
package ui

import "github.com/go-ports/notevault/internal/models"

// OpenEditorMsg asks the app to push an editor for Note.
type OpenEditorMsg struct {
	Note models.Note
}

// BackMsg asks the app to pop the current screen.
type BackMsg struct{}
