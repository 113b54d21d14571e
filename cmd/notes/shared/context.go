// Package shared holds the context passed to all CLI commands and the helpers
// they have in common.
package shared

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ports/notevault/internal/config"
	"github.com/go-ports/notevault/internal/models"
	"github.com/go-ports/notevault/internal/service"
)

// Context carries global CLI state (flags set on the root command).
type Context struct {
	// NotesHome overrides the notes home directory.
	// When empty, resolution falls through to NOTES_HOME env var → persisted config → ~/.notes.
	NotesHome string
}

// Home returns the notes home for this invocation and where it came from.
func (c *Context) Home() (path, source string) {
	if c.NotesHome != "" {
		return c.NotesHome, "flag"
	}
	return config.ResolveNotesHome()
}

// Open opens the service over the resolved notes home.
func (c *Context) Open() (*service.Service, error) {
	home, _ := c.Home()
	return service.New(home)
}

// Lookup resolves an id or id prefix to a note.
func Lookup(ctx context.Context, svc *service.Service, prefix string) (*models.Note, error) {
	id, err := svc.Resolve(ctx, prefix)
	if err != nil {
		return nil, err
	}
	return svc.Get(ctx, id)
}

// ReadContent returns v, or all of stdin when v is "-".
func ReadContent(stdin io.Reader, v string) (string, error) {
	if v != "-" {
		return v, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	return strings.TrimRight(string(b), "\n"), nil
}

// AgentDir picks the agent config directory for setup and uninstall.
//
//revive:disable:flag-parameter
func AgentDir(dotDir, configDir string, project bool) string {
	if configDir != "" {
		return configDir
	}
	if project {
		cwd, _ := os.Getwd()
		return filepath.Join(cwd, dotDir)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dotDir)
}

//revive:enable:flag-parameter

// DisplayTitle returns the title or a placeholder for untitled notes.
func DisplayTitle(n *models.Note) string {
	if strings.TrimSpace(n.Title) == "" {
		return "(untitled)"
	}
	return n.Title
}
