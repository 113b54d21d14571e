// Package configcmd implements the `notes config` command group.
package configcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/config"
)

const configTemplate = `# notevault configuration

# Embedding provider for "notes similar". Without one, related notes are
# found by title keywords.
embedding:
  provider: none                # none | ollama | openai | openrouter
  # model: nomic-embed-text
  # base_url: http://localhost:11434
  # api_key: sk-...             # required for openai and openrouter

ui:
  default_color: ""             # color for notes created in the UI (red, orange, yellow, green, blue, purple, gray)
  date_format: relative         # "relative" or a Go time layout such as "2006-01-02 15:04"

log:
  level: info                   # debug | info | warn | error (written to notes.log by the UI)

search:
  limit: 20                     # default result cap for list and MCP search; 0 = unlimited
`

// Command implements `notes config`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the config command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE:  c.runShow,
	}
	c.cmd.AddCommand(
		newConfigInit(ctx),
		newSetHome(),
		newClearHome(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runShow(cmd *cobra.Command, _ []string) error {
	home, source := c.ctx.Home()
	cfg, err := config.Load(config.FilePath(home))
	if err != nil {
		return err
	}
	data := map[string]any{
		"embedding": map[string]any{
			"provider": cfg.Embedding.Provider,
			"model":    cfg.Embedding.Model,
			"base_url": cfg.Embedding.BaseURL,
			"api_key":  redactAPIKey(cfg.Embedding.APIKey),
		},
		"ui": map[string]any{
			"default_color": cfg.UI.DefaultColor,
			"date_format":   cfg.UI.DateFormat,
		},
		"log":               map[string]any{"level": cfg.Log.Level},
		"search":            map[string]any{"limit": cfg.Search.Limit},
		"notes_home":        home,
		"notes_home_source": source,
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(b))
	return nil
}

// ---------------------------------------------------------------------------
// config init
// ---------------------------------------------------------------------------

func newConfigInit(ctx *shared.Context) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := ctx.Home()
			cfgPath := config.FilePath(home)
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Fprintf(out, "Config already exists at %s\n", cfgPath)
				fmt.Fprintln(out, "Use --force to overwrite.")
				return nil
			}
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, []byte(configTemplate), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

// ---------------------------------------------------------------------------
// config set-home / clear-home
// ---------------------------------------------------------------------------

func newSetHome() *cobra.Command {
	return &cobra.Command{
		Use:   "set-home <path>",
		Short: "Persist the notes home location (used when NOTES_HOME is unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.SetPersistedNotesHome(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(resolved, 0o755); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Persisted notes home: %s\n", resolved)
			fmt.Fprintln(out, "Override anytime with NOTES_HOME.")
			return nil
		},
	}
}

func newClearHome() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-home",
		Short: "Remove the persisted notes home location from global config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed, err := config.ClearPersistedNotesHome()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if changed {
				fmt.Fprintln(out, "Cleared persisted notes home setting.")
			} else {
				fmt.Fprintln(out, "No persisted notes home setting was found.")
			}
			return nil
		},
	}
}

func redactAPIKey(key string) string {
	if key != "" {
		return "<redacted>"
	}
	return ""
}
