// Package setupcmd implements the `notes setup` command group.
package setupcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/setup"
)

// Command implements `notes setup`.
type Command struct {
	cmd *cobra.Command
}

// New creates the setup command group.
func New(_ *shared.Context) *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:   "setup",
		Short: "Register the notes MCP server with a coding agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		agentCommand("claude-code", ".claude", "Claude Code", func(dir string, project bool) setup.Result {
			return setup.SetupClaudeCode(dir, project)
		}),
		agentCommand("cursor", ".cursor", "Cursor", func(dir string, _ bool) setup.Result {
			return setup.SetupCursor(dir)
		}),
		agentCommand("codex", ".codex", "Codex (config.toml and AGENTS.md)", func(dir string, _ bool) setup.Result {
			return setup.SetupCodex(dir)
		}),
		opencodeCommand(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func agentCommand(use, dotDir, agent string, install func(dir string, project bool) setup.Result) *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   use,
		Short: "Install the notes MCP server into " + agent,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := install(shared.AgentDir(dotDir, configDir, project), project)
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to the "+dotDir+" directory")
	cmd.Flags().BoolVar(&project, "project", false, "Install in current project instead of globally")
	return cmd
}

func opencodeCommand() *cobra.Command {
	var project bool
	cmd := &cobra.Command{
		Use:   "opencode",
		Short: "Install the notes MCP server into OpenCode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), setup.SetupOpencode(project).Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "Install in current project instead of globally")
	return cmd
}
