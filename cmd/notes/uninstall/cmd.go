// Package uninstallcmd implements the `notes uninstall` command group.
package uninstallcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/setup"
)

// Command implements `notes uninstall`.
type Command struct {
	cmd *cobra.Command
}

// New creates the uninstall command group.
func New(_ *shared.Context) *Command {
	c := &Command{}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the notes MCP server from a coding agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newUninstallClaudeCode(),
		newUninstallCursor(),
		newUninstallCodex(),
		newUninstallOpencode(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newUninstallClaudeCode() *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   "claude-code",
		Short: "Remove the notes MCP server from Claude Code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := setup.UninstallClaudeCode(shared.AgentDir(".claude", configDir, project), project)
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .claude directory")
	cmd.Flags().BoolVar(&project, "project", false, "Uninstall from current project instead of globally")
	return cmd
}

func newUninstallCursor() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Remove the notes MCP server from Cursor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := setup.UninstallCursor(shared.AgentDir(".cursor", configDir, false))
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .cursor directory")
	return cmd
}

func newUninstallCodex() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "codex",
		Short: "Remove the notes MCP server and AGENTS.md section from Codex",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			result := setup.UninstallCodex(shared.AgentDir(".codex", configDir, false))
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .codex directory")
	return cmd
}

func newUninstallOpencode() *cobra.Command {
	var project bool
	cmd := &cobra.Command{
		Use:   "opencode",
		Short: "Remove the notes MCP server from OpenCode",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), setup.UninstallOpencode(project).Message)
			return nil
		},
	}
	cmd.Flags().BoolVar(&project, "project", false, "Uninstall from current project instead of globally")
	return cmd
}
