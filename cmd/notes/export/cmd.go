// Package exportcmd implements the `notes export` command.
package exportcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
)

// Command implements `notes export`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	redact bool
}

// New creates the export command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every note as a markdown file with front-matter",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.redact, "redact", false, "Mask secrets and <private> sections in the output")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.Open()
	if err != nil {
		return err
	}
	defer svc.Close()

	paths, err := svc.Export(cmd.Context(), args[0], c.redact)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d notes to %s\n", len(paths), args[0])
	return nil
}
