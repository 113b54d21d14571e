// Package showcmd implements the `notes show` command.
package showcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/markdown"
)

// Command implements `notes show`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	raw bool
}

// New creates the show command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "show <note-id>",
		Short: "Print a note by ID or prefix",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.raw, "raw", false, "Print only the content")
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

	n, err := shared.Lookup(cmd.Context(), svc, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.raw {
		fmt.Fprintln(out, n.Content)
		return nil
	}
	doc, err := markdown.Render(n)
	if err != nil {
		return err
	}
	fmt.Fprint(out, doc)
	return nil
}
