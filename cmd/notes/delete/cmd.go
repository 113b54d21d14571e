// Package deletecmd implements the `notes delete` command.
package deletecmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/models"
)

// Command implements `notes delete`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the delete command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:     "delete <note-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a note by ID or prefix",
		Args:    cobra.ExactArgs(1),
		RunE:    c.run,
	}
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
	if err := svc.Delete(cmd.Context(), n.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted note %s (%s)\n", models.ShortID(n.ID), shared.DisplayTitle(n))
	return nil
}
