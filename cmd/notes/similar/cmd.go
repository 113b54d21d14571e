// Package similarcmd implements the `notes similar` command.
package similarcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/models"
)

// Command implements `notes similar`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the similar command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "similar <note-id>",
		Short: "List notes related to a note (semantic when embeddings are configured)",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	c.cmd.Flags().IntVar(&c.limit, "limit", 5, "Maximum number of results")
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

	target, err := shared.Lookup(cmd.Context(), svc, args[0])
	if err != nil {
		return err
	}
	results, err := svc.Similar(cmd.Context(), target.ID, c.limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(results) == 0 {
		fmt.Fprintln(out, "No related notes found.")
		return nil
	}
	fmt.Fprintf(out, "Related to %q:\n", shared.DisplayTitle(target))
	for i, r := range results {
		fmt.Fprintf(out, " [%d] %s  %s (score: %.2f, %s)\n",
			i+1, models.ShortID(r.Note.ID), shared.DisplayTitle(&r.Note), r.Score, r.Source)
	}
	return nil
}
