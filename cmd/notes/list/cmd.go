// Package listcmd implements the `notes list` command.
package listcmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/models"
)

// Command implements `notes list`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	limit int
}

// New creates the list command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:     "list [query...]",
		Aliases: []string{"search", "ls"},
		Short:   "List notes, newest edit first, optionally filtered by a query",
		Long: "Every whitespace-separated query term must appear in a note's title or\n" +
			"content (case-insensitive). Without a query all notes are listed.",
		RunE: c.run,
	}

	c.cmd.Flags().IntVar(&c.limit, "limit", -1, "Maximum number of results (default from config search.limit; 0 = all)")

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

	limit := c.limit
	if limit < 0 {
		limit = svc.Config.Search.Limit
	}
	notes, err := svc.Search(cmd.Context(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(notes) == 0 {
		fmt.Fprintln(out, "No notes found.")
		return nil
	}
	for i := range notes {
		n := &notes[i]
		color := ""
		if n.HasColor() {
			color = " [" + n.Color + "]"
		}
		fmt.Fprintf(out, "%s  %s  %s%s\n",
			models.ShortID(n.ID), n.UpdatedAt.Local().Format("2006-01-02 15:04"), shared.DisplayTitle(n), color)
	}
	return nil
}
