// Package editcmd implements the `notes edit` command.
package editcmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/models"
)

// Command implements `notes edit`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	title   string
	content string
	color   string
}

// New creates the edit command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "edit <note-id>",
		Short: "Change a note's title, content or color",
		Long:  "Only the flags given are changed. Use --color none to clear the color.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.StringVar(&c.title, "title", "", "New title")
	f.StringVar(&c.content, "content", "", `New body ("-" reads stdin)`)
	f.StringVar(&c.color, "color", "", "New card color")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if !flags.Changed("title") && !flags.Changed("content") && !flags.Changed("color") {
		return errors.New("edit: nothing to change (use --title, --content or --color)")
	}

	svc, err := c.ctx.Open()
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := shared.Lookup(cmd.Context(), svc, args[0])
	if err != nil {
		return err
	}

	in := models.UpdateInput{ID: n.ID, Title: n.Title, Content: n.Content, Color: n.Color}
	if flags.Changed("title") {
		in.Title = c.title
	}
	if flags.Changed("content") {
		if in.Content, err = shared.ReadContent(cmd.InOrStdin(), c.content); err != nil {
			return err
		}
	}
	if flags.Changed("color") {
		in.Color = c.color
	}

	res, err := svc.Update(cmd.Context(), in)
	if err != nil {
		return err
	}
	svc.FlushEmbeddings()
	fmt.Fprintf(cmd.OutOrStdout(), "Updated note %s. %s\n", models.ShortID(n.ID), models.FormatSavedAt(res.SavedAt))
	return nil
}
