// Package newcmd implements the `notes new` command.
package newcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/models"
)

// Command implements `notes new`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	title   string
	content string
	color   string
}

// New creates the new command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "new",
		Short: "Create a note",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.StringVar(&c.title, "title", "", "Note title")
	f.StringVar(&c.content, "content", "", `Note body ("-" reads stdin)`)
	f.StringVar(&c.color, "color", "", "Card color (default from config ui.default_color)")

	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	content, err := shared.ReadContent(cmd.InOrStdin(), c.content)
	if err != nil {
		return err
	}

	svc, err := c.ctx.Open()
	if err != nil {
		return err
	}
	defer svc.Close()

	color := c.color
	if !cmd.Flags().Changed("color") {
		color = svc.Config.UI.DefaultColor
	}
	n, err := svc.Create(cmd.Context(), models.NoteFields{Title: c.title, Content: content, Color: color})
	if err != nil {
		return err
	}
	svc.FlushEmbeddings()
	fmt.Fprintf(cmd.OutOrStdout(), "Created note %s\n", models.ShortID(n.ID))
	return nil
}
