// Package tuicmd implements the `notes tui` command.
package tuicmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
	"github.com/go-ports/notevault/internal/config"
	"github.com/go-ports/notevault/internal/ui/app"
	"github.com/go-ports/notevault/internal/ui/listview"
)

// Command implements `notes tui`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	noWatch bool
}

// New creates the tui command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive notes screen",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.noWatch, "no-watch", false, "Do not refresh on changes made by other processes")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.Open()
	if err != nil {
		return err
	}
	defer svc.Close()

	// The screen owns the terminal, so logs go to a file in the notes home.
	logFile, err := os.OpenFile(config.LogPath(svc.Home), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("tui: open log: %w", err)
	}
	defer logFile.Close()
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(logFile, &slog.HandlerOptions{Level: svc.Config.SlogLevel()})))
	defer slog.SetDefault(prev)

	if !c.noWatch {
		w, err := svc.WatchDatabase()
		if err != nil {
			slog.Warn("external changes will not refresh the list", "err", err)
		} else {
			defer w.Close()
		}
	}

	slog.Info("tui started", "home", svc.Home)
	err = app.Run(cmd.Context(), svc, listview.Options{
		DefaultColor: svc.Config.UI.DefaultColor,
		DateFormat:   svc.Config.UI.DateFormat,
	})
	svc.FlushEmbeddings()
	return err
}
