// Package reindexcmd implements the `notes reindex` command.
package reindexcmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
)

// Command implements `notes reindex`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the reindex command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the vector index with the current embedding provider",
		Args:  cobra.NoArgs,
		RunE:  c.run,
	}
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

	if !svc.Config.Embedding.Enabled() {
		return errors.New("reindex: no embedding provider configured (set embedding.provider in config.yaml)")
	}

	total, err := svc.Count(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if total == 0 {
		fmt.Fprintln(out, "No notes to reindex.")
		return nil
	}

	fmt.Fprintf(out, "Reindexing %d notes with %s/%s...\n",
		total, svc.Config.Embedding.Provider, svc.Config.Embedding.Model)

	result, err := svc.Reindex(cmd.Context(), func(current, count int) {
		fmt.Fprintf(out, "\r  %d/%d", current, count)
		if current == count {
			fmt.Fprintln(out)
		}
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Re-indexed %d notes with %s (%d dims)\n",
		result.Count, result.Model, result.Dim)
	return nil
}
