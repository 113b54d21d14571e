// Package importcmd implements the `notes import` command.
package importcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/go-ports/notevault/cmd/notes/shared"
)

// Command implements `notes import`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the import command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "import <file-or-dir>...",
		Short: "Import markdown files; files carrying a known id update that note",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	paths, err := expand(args)
	if err != nil {
		return err
	}

	svc, err := c.ctx.Open()
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Import(cmd.Context(), paths)
	svc.FlushEmbeddings()
	if res != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new, updated %d\n", res.Created, res.Updated)
	}
	return err
}

// expand replaces directories by the *.md files directly inside them.
func expand(args []string) ([]string, error) {
	var paths []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		if !info.IsDir() {
			paths = append(paths, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*.md"))
		if err != nil {
			return nil, fmt.Errorf("import: %w", err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}
