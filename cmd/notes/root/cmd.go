// Package rootcmd wires the root cobra.Command for the notes CLI binary.
package rootcmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	configcmd "github.com/go-ports/notevault/cmd/notes/config"
	deletecmd "github.com/go-ports/notevault/cmd/notes/delete"
	editcmd "github.com/go-ports/notevault/cmd/notes/edit"
	exportcmd "github.com/go-ports/notevault/cmd/notes/export"
	"github.com/go-ports/notevault/cmd/notes/importcmd"
	"github.com/go-ports/notevault/cmd/notes/initcmd"
	listcmd "github.com/go-ports/notevault/cmd/notes/list"
	mcpcmd "github.com/go-ports/notevault/cmd/notes/mcp"
	"github.com/go-ports/notevault/cmd/notes/newcmd"
	reindexcmd "github.com/go-ports/notevault/cmd/notes/reindex"
	setupcmd "github.com/go-ports/notevault/cmd/notes/setup"
	"github.com/go-ports/notevault/cmd/notes/shared"
	showcmd "github.com/go-ports/notevault/cmd/notes/show"
	similarcmd "github.com/go-ports/notevault/cmd/notes/similar"
	tuicmd "github.com/go-ports/notevault/cmd/notes/tui"
	uninstallcmd "github.com/go-ports/notevault/cmd/notes/uninstall"
	"github.com/go-ports/notevault/internal/buildinfo"
)

// New creates and returns the root cobra.Command for the notes CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}
	tui := tuicmd.New(ctx)

	root := &cobra.Command{
		Use:           "notes",
		Short:         "notevault: searchable notes that save as you type",
		Version:       buildinfo.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		// Bare `notes` opens the UI on a terminal and prints help otherwise.
		RunE: func(cmd *cobra.Command, args []string) error {
			if isTerminal(os.Stdout) && isTerminal(os.Stdin) {
				return tui.Cmd().RunE(cmd, args)
			}
			return cmd.Help()
		},
	}

	root.SetVersionTemplate("notes {{.Version}}\n")

	root.PersistentFlags().StringVar(
		&ctx.NotesHome, "notes-home", "",
		"Override notes home directory (default: $NOTES_HOME env → persisted config → ~/.notes)",
	)

	root.AddCommand(
		initcmd.New(ctx).Cmd(),
		newcmd.New(ctx).Cmd(),
		listcmd.New(ctx).Cmd(),
		showcmd.New(ctx).Cmd(),
		editcmd.New(ctx).Cmd(),
		deletecmd.New(ctx).Cmd(),
		tui.Cmd(),
		similarcmd.New(ctx).Cmd(),
		reindexcmd.New(ctx).Cmd(),
		exportcmd.New(ctx).Cmd(),
		importcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
	)

	return root
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
