// Command git-autosnap is the thin CLI surface over the core packages:
// argument parsing and presentation live here; init, start, stop, status,
// once, compact and uninstall are direct calls into the internal packages
// (layout, singleton, snapshot, compact, watcher, daemon and their helpers),
// while shell, restore, diff and logs read the auxiliary store through
// go-git directly.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/logging"
)

var verbosity int

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "git-autosnap",
		Short:         "Continuous working-tree snapshots in a hidden auxiliary store",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v, -vv, -vvv)")

	cmd.AddCommand(
		newInitCommand(),
		newStartCommand(),
		newStopCommand(),
		newStatusCommand(),
		newOnceCommand(),
		newCompactCommand(),
		newUninstallCommand(),
		newShellCommand(),
		newRestoreCommand(),
		newDiffCommand(),
		newLogsCommand(),
	)
	return cmd
}

func logLevel() logging.Level {
	switch {
	case verbosity >= 3:
		return logging.LevelTrace
	case verbosity == 2:
		return logging.LevelDebug
	case verbosity == 1:
		return logging.LevelInfo
	default:
		return logging.LevelWarn
	}
}
