package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/daemon"
	"github.com/shuymn/git-autosnap/internal/gitconfig"
	"github.com/shuymn/git-autosnap/internal/ignore"
	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/logging"
	"github.com/shuymn/git-autosnap/internal/singleton"
	"github.com/shuymn/git-autosnap/internal/watcher"
)

func newStartCommand() *cobra.Command {
	var asDaemon bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the watcher, in the foreground or detached",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			if !layout.Exists(root) {
				if err := layout.EnsureInitialized(root); err != nil {
					return err
				}
			}

			if asDaemon {
				msg, _, err := daemon.Start(root)
				if err != nil {
					return err
				}
				fmt.Println(msg)
				return nil
			}

			return runForeground(root)
		},
	}
	cmd.Flags().BoolVar(&asDaemon, "daemon", false, "detach into a background session")
	return cmd
}

func runForeground(root string) error {
	cfg, err := gitconfig.Load(root)
	if err != nil {
		return err
	}

	guard, err := singleton.AcquireLock(root)
	if err != nil {
		return err
	}
	defer guard.Close()

	logGuard := logging.Setup(layout.AuxiliaryDir(root), logLevel())

	_, trackedFiles, err := ignore.Build(root)
	if err != nil {
		return err
	}

	w, err := watcher.New(root, cfg.DebounceMS, trackedFiles, logGuard)
	if err != nil {
		return err
	}

	return w.Run(context.Background())
}
