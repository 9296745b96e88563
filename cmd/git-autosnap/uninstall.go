package main

import (
	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/daemon"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newUninstallCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Stop the watcher if running and remove the auxiliary store",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			if _, err := daemon.Stop(root); err != nil {
				return err
			}
			return layout.Remove(root)
		},
	}
}
