package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/daemon"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newStopCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running watcher",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			msg, err := daemon.Stop(root)
			if err != nil {
				return err
			}
			fmt.Println(msg)
			return nil
		},
	}
}
