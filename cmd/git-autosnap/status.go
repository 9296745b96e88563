package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/singleton"
)

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the watcher is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			running, err := singleton.Status(root)
			if err != nil {
				return err
			}
			if running {
				fmt.Println("running")
				return nil
			}
			fmt.Println("stopped")
			os.Exit(1)
			return nil
		},
	}
}
