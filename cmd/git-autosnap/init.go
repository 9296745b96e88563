package main

import (
	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/layout"
)

func newInitCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the auxiliary store and exclude it from the primary repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			return layout.EnsureInitialized(root)
		},
	}
}
