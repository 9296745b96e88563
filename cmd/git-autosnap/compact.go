package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/compact"
	"github.com/shuymn/git-autosnap/internal/gitconfig"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newCompactCommand() *cobra.Command {
	var days uint32

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Collapse history older than a cutoff into a single baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}

			cutoff := days
			if !cmd.Flags().Changed("days") {
				cfg, err := gitconfig.Load(root)
				if err != nil {
					return err
				}
				cutoff = cfg.CompactDays
			}

			result, err := compact.Compact(root, cutoff)
			if err != nil {
				return err
			}
			if result.Rewritten {
				fmt.Printf("compacted snapshots: %d -> %d commits\n", result.BeforeCommits, result.AfterCommits)
			} else {
				fmt.Printf("no rewrite needed (%d commits)\n", result.BeforeCommits)
			}
			return nil
		},
	}
	cmd.Flags().Uint32Var(&days, "days", 0, "age cutoff in days (defaults to autosnap.compact.days)")
	return cmd
}
