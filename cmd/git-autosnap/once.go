package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/snapshot"
)

func newOnceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "once [message]",
		Short: "Take a single snapshot now",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			message := strings.Join(args, " ")
			id, created, err := snapshot.Once(context.Background(), root, message)
			if err != nil {
				return err
			}
			if created {
				fmt.Println(id)
			}
			return nil
		},
	}
}
