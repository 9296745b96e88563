package main

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/layout"
)

func newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Open a shell with GIT_DIR pointed at the auxiliary store",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}

			shellPath := os.Getenv("SHELL")
			if shellPath == "" {
				shellPath = "/bin/sh"
			}

			sub := exec.Command(shellPath)
			sub.Dir = root
			sub.Stdin = os.Stdin
			sub.Stdout = os.Stdout
			sub.Stderr = os.Stderr
			sub.Env = append(os.Environ(),
				"GIT_DIR="+layout.AuxiliaryDir(root),
				"GIT_WORK_TREE="+root,
			)
			return sub.Run()
		},
	}
}
