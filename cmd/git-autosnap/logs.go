package main

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gogitfs "github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newLogsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "List snapshot commits, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			if !layout.Exists(root) {
				return apperr.ErrNotInitialized
			}

			storer := filesystem.NewStorage(gogitfs.New(layout.AuxiliaryDir(root)), cache.NewObjectLRUDefault())
			repo, err := git.Open(storer, nil)
			if err != nil {
				return &apperr.IndexBuild{Err: err}
			}

			head, err := repo.Reference(plumbing.HEAD, true)
			if err != nil {
				if err == plumbing.ErrReferenceNotFound {
					return nil
				}
				return err
			}

			cur := head.Hash()
			for cur != plumbing.ZeroHash {
				c, err := repo.CommitObject(cur)
				if err != nil {
					return err
				}
				subject := strings.SplitN(c.Message, "\n", 2)[0]
				fmt.Printf("%s %s\n", c.Hash.String()[:7], subject)
				if len(c.ParentHashes) == 0 {
					break
				}
				cur = c.ParentHashes[0]
			}
			return nil
		},
	}
}
