package main

import (
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gogitfs "github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newDiffCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "diff [from] [to]",
		Short: "Show the diff between two snapshots (defaults to HEAD~1..HEAD)",
		Args:  cobra.MaximumNArgs(2),
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

			fromRev, toRev := "HEAD~1", "HEAD"
			if len(args) == 1 {
				toRev = args[0]
			}
			if len(args) == 2 {
				fromRev, toRev = args[0], args[1]
			}

			from, err := resolveCommit(repo, fromRev)
			if err != nil {
				return &apperr.InvalidRef{Ref: fromRev, Err: err}
			}
			to, err := resolveCommit(repo, toRev)
			if err != nil {
				return &apperr.InvalidRef{Ref: toRev, Err: err}
			}

			patch, err := from.Patch(to)
			if err != nil {
				return err
			}
			fmt.Print(patch.String())
			return nil
		},
	}
}

func resolveCommit(repo *git.Repository, rev string) (*object.Commit, error) {
	h, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, err
	}
	c, err := repo.CommitObject(*h)
	if err != nil {
		return nil, err
	}
	return c, nil
}
