package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gogitfs "github.com/go-git/go-billy/v5/osfs"
	"github.com/spf13/cobra"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
)

func newRestoreCommand() *cobra.Command {
	var force, dryRun bool

	cmd := &cobra.Command{
		Use:   "restore [revision]",
		Short: "Restore the working tree to a snapshot's contents",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := layout.Discover(".")
			if err != nil {
				return err
			}
			if !layout.Exists(root) {
				return apperr.ErrNotInitialized
			}

			rev := "HEAD"
			if len(args) == 1 {
				rev = args[0]
			}

			if !force && !dryRun {
				dirty, err := primaryWorktreeDirty(root)
				if err != nil {
					return err
				}
				if dirty {
					return apperr.ErrDirtyWorkingTree
				}
			}

			storer := filesystem.NewStorage(gogitfs.New(layout.AuxiliaryDir(root)), cache.NewObjectLRUDefault())
			repo, err := git.Open(storer, nil)
			if err != nil {
				return &apperr.IndexBuild{Err: err}
			}

			commit, err := resolveCommit(repo, rev)
			if err != nil {
				return &apperr.InvalidRef{Ref: rev, Err: err}
			}
			tree, err := commit.Tree()
			if err != nil {
				return err
			}

			paths, err := restoreTree(repo, tree, root, dryRun)
			if err != nil {
				return err
			}

			if dryRun {
				for _, p := range paths {
					fmt.Println(p)
				}
				return nil
			}
			return refreshPrimaryIndex(root, paths)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "restore even with a dirty working tree")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be restored without writing")
	return cmd
}

// restoreTree writes every blob in tree to root, preserving relative paths.
// It never removes .git or .autosnap, matching full-mode restore semantics.
func restoreTree(repo *git.Repository, tree *object.Tree, root string, dryRun bool) ([]string, error) {
	var paths []string
	walker := object.NewTreeWalker(tree, true, nil)
	defer walker.Close()

	for {
		name, entry, err := walker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if entry.Mode == filemode.Dir {
			continue
		}
		if name == ".git" || name == ".autosnap" {
			continue
		}

		paths = append(paths, name)
		if dryRun {
			continue
		}

		blob, err := repo.BlobObject(entry.Hash)
		if err != nil {
			return nil, err
		}
		r, err := blob.Reader()
		if err != nil {
			return nil, err
		}
		content, err := io.ReadAll(r)
		_ = r.Close()
		if err != nil {
			return nil, err
		}

		abs := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, err
		}
		mode := os.FileMode(0o644)
		if entry.Mode == filemode.Executable {
			mode = 0o755
		}
		if err := os.WriteFile(abs, content, mode); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func primaryWorktreeDirty(root string) (bool, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return false, nil //nolint:nilerr // no primary store bound, nothing to call dirty
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, nil //nolint:nilerr
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	return !status.IsClean(), nil
}

func refreshPrimaryIndex(root string, paths []string) error {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil //nolint:nilerr // no primary store bound, nothing to refresh
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil //nolint:nilerr
	}
	for _, p := range paths {
		if _, err := wt.Add(p); err != nil {
			return fmt.Errorf("restore: refresh index for %s: %w", p, err)
		}
	}
	return nil
}
