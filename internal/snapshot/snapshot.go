// Package snapshot implements the core commit-on-change operation: under
// the ops lock, synthesize a tree from the primary working tree, compare it
// with the auxiliary store's current tip, and commit only when it changed.
package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gogitfs "github.com/go-git/go-billy/v5/osfs"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/gitconfig"
	"github.com/shuymn/git-autosnap/internal/ignore"
	idx "github.com/shuymn/git-autosnap/internal/index"
	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/opslock"
)

const autosnapRefName = plumbing.ReferenceName("refs/heads/main")

// Once synthesizes the current working tree into a commit in the auxiliary
// store, suppressing emission when nothing changed. It returns the empty
// string and created=false when no commit was needed.
func Once(ctx context.Context, root string, customMessage string) (shortID string, created bool, err error) {
	if !layout.Exists(root) {
		return "", false, apperr.ErrNotInitialized
	}

	guard, err := opslock.Acquire(root)
	if err != nil {
		return "", false, fmt.Errorf("snapshot: acquire ops lock: %w", err)
	}
	defer guard.Close()

	auxDir := layout.AuxiliaryDir(root)
	storer := filesystem.NewStorage(gogitfs.New(auxDir), cache.NewObjectLRUDefault())
	worktreeFS := gogitfs.New(root)

	repo, err := git.Open(storer, worktreeFS)
	if err != nil {
		return "", false, &apperr.IndexBuild{Err: err}
	}

	matcher, _, err := ignore.Build(root)
	if err != nil {
		return "", false, fmt.Errorf("snapshot: build ignore matcher: %w", err)
	}

	newTree, err := idx.Synthesize(ctx, repo, root, matcher)
	if err != nil {
		return "", false, err
	}

	currentRef, currentCommit, err := headCommit(repo)
	if err != nil {
		return "", false, err
	}
	if currentCommit != nil && currentCommit.TreeHash == newTree {
		return "", false, nil
	}
	// With no parent, an empty tree is no change either: git's well-known
	// empty-tree id.
	if currentCommit == nil && newTree == plumbing.NewHash("4b825dc642cb6eb9a060e54bf8d69288fbee4904") {
		return "", false, nil
	}

	identity := gitconfig.IdentityFor(root)
	branch := gitconfig.CurrentBranch(root)
	when := time.Now()
	msg := formatMessage(branch, when, customMessage)

	var parents []plumbing.Hash
	if currentCommit != nil {
		parents = []plumbing.Hash{currentCommit.Hash}
	}

	commit := &object.Commit{
		Author:       object.Signature{Name: identity.Name, Email: identity.Email, When: when},
		Committer:    object.Signature{Name: identity.Name, Email: identity.Email, When: when},
		Message:      msg,
		TreeHash:     newTree,
		ParentHashes: parents,
	}

	obj := storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return "", false, &apperr.CommitCreation{Err: err}
	}
	commitHash, err := storer.SetEncodedObject(obj)
	if err != nil {
		return "", false, &apperr.CommitCreation{Err: err}
	}

	refName := autosnapRefName
	if currentRef != nil {
		refName = currentRef.Name()
	}
	newRef := plumbing.NewHashReference(refName, commitHash)
	if err := storer.SetReference(newRef); err != nil {
		return "", false, &apperr.ReferenceUpdate{Err: err}
	}
	if err := setHEAD(storer, refName); err != nil {
		return "", false, &apperr.ReferenceUpdate{Err: err}
	}

	return commitHash.String()[:7], true, nil
}

// headCommit resolves HEAD to its reference and commit object, if any.
func headCommit(repo *git.Repository) (*plumbing.Reference, *object.Commit, error) {
	head, err := repo.Reference(plumbing.HEAD, true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("snapshot: resolve HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return head, nil, fmt.Errorf("snapshot: load HEAD commit: %w", err)
	}
	return head, commit, nil
}

func setHEAD(storer *filesystem.Storage, target plumbing.ReferenceName) error {
	head := plumbing.NewSymbolicReference(plumbing.HEAD, target)
	return storer.SetReference(head)
}

// formatMessage composes "AUTOSNAP[<branch>] <RFC-3339>[: <custom>]" (§3).
func formatMessage(branch string, when time.Time, custom string) string {
	msg := fmt.Sprintf("AUTOSNAP[%s] %s", branch, when.Format(time.RFC3339))
	if custom != "" {
		msg += ": " + custom
	}
	return msg
}
