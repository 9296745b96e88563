// Package compact implements age-based history rewriting: commits older
// than a cutoff collapse into a single synthetic baseline, and the
// remaining commits replay on top of it unchanged (§4.F).
package compact

import (
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	gogitfs "github.com/go-git/go-billy/v5/osfs"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/opslock"
)

// BaselineMessage is the fixed message of the parentless commit compaction
// synthesizes (§3).
const BaselineMessage = "AUTOSNAP_COMPACT_BASELINE"

// Result reports what a compaction run did (§4.F).
type Result struct {
	BeforeCommits   int
	AfterCommits    int
	Rewritten       bool
	BaselineCreated bool
}

// Compact collapses every commit in the auxiliary store older than days
// into a single baseline and replays the rest on top, then runs reflog
// expiry and an aggressive prune.
func Compact(root string, days uint32) (Result, error) {
	if !layout.Exists(root) {
		return Result{}, nil
	}

	guard, err := opslock.Acquire(root)
	if err != nil {
		return Result{}, fmt.Errorf("compact: acquire ops lock: %w", err)
	}
	defer guard.Close()

	auxDir := layout.AuxiliaryDir(root)
	storer := filesystem.NewStorage(gogitfs.New(auxDir), cache.NewObjectLRUDefault())
	repo, err := git.Open(storer, nil)
	if err != nil {
		return Result{}, &apperr.IndexBuild{Err: err}
	}

	head, err := repo.Reference(plumbing.HEAD, true)
	if err != nil {
		if err == plumbing.ErrReferenceNotFound {
			return Result{}, nil
		}
		return Result{}, fmt.Errorf("compact: resolve HEAD: %w", err)
	}
	refName, err := resolvedTarget(repo)
	if err != nil {
		return Result{}, err
	}

	commits, err := historyOldestFirst(repo, head.Hash())
	if err != nil {
		return Result{}, fmt.Errorf("compact: walk history: %w", err)
	}
	before := len(commits)

	cutoff := time.Now().AddDate(0, 0, -int(days))
	var old, keep []*object.Commit
	for _, c := range commits {
		if c.Committer.When.Before(cutoff) {
			old = append(old, c)
		} else {
			keep = append(keep, c)
		}
	}

	if len(old) == 0 {
		if err := postMaintenance(auxDir); err != nil {
			return Result{}, err
		}
		return Result{BeforeCommits: before, AfterCommits: before, Rewritten: false}, nil
	}

	baselineSource := old[len(old)-1] // youngest of the old set; commits is oldest-first

	baseline := &object.Commit{
		Author:    baselineSource.Author,
		Committer: baselineSource.Committer,
		Message:   BaselineMessage,
		TreeHash:  baselineSource.TreeHash,
	}
	baselineHash, err := encodeCommit(storer, baseline)
	if err != nil {
		return Result{}, &apperr.CommitCreation{Err: err}
	}

	tip := baselineHash
	for _, c := range keep {
		replay := &object.Commit{
			Author:       c.Author,
			Committer:    c.Committer,
			Message:      c.Message,
			TreeHash:     c.TreeHash,
			ParentHashes: []plumbing.Hash{tip},
		}
		tip, err = encodeCommit(storer, replay)
		if err != nil {
			return Result{}, &apperr.CommitCreation{Err: err}
		}
	}

	newRef := plumbing.NewHashReference(refName, tip)
	if err := storer.SetReference(newRef); err != nil {
		return Result{}, &apperr.ReferenceUpdate{Err: err}
	}
	if refName != plumbing.HEAD {
		if err := storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, refName)); err != nil {
			return Result{}, &apperr.ReferenceUpdate{Err: err}
		}
	}

	if err := postMaintenance(auxDir); err != nil {
		return Result{}, err
	}

	after := 1 + len(keep)
	return Result{
		BeforeCommits:   before,
		AfterCommits:    after,
		Rewritten:       true,
		BaselineCreated: true,
	}, nil
}

func resolvedTarget(repo *git.Repository) (plumbing.ReferenceName, error) {
	symbolic, err := repo.Reference(plumbing.HEAD, false)
	if err != nil {
		return "", fmt.Errorf("compact: resolve HEAD target: %w", err)
	}
	if symbolic.Type() == plumbing.SymbolicReference {
		return symbolic.Target(), nil
	}
	return symbolic.Name(), nil
}

// historyOldestFirst walks the commit graph from tip and returns it
// oldest-first. The auxiliary history is a linear chain (§3), so a simple
// parent walk suffices; it is not a general DAG traversal.
func historyOldestFirst(repo *git.Repository, tip plumbing.Hash) ([]*object.Commit, error) {
	var commits []*object.Commit
	cur := tip
	for {
		if cur == plumbing.ZeroHash {
			break
		}
		c, err := repo.CommitObject(cur)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
		if len(c.ParentHashes) == 0 {
			break
		}
		cur = c.ParentHashes[0]
	}
	sort.SliceStable(commits, func(i, j int) bool {
		return commits[i].Committer.When.Before(commits[j].Committer.When)
	})
	return commits, nil
}

func encodeCommit(storer *filesystem.Storage, commit *object.Commit) (plumbing.Hash, error) {
	obj := storer.NewEncodedObject()
	obj.SetType(plumbing.CommitObject)
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return storer.SetEncodedObject(obj)
}

// postMaintenance expires all reflog entries and runs an aggressive prune,
// reclaiming objects the rewrite left unreachable. go-git implements
// neither operation, so these shell out to the git binary against the
// auxiliary store (§4.F step 8).
func postMaintenance(auxDir string) error {
	if err := runGit(auxDir, "reflog", "expire", "--expire=now", "--all"); err != nil {
		return &apperr.PostMaintenance{Err: err}
	}
	if err := runGit(auxDir, "gc", "--prune=now"); err != nil {
		return &apperr.PostMaintenance{Err: err}
	}
	return nil
}

func runGit(gitDir string, args ...string) error {
	full := append([]string{"--git-dir=" + gitDir}, args...)
	cmd := exec.Command("git", full...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %v: %w: %s", args, err, out)
	}
	return nil
}
