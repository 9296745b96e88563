// Package index synthesizes a tree object from a working directory's
// current contents, honoring an ignore matcher, and retries the whole
// enumerate-and-write step when the filesystem races with the synthesis.
package index

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	gitindex "github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/shuymn/git-autosnap/internal/apperr"
)

// Matcher reports whether a root-relative, slash-separated path should be
// excluded from the synthesized tree. Satisfied by gitignore.Matcher.
type Matcher interface {
	Match(path []string, isDir bool) bool
}

const (
	maxAttempts    = 5
	initialBackoff = 50 * time.Millisecond
	maxBackoff     = 800 * time.Millisecond
)

// Synthesize builds a tree from root's current contents as seen through
// repo's object store, and returns its identifier. The whole
// enumerate-then-write step is retried on transient filesystem races (§4.D):
// editors that atomically replace files mid-read surface here as read
// errors, not as a distinguishable type, so any filesystem path error
// during enumeration or hashing (or a "file changed before we could read
// it" message) is treated as retryable, and only the final attempt's error
// is surfaced. Any other error ends the retry loop at once.
func Synthesize(ctx context.Context, repo *git.Repository, root string, matcher Matcher) (plumbing.Hash, error) {
	var result plumbing.Hash

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialBackoff
	b.MaxInterval = maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, maxAttempts-1), ctx)

	operation := func() error {
		hash, err := synthesizeOnce(repo, root, matcher)
		if err != nil {
			var pathErr *fs.PathError
			if errors.As(err, &pathErr) ||
				strings.Contains(strings.ToLower(err.Error()), "file changed before we could read it") {
				return err
			}
			return backoff.Permanent(err)
		}
		result = hash
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return plumbing.ZeroHash, &apperr.IndexBuild{Err: err}
	}
	return result, nil
}

func synthesizeOnce(repo *git.Repository, root string, matcher Matcher) (plumbing.Hash, error) {
	idxStorer, ok := repo.Storer.(storer.IndexStorer) //nolint:staticcheck // go-git exposes this via the concrete interface set
	if !ok {
		return fallbackPath(repo, root, matcher)
	}
	return fastPath(repo, idxStorer, root, matcher)
}

type fileEntry struct {
	path string // slash-separated, relative to root
	mode filemode.FileMode
	hash plumbing.Hash
	size int64
	mod  time.Time
}

// fastPath enumerates the union of (a) paths already present in the
// auxiliary store's index and (b) untracked-but-not-ignored paths reported
// by a status walk of the primary working tree (§4.D), drops anything under
// .git/ or .autosnap/, re-hashes changed files, and rewrites the index.
func fastPath(repo *git.Repository, idxStorer storer.IndexStorer, root string, matcher Matcher) (plumbing.Hash, error) {
	idx, err := idxStorer.Index()
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tracked := make(map[string]*gitindex.Entry, len(idx.Entries))
	for _, e := range idx.Entries {
		tracked[e.Name] = e
	}

	union := make(map[string]struct{}, len(tracked))
	for name := range tracked {
		union[name] = struct{}{}
	}

	untracked, err := untrackedStatusPaths(repo, matcher)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	for _, relPath := range untracked {
		if _, already := tracked[relPath]; !already {
			union[relPath] = struct{}{}
		}
	}

	entries := make([]fileEntry, 0, len(union))
	newIndexEntries := make([]*gitindex.Entry, 0, len(union))

	for relPath := range union {
		abs := filepath.Join(root, filepath.FromSlash(relPath))
		info, err := os.Lstat(abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue // removed since last synthesis; drop from the union
			}
			return plumbing.ZeroHash, err
		}
		if info.IsDir() {
			continue
		}

		if old, ok := tracked[relPath]; ok && !old.ModifiedAt.IsZero() &&
			old.ModifiedAt.Equal(info.ModTime()) && old.Size == uint32(info.Size()) {
			entries = append(entries, fileEntry{path: relPath, mode: old.Mode, hash: old.Hash, size: int64(old.Size), mod: old.ModifiedAt})
			newIndexEntries = append(newIndexEntries, old)
			continue
		}

		mode, content, err := readFile(abs, info)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		hash, err := writeBlob(repo.Storer, content)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, fileEntry{path: relPath, mode: mode, hash: hash, size: int64(len(content)), mod: info.ModTime()})
		newIndexEntries = append(newIndexEntries, &gitindex.Entry{
			Name:       relPath,
			Mode:       mode,
			Hash:       hash,
			Size:       uint32(len(content)),
			ModifiedAt: info.ModTime(),
		})
	}

	newIdx := &gitindex.Index{Version: 2, Entries: newIndexEntries}
	if err := idxStorer.SetIndex(newIdx); err != nil {
		return plumbing.ZeroHash, err
	}

	return buildTree(repo.Storer, entries)
}

// fallbackPath is used when the store does not expose a low-level index
// (the underlying library's update_all + add_all equivalent): it walks the
// whole working tree and writes a tree directly, without consulting or
// updating any index. Worktree.Status() diffs against an index, so it has
// nothing to diff against here; this path enumerates the filesystem itself,
// still excluding submodules the same way fastPath does.
func fallbackPath(repo *git.Repository, root string, matcher Matcher) (plumbing.Hash, error) {
	submodules, err := submodulePaths(repo)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	var entries []fileEntry
	err = walkAll(root, matcher, submodules, func(relPath string) {
		abs := filepath.Join(root, filepath.FromSlash(relPath))
		info, err := os.Lstat(abs)
		if err != nil {
			return
		}
		mode, content, err := readFile(abs, info)
		if err != nil {
			return
		}
		hash, err := writeBlob(repo.Storer, content)
		if err != nil {
			return
		}
		entries = append(entries, fileEntry{path: relPath, mode: mode, hash: hash})
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return buildTree(repo.Storer, entries)
}

// submodulePaths returns the root-relative, slash-separated paths of every
// submodule registered in repo's worktree, so callers can exclude them from
// enumeration the way a native status walk would (§4.D).
func submodulePaths(repo *git.Repository) (map[string]struct{}, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	subs, err := wt.Submodules()
	if err != nil {
		return nil, err
	}
	paths := make(map[string]struct{}, len(subs))
	for _, sm := range subs {
		paths[filepath.ToSlash(sm.Config().Path)] = struct{}{}
	}
	return paths, nil
}

func isUnderSubmodule(relSlash string, submodules map[string]struct{}) bool {
	for p := range submodules {
		if relSlash == p || strings.HasPrefix(relSlash, p+"/") {
			return true
		}
	}
	return false
}

// untrackedStatusPaths reports the working tree's untracked-but-not-ignored
// files via go-git's own status diff (Worktree.Status), excluding
// submodules, .git/.autosnap, and anything matcher rejects (§4.D).
func untrackedStatusPaths(repo *git.Repository, matcher Matcher) ([]string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	status, err := wt.Status()
	if err != nil {
		return nil, err
	}
	submodules, err := submodulePaths(repo)
	if err != nil {
		return nil, err
	}

	var out []string
	for path, st := range status {
		if st.Worktree != git.Untracked {
			continue
		}
		relSlash := filepath.ToSlash(path)
		if relSlash == ".git" || relSlash == ".autosnap" ||
			strings.HasPrefix(relSlash, ".git/") || strings.HasPrefix(relSlash, ".autosnap/") {
			continue
		}
		if isUnderSubmodule(relSlash, submodules) {
			continue
		}
		segments := strings.Split(relSlash, "/")
		if matcher.Match(segments, false) {
			continue
		}
		out = append(out, relSlash)
	}
	return out, nil
}

// walkAll walks root depth-first, unconditionally pruning .git, .autosnap,
// and any registered submodule, consulting matcher for everything else, and
// invoking fn with the slash-separated relative path of every regular file
// or symlink it keeps. Used only by fallbackPath, which has no index to
// diff against.
func walkAll(root string, matcher Matcher, submodules map[string]struct{}, fn func(relPath string)) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		if relSlash == ".git" || relSlash == ".autosnap" ||
			strings.HasPrefix(relSlash, ".git/") || strings.HasPrefix(relSlash, ".autosnap/") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if isUnderSubmodule(relSlash, submodules) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		segments := strings.Split(relSlash, "/")
		if matcher.Match(segments, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !d.Type().IsRegular() && d.Type()&fs.ModeSymlink == 0 {
			return nil
		}
		fn(relSlash)
		return nil
	})
}

func readFile(abs string, info fs.FileInfo) (filemode.FileMode, []byte, error) {
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(abs)
		if err != nil {
			return filemode.Empty, nil, err
		}
		return filemode.Symlink, []byte(target), nil
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return filemode.Empty, nil, err
	}
	mode := filemode.Regular
	if info.Mode()&0o111 != 0 {
		mode = filemode.Executable
	}
	return mode, content, nil
}

func writeBlob(store storer.EncodedObjectStorer, content []byte) (plumbing.Hash, error) {
	obj := store.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		_ = w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return store.SetEncodedObject(obj)
}

// treeDir is a node of the in-memory path trie used to assemble nested tree
// objects bottom-up from a flat list of file entries, the same shape the
// library's own worktree commit path builds before encoding.
type treeDir struct {
	files map[string]fileEntry
	dirs  map[string]*treeDir
}

func newTreeDir() *treeDir {
	return &treeDir{files: map[string]fileEntry{}, dirs: map[string]*treeDir{}}
}

func buildTree(store storer.EncodedObjectStorer, entries []fileEntry) (plumbing.Hash, error) {
	root := newTreeDir()
	for _, e := range entries {
		segments := strings.Split(e.path, "/")
		cur := root
		for _, seg := range segments[:len(segments)-1] {
			next, ok := cur.dirs[seg]
			if !ok {
				next = newTreeDir()
				cur.dirs[seg] = next
			}
			cur = next
		}
		cur.files[segments[len(segments)-1]] = e
	}
	return encodeTreeDir(store, root)
}

// treeSortKey mirrors git's canonical tree entry order: a directory name
// compares as if suffixed with "/", so e.g. "foo.txt" sorts before the
// directory "foo" (0x2E < 0x2F), the opposite of a plain byte-wise compare
// of "foo" against "foo.txt".
func treeSortKey(name string, dir *treeDir) string {
	if _, isDir := dir.dirs[name]; isDir {
		return name + "/"
	}
	return name
}

func encodeTreeDir(store storer.EncodedObjectStorer, dir *treeDir) (plumbing.Hash, error) {
	tree := &object.Tree{}

	names := make([]string, 0, len(dir.files)+len(dir.dirs))
	for name := range dir.files {
		names = append(names, name)
	}
	for name := range dir.dirs {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return treeSortKey(names[i], dir) < treeSortKey(names[j], dir)
	})

	for _, name := range names {
		if f, ok := dir.files[name]; ok {
			tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: f.mode, Hash: f.hash})
			continue
		}
		sub := dir.dirs[name]
		subHash, err := encodeTreeDir(store, sub)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: subHash})
	}

	obj := store.NewEncodedObject()
	obj.SetType(plumbing.TreeObject)
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return store.SetEncodedObject(obj)
}
