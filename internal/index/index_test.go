package index_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gogitfs "github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/index"
)

func openBareBoundTo(t *testing.T, workRoot string) *git.Repository {
	t.Helper()
	auxDir := t.TempDir()
	_, err := git.PlainInit(auxDir, true)
	require.NoError(t, err)

	storer := filesystem.NewStorage(gogitfs.New(auxDir), cache.NewObjectLRUDefault())
	repo, err := git.Open(storer, gogitfs.New(workRoot))
	require.NoError(t, err)
	return repo
}

func noopMatcher() index.Matcher {
	return gitignore.NewMatcher(nil)
}

func TestSynthesize_ProducesTreeWithWorkingTreeFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("world\n"), 0o644))

	repo := openBareBoundTo(t, root)

	hash, err := index.Synthesize(context.Background(), repo, root, noopMatcher())
	require.NoError(t, err)
	require.False(t, hash.IsZero())

	tree, err := object.GetTree(repo.Storer, hash)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range tree.Entries {
		names[e.Name] = true
	}
	require.True(t, names["a.txt"])
	require.True(t, names["sub"])
}

func TestSynthesize_ExcludesGitAndAutosnapDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "config"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".autosnap"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep\n"), 0o644))

	repo := openBareBoundTo(t, root)

	hash, err := index.Synthesize(context.Background(), repo, root, noopMatcher())
	require.NoError(t, err)

	tree, err := object.GetTree(repo.Storer, hash)
	require.NoError(t, err)

	for _, e := range tree.Entries {
		require.NotEqual(t, ".git", e.Name)
		require.NotEqual(t, ".autosnap", e.Name)
	}
}

func TestSynthesize_HonorsIgnoreMatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep.txt"), []byte("keep\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "skip.log"), []byte("skip\n"), 0o644))

	repo := openBareBoundTo(t, root)
	matcher := gitignore.NewMatcher([]gitignore.Pattern{gitignore.ParsePattern("*.log", nil)})

	hash, err := index.Synthesize(context.Background(), repo, root, matcher)
	require.NoError(t, err)

	tree, err := object.GetTree(repo.Storer, hash)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, e := range tree.Entries {
		names[e.Name] = true
	}
	require.True(t, names["keep.txt"])
	require.False(t, names["skip.log"])
}

func TestSynthesize_OrdersTreeEntriesGitCanonically(t *testing.T) {
	root := t.TempDir()
	// "foo" (a directory) and "foo.txt" (a file) share a byte-wise common
	// prefix; git's canonical tree order compares "foo/" against
	// "foo.txt" and sorts the file first, the reverse of a plain
	// lexicographic sort of the bare names ("foo" < "foo.txt").
	require.NoError(t, os.MkdirAll(filepath.Join(root, "foo"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo", "bar.txt"), []byte("bar\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "foo.txt"), []byte("foo\n"), 0o644))

	repo := openBareBoundTo(t, root)

	hash, err := index.Synthesize(context.Background(), repo, root, noopMatcher())
	require.NoError(t, err)

	tree, err := object.GetTree(repo.Storer, hash)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	require.Equal(t, "foo.txt", tree.Entries[0].Name)
	require.Equal(t, "foo", tree.Entries[1].Name)
}
