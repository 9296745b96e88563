package snapshot_test

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/snapshot"
)

func initRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)
	require.NoError(t, layout.EnsureInitialized(root))
	return root
}

var autosnapMessage = regexp.MustCompile(`^AUTOSNAP\[[^\]]+\] \d{4}-\d{2}-\d{2}T\d{2}:\d{2}:.*`)

func TestOnce_RequiresInitializedStore(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	_, _, err = snapshot.Once(context.Background(), root, "")
	require.ErrorIs(t, err, apperr.ErrNotInitialized)
}

func TestOnce_EmptyRepoNoChangesProducesNothing(t *testing.T) {
	root := initRepo(t)

	id, created, err := snapshot.Once(context.Background(), root, "")
	require.NoError(t, err)
	require.False(t, created)
	require.Empty(t, id)
}

func TestOnce_NewFileProducesCommit(t *testing.T) {
	root := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))

	id, created, err := snapshot.Once(context.Background(), root, "")
	require.NoError(t, err)
	require.True(t, created)
	require.Len(t, id, 7)
}

func TestOnce_TwoConsecutiveCallsWithoutChangesYieldAtMostOneCommit(t *testing.T) {
	root := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))

	id1, created1, err := snapshot.Once(context.Background(), root, "")
	require.NoError(t, err)
	require.True(t, created1)
	require.NotEmpty(t, id1)

	id2, created2, err := snapshot.Once(context.Background(), root, "")
	require.NoError(t, err)
	require.False(t, created2)
	require.Empty(t, id2)
}

func TestOnce_CustomMessageIsAppended(t *testing.T) {
	root := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello\n"), 0o644))

	_, created, err := snapshot.Once(context.Background(), root, "checkpoint")
	require.NoError(t, err)
	require.True(t, created)

	storer, err := git.PlainOpen(filepath.Join(root, layout.AuxiliaryDirName))
	require.NoError(t, err)
	head, err := storer.Head()
	require.NoError(t, err)
	commit, err := storer.CommitObject(head.Hash())
	require.NoError(t, err)

	require.Regexp(t, autosnapMessage, commit.Message)
	require.Contains(t, commit.Message, ": checkpoint")
}
