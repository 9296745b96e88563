package ignore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/ignore"
)

func TestBuild_MatchesProjectIgnoreRules(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "info"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".gitignore"), []byte("*.log\nbuild/\n"), 0o644))

	matcher, files, err := ignore.Build(root)
	require.NoError(t, err)
	require.NotEmpty(t, files)

	require.True(t, matcher.Match([]string{"debug.log"}, false))
	require.True(t, matcher.Match([]string{"build"}, true))
	require.False(t, matcher.Match([]string{"main.go"}, false))
}

func TestBuild_HardExcludesAlwaysMatch(t *testing.T) {
	root := t.TempDir()

	matcher, _, err := ignore.Build(root)
	require.NoError(t, err)

	require.True(t, matcher.Match([]string{".git"}, true))
	require.True(t, matcher.Match([]string{".autosnap"}, true))
}

func TestBuild_NestedGitignoreScopedToItsDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", ".gitignore"), []byte("local.tmp\n"), 0o644))

	matcher, _, err := ignore.Build(root)
	require.NoError(t, err)

	require.True(t, matcher.Match([]string{"sub", "local.tmp"}, false))
	require.False(t, matcher.Match([]string{"local.tmp"}, false))
}
