package gitconfig_test

import (
	"testing"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/gitconfig"
)

func TestLoad_FallsBackToDefaultsWhenUnset(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	cfg, err := gitconfig.Load(root)
	require.NoError(t, err)
	require.Equal(t, gitconfig.Default(), cfg)
}

func TestLoad_FallsBackWhenNotARepository(t *testing.T) {
	root := t.TempDir()

	cfg, err := gitconfig.Load(root)
	require.NoError(t, err)
	require.Equal(t, gitconfig.Default(), cfg)
}

func TestLoad_ReadsAutosnapSection(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Raw.SetOption("autosnap", "", "debounce-ms", "2500")
	cfg.Raw.SetOption("autosnap", "compact", "days", "14")
	require.NoError(t, repo.SetConfig(cfg))

	loaded, err := gitconfig.Load(root)
	require.NoError(t, err)
	require.Equal(t, uint64(2500), loaded.DebounceMS)
	require.Equal(t, uint32(14), loaded.CompactDays)
}

func TestLoad_IgnoresInvalidValues(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.Raw.SetOption("autosnap", "", "debounce-ms", "not-a-number")
	require.NoError(t, repo.SetConfig(cfg))

	loaded, err := gitconfig.Load(root)
	require.NoError(t, err)
	require.Equal(t, gitconfig.Default().DebounceMS, loaded.DebounceMS)
}

func TestIdentityFor_FallsBackWhenUnset(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	id := gitconfig.IdentityFor(root)
	require.Equal(t, "git-autosnap", id.Name)
	require.Equal(t, "git-autosnap@local", id.Email)
}

func TestIdentityFor_UsesConfiguredIdentity(t *testing.T) {
	root := t.TempDir()
	repo, err := git.PlainInit(root, false)
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Ada Lovelace"
	cfg.User.Email = "ada@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	id := gitconfig.IdentityFor(root)
	require.Equal(t, "Ada Lovelace", id.Name)
	require.Equal(t, "ada@example.com", id.Email)
}

func TestCurrentBranch_DetachedWhenNoCommits(t *testing.T) {
	root := t.TempDir()
	_, err := git.PlainInit(root, false)
	require.NoError(t, err)

	require.Equal(t, "DETACHED", gitconfig.CurrentBranch(root))
}

func TestCurrentBranch_NotARepository(t *testing.T) {
	root := t.TempDir()
	require.Equal(t, "DETACHED", gitconfig.CurrentBranch(root))
}
