package logging_test

import (
	"os"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/logging"
)

func TestSetup_WithAutosnapDirReturnsFlushableGuard(t *testing.T) {
	dir := t.TempDir()

	guard := logging.Setup(dir, logging.LevelDebug)
	require.NotNil(t, guard)

	logging.L().Info().Msg("hello from test")
	require.NoError(t, guard.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
}

func TestSetup_WithoutAutosnapDirReturnsNilGuard(t *testing.T) {
	guard := logging.Setup("", logging.LevelWarn)
	require.Nil(t, guard)
	require.NoError(t, guard.Flush())
}

func TestSetup_EnvOverrideTakesPrecedence(t *testing.T) {
	t.Setenv("AUTOSNAP_LOG", "debug")

	guard := logging.Setup("", logging.LevelWarn)
	defer guard.Flush()

	require.NotNil(t, logging.L())
	require.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}
