package daemon_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/daemon"
	"github.com/shuymn/git-autosnap/internal/singleton"
)

func TestStart_AlreadyRunningShortCircuits(t *testing.T) {
	root := t.TempDir()

	guard, err := singleton.AcquireLock(root)
	require.NoError(t, err)
	defer guard.Close()

	message, pid, err := daemon.Start(root)
	require.NoError(t, err)
	require.Equal(t, "already running", message)
	require.Zero(t, pid)
}

func TestStop_AlreadyStoppedWhenNoPIDFile(t *testing.T) {
	root := t.TempDir()

	message, err := daemon.Stop(root)
	require.NoError(t, err)
	require.Equal(t, "already stopped", message)
}

func TestStop_RemovesStalePIDFileAndReportsAlreadyStopped(t *testing.T) {
	root := t.TempDir()
	pidPath := singleton.PidFile(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(pidPath), 0o755))
	require.NoError(t, os.WriteFile(pidPath, []byte("999999\n"), 0o600))

	message, err := daemon.Stop(root)
	require.NoError(t, err)
	require.Equal(t, "already stopped", message)

	_, err = os.Stat(pidPath)
	require.True(t, os.IsNotExist(err))
}

func TestStop_InvalidPIDFileContentsIsReportedAsError(t *testing.T) {
	root := t.TempDir()
	pidPath := singleton.PidFile(root)
	require.NoError(t, os.MkdirAll(filepath.Dir(pidPath), 0o755))
	require.NoError(t, os.WriteFile(pidPath, []byte("not-a-pid\n"), 0o600))

	_, err := daemon.Stop(root)
	require.Error(t, err)

	var invalid *apperr.InvalidPID
	require.ErrorAs(t, err, &invalid)
	require.Equal(t, "not-a-pid", invalid.Raw)
}
