// Package singleton guarantees at-most-one watcher per repository via a
// non-blocking advisory lock on a PID file, and exposes a liveness probe
// used by `status`.
package singleton

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/layout"
)

const pidFileName = "autosnap.pid"

// PidFile returns the PID-file path for a repository root.
func PidFile(root string) string {
	return filepath.Join(layout.AuxiliaryDir(root), pidFileName)
}

// Guard holds the process-singleton lock until Close releases it and
// removes the PID file.
type Guard struct {
	fl   *flock.Flock
	path string
}

// AcquireLock attempts to become the sole watcher for root. On failure it
// returns *apperr.AlreadyRunning with whatever pid was recorded in the file.
func AcquireLock(root string) (*Guard, error) {
	path := PidFile(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("singleton: create autosnap dir: %w", err)
	}

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("singleton: try-lock %s: %w", path, err)
	}
	if !locked {
		pid, _ := readPID(path)
		return nil, &apperr.AlreadyRunning{PID: pid}
	}

	if err := os.Truncate(path, 0); err != nil && !os.IsNotExist(err) {
		_ = fl.Unlock()
		return nil, fmt.Errorf("singleton: truncate %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o600)
	if err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("singleton: open %s: %w", path, err)
	}
	if _, err := f.WriteString(strconv.Itoa(os.Getpid()) + "\n"); err != nil {
		_ = f.Close()
		_ = fl.Unlock()
		return nil, fmt.Errorf("singleton: write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("singleton: close %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("singleton: chmod %s: %w", path, err)
	}

	return &Guard{fl: fl, path: path}, nil
}

// Close releases the lock and best-effort removes the PID file.
func (g *Guard) Close() error {
	if g == nil || g.fl == nil {
		return nil
	}
	err := g.fl.Unlock()
	_ = os.Remove(g.path)
	g.fl = nil
	return err
}

// Status reports true iff the PID file exists and its recorded process is
// alive.
func Status(root string) (bool, error) {
	path := PidFile(root)
	pid, err := readPID(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}

	if err := unix.Kill(pid, 0); err != nil {
		// EPERM means a process with this pid exists but is owned by
		// someone else; still alive for our purposes. Anything else
		// (ESRCH in particular) means the recorded pid is stale.
		if err == unix.EPERM { //nolint:errorlint // unix.Errno compares directly
			return true, nil
		}
		return false, nil
	}
	return true, nil
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	raw := strings.TrimSpace(string(data))
	if raw == "" {
		return 0, &apperr.InvalidPID{Raw: raw}
	}
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &apperr.InvalidPID{Raw: raw}
	}
	return pid, nil
}
