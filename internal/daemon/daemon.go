// Package daemon detaches the watcher into a background session and
// manages its orderly shutdown via the PID file and a termination signal
// (§4.I).
package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/shuymn/git-autosnap/internal/apperr"
	"github.com/shuymn/git-autosnap/internal/singleton"
)

const (
	stopPollInterval = 100 * time.Millisecond
	stopPollMax      = 20 // 100ms * 20 = 2s
)

// Start spawns a detached child running "<exe> start" with its working
// directory set to root, unless a watcher is already running. It reports a
// human-readable status line and the child's pid.
func Start(root string) (message string, pid int, err error) {
	running, err := singleton.Status(root)
	if err != nil {
		return "", 0, fmt.Errorf("daemon: check status: %w", err)
	}
	if running {
		return "already running", 0, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", 0, fmt.Errorf("daemon: resolve executable: %w", err)
	}

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return "", 0, fmt.Errorf("daemon: open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	cmd := exec.Command(exe, "start")
	cmd.Dir = root
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	// Setsid detaches the child from the controlling terminal; only
	// async-signal-safe operations are permitted between fork and exec, so
	// all of the watcher's own setup happens after exec, inside "start".
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return "", 0, fmt.Errorf("daemon: spawn watcher: %w", err)
	}

	return fmt.Sprintf("started (pid=%d)", cmd.Process.Pid), cmd.Process.Pid, nil
}

// Stop reads the PID file, sends SIGTERM, and polls for the PID file's
// removal for up to 2s. A missing PID file is treated as already stopped.
func Stop(root string) (message string, err error) {
	pidPath := singleton.PidFile(root)
	data, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return "already stopped", nil
	}
	if err != nil {
		return "", fmt.Errorf("daemon: read %s: %w", pidPath, err)
	}

	pid, perr := parsePID(data)
	if perr != nil {
		return "", perr
	}

	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if err == unix.ESRCH { //nolint:errorlint // unix.Errno compares directly
			_ = os.Remove(pidPath)
			return "already stopped", nil
		}
		return "", fmt.Errorf("daemon: signal pid %d: %w", pid, err)
	}

	for i := 0; i < stopPollMax; i++ {
		if _, err := os.Stat(pidPath); os.IsNotExist(err) {
			return "stopped", nil
		}
		time.Sleep(stopPollInterval)
	}
	return "stop timed out", nil
}

func parsePID(data []byte) (int, error) {
	raw := strings.TrimSpace(string(data))
	pid, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &apperr.InvalidPID{Raw: raw}
	}
	return pid, nil
}
