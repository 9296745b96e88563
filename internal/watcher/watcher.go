// Package watcher implements the single-threaded event-reaction core: the
// reactor arbitrates between filesystem events, signals, ignore-file
// reloads, and binary-replacement requests, deferring all heavy work until
// after it stops via a monotonic exit-action arbiter (§4.H).
package watcher

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"github.com/shuymn/git-autosnap/internal/debounce"
	"github.com/shuymn/git-autosnap/internal/layout"
	"github.com/shuymn/git-autosnap/internal/logging"
	"github.com/shuymn/git-autosnap/internal/snapshot"
)

// ExitAction is a totally-ordered value describing the work the watcher
// must perform after its reactor stops. Held in a shared atomic and only
// ever elevated, never lowered (§3, §4.H).
type ExitAction uint32

const (
	None ExitAction = iota
	Snapshot
	ReloadExec
	BinaryUpdateExec
)

const (
	binaryPollInterval = 500 * time.Millisecond
	binaryPollMax       = 30 // 500ms * 30 = 15s
	binaryWaitTimeout   = 16 * time.Second
	preExecSettle       = 50 * time.Millisecond
)

// Watcher owns the reactor for one repository.
type Watcher struct {
	root           string
	debounceMS     uint64
	trackedIgnore  map[string]struct{}

	fsWatcher *fsnotify.Watcher

	exitAction         atomic.Uint32
	snapshotInProgress atomic.Bool
	binaryUpdateCh     chan bool

	exePath     string
	exeIno      uint64
	exeModTime  time.Time

	logGuard *logging.Guard
}

// New creates a Watcher rooted at root. trackedIgnoreFiles is the set of
// ignore-file paths the Ignore Filterer read (§4.G); edits to any of them
// trigger a reload-via-re-exec.
func New(root string, debounceMS uint64, trackedIgnoreFiles []string, logGuard *logging.Guard) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: create fsnotify watcher: %w", err)
	}

	tracked := make(map[string]struct{}, len(trackedIgnoreFiles))
	for _, p := range trackedIgnoreFiles {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		tracked[abs] = struct{}{}
	}

	w := &Watcher{
		root:          root,
		debounceMS:    debounceMS,
		trackedIgnore: tracked,
		fsWatcher:     fsw,
		binaryUpdateCh: make(chan bool, 1),
		logGuard:      logGuard,
	}

	if err := w.captureExeMetadata(); err != nil {
		logging.L().Warn().Err(err).Msg("watcher: could not stat own executable; binary-update handshake disabled")
	}

	if err := w.watchRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watcher: watch %s: %w", root, err)
	}

	return w, nil
}

func (w *Watcher) captureExeMetadata() error {
	exe, err := os.Executable()
	if err != nil {
		return err
	}
	info, err := os.Stat(exe)
	if err != nil {
		return err
	}
	w.exePath = exe
	w.exeModTime = info.ModTime()
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		w.exeIno = st.Ino
	}
	return nil
}

func (w *Watcher) watchRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		relSlash := filepath.ToSlash(rel)
		if relSlash == layout.AuxiliaryDirName || strings.HasPrefix(relSlash, layout.AuxiliaryDirName+"/") ||
			relSlash == ".git" || strings.HasPrefix(relSlash, ".git/") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

// Run drives the reactor until ctx is cancelled or an exit action stops it,
// then performs the deferred exit-time work.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh, unix.SIGTERM, unix.SIGINT, unix.SIGHUP, unix.SIGUSR1, unix.SIGUSR2)
	defer signal.Stop(sigCh)

	debouncer := debounce.New(time.Duration(w.debounceMS)*time.Millisecond, w.onSettledBatch)
	defer debouncer.Close()

reactor:
	for {
		select {
		case <-ctx.Done():
			break reactor

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				break reactor
			}
			if w.isTrackedIgnoreFile(ev.Name) {
				w.elevate(ReloadExec)
				break reactor
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.fsWatcher.Add(ev.Name)
				}
			}
			debouncer.Notify()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				break reactor
			}
			logging.L().Error().Err(err).Msg("watcher: fsnotify error")

		case sig := <-sigCh:
			if w.handleSignal(sig) {
				break reactor
			}
		}
	}

	return w.runExitArbiter(ctx)
}

func (w *Watcher) isTrackedIgnoreFile(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	_, ok := w.trackedIgnore[abs]
	return ok
}

// onSettledBatch is the debounced filesystem-events handler (§4.H step 3).
func (w *Watcher) onSettledBatch() {
	if !w.snapshotInProgress.CompareAndSwap(false, true) {
		return // next batch, after debounce, will take care of it
	}
	defer w.snapshotInProgress.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	w.runSnapshot(ctx, "")
}

// handleSignal consumes one signal and reports whether the reactor must
// stop (§4.H step 2).
func (w *Watcher) handleSignal(sig os.Signal) (stop bool) {
	switch sig {
	case unix.SIGTERM, unix.SIGINT:
		w.elevate(Snapshot)
		return true

	case unix.SIGHUP:
		logging.L().Info().Msg("watcher: SIGHUP received (reserved, ignored)")
		return false

	case unix.SIGUSR1:
		if w.snapshotInProgress.CompareAndSwap(false, true) {
			go func() {
				defer w.snapshotInProgress.Store(false)
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				w.runSnapshot(ctx, "")
			}()
		} else {
			logging.L().Info().Msg("watcher: snapshot already in progress")
		}
		return false

	case unix.SIGUSR2:
		w.elevate(BinaryUpdateExec)
		go w.pollBinaryUpdate()
		return true

	default:
		return false
	}
}

func (w *Watcher) runSnapshot(ctx context.Context, message string) {
	id, created, err := snapshot.Once(ctx, w.root, message)
	switch {
	case err != nil:
		logging.L().Error().Err(err).Msg("watcher: snapshot failed")
	case !created:
		logging.L().Debug().Msg("watcher: snapshot skipped (no change)")
	default:
		logging.L().Info().Str("commit", id).Msg("watcher: snapshot created")
	}
}

// elevate is the compare-exchange loop that only ever increases exitAction
// (§4.H "Elevation semantics").
func (w *Watcher) elevate(new ExitAction) {
	for {
		cur := ExitAction(w.exitAction.Load())
		if new <= cur {
			return
		}
		if w.exitAction.CompareAndSwap(uint32(cur), uint32(new)) {
			return
		}
	}
}

// pollBinaryUpdate re-stats the executable every 500ms for up to 15s,
// reporting readiness as soon as its inode or modification time changes
// (§4.H "Binary-change poller").
func (w *Watcher) pollBinaryUpdate() {
	if w.exePath == "" {
		w.sendBinaryUpdate(false)
		return
	}
	for i := 0; i < binaryPollMax; i++ {
		time.Sleep(binaryPollInterval)
		info, err := os.Stat(w.exePath)
		if err != nil {
			continue
		}
		var ino uint64
		if st, ok := info.Sys().(*syscall.Stat_t); ok {
			ino = st.Ino
		}
		if ino != w.exeIno || !info.ModTime().Equal(w.exeModTime) {
			w.sendBinaryUpdate(true)
			return
		}
	}
	w.sendBinaryUpdate(false)
}

func (w *Watcher) sendBinaryUpdate(ready bool) {
	select {
	case w.binaryUpdateCh <- ready:
	default: // full channel is silently dropped (§4.H)
	}
}

// runExitArbiter performs the deferred work selected by exitAction, after
// the reactor has stopped (§4.H "Exit-action arbiter").
func (w *Watcher) runExitArbiter(ctx context.Context) error {
	action := ExitAction(w.exitAction.Load())

	if action >= Snapshot {
		snapCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		w.runSnapshot(snapCtx, "")
		cancel()
	}

	switch action {
	case ReloadExec:
		return w.reexec()

	case BinaryUpdateExec:
		select {
		case ready := <-w.binaryUpdateCh:
			if ready {
				return w.reexec()
			}
		case <-time.After(binaryWaitTimeout):
		}
		return nil

	default:
		return nil
	}
}

// reexec replaces the current process image with a fresh invocation using
// identical arguments. Log buffers are flushed first so output reaches disk
// ahead of the replacement (§4.H "Pre-exec discipline"). If exec fails, the
// caller falls through and the process exits normally.
func (w *Watcher) reexec() error {
	if w.logGuard != nil {
		_ = w.logGuard.Flush()
	}
	time.Sleep(preExecSettle)

	exe := w.exePath
	if exe == "" {
		var err error
		exe, err = os.Executable()
		if err != nil {
			logging.L().Error().Err(err).Msg("watcher: re-exec: could not resolve executable path")
			return nil
		}
	}

	argv := os.Args
	if err := syscall.Exec(exe, argv, os.Environ()); err != nil {
		logging.L().Error().Err(err).Msg("watcher: re-exec failed; exiting normally")
	}
	return nil
}
