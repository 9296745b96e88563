// Package opslock implements the advisory exclusive file lock that
// serializes every writer of the auxiliary store: the Snapshot Engine and
// the Compaction Engine never mutate refs, the index, or objects except
// while holding this lock.
package opslock

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/shuymn/git-autosnap/internal/layout"
)

const lockFileName = "autosnap.ops.lock"

// Path returns the ops-lock file path for a repository root.
func Path(root string) string {
	return filepath.Join(layout.AuxiliaryDir(root), lockFileName)
}

// Guard holds the ops lock until Close releases it.
type Guard struct {
	fl *flock.Flock
}

// Acquire blocks until the exclusive lock is obtained. Callers rely on this
// blocking indefinitely to serialize, not to fail fast.
func Acquire(root string) (*Guard, error) {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("opslock: create autosnap dir: %w", err)
	}

	fl := flock.New(path)
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("opslock: acquire %s: %w", path, err)
	}
	return &Guard{fl: fl}, nil
}

// Close releases the lock unconditionally. Safe to call once; subsequent
// calls are no-ops.
func (g *Guard) Close() error {
	if g == nil || g.fl == nil {
		return nil
	}
	err := g.fl.Unlock()
	g.fl = nil
	return err
}
