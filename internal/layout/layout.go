// Package layout defines where the auxiliary .autosnap store lives relative
// to the primary repository, discovers the repository root, and adds the
// auxiliary directory to the primary store's exclude file. Remove does not
// take that exclude line out again.
package layout

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/shuymn/git-autosnap/internal/apperr"
)

// AuxiliaryDirName is the fixed subdirectory hosting the bare auxiliary
// store (§3).
const AuxiliaryDirName = ".autosnap"

const excludeLine = ".autosnap"

// AuxiliaryDir returns the auxiliary store path for the given repository
// root.
func AuxiliaryDir(root string) string {
	return filepath.Join(root, AuxiliaryDirName)
}

// Discover walks upward from startDir until it finds a primary store,
// returning its working directory root.
func Discover(startDir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(startDir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", apperr.ErrNotAVcsRepository
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", apperr.ErrNotAVcsRepository
	}
	return wt.Filesystem.Root(), nil
}

// EnsureInitialized creates the auxiliary bare store if absent, and
// idempotently appends ".autosnap" to the primary store's
// .git/info/exclude file.
func EnsureInitialized(root string) error {
	auxDir := AuxiliaryDir(root)
	if _, err := os.Stat(auxDir); os.IsNotExist(err) {
		if _, err := git.PlainInit(auxDir, true); err != nil {
			return fmt.Errorf("layout: init bare store at %s: %w", auxDir, err)
		}
	} else if err != nil {
		return fmt.Errorf("layout: stat %s: %w", auxDir, err)
	}

	return ensureExcluded(root)
}

// ensureExcluded appends ".autosnap" to .git/info/exclude if it is not
// already present, creating the info/ directory as needed. Grounded on the
// original's add_to_git_exclude (core/git/repo.rs).
func ensureExcluded(root string) error {
	gitDir := filepath.Join(root, ".git")
	if _, err := os.Stat(gitDir); os.IsNotExist(err) {
		// Not a git worktree (unusual, but ensure_initialized tolerates it).
		return nil
	}

	infoDir := filepath.Join(gitDir, "info")
	if err := os.MkdirAll(infoDir, 0o755); err != nil {
		return fmt.Errorf("layout: create %s: %w", infoDir, err)
	}

	excludePath := filepath.Join(infoDir, "exclude")
	present, endsWithNewline, nonEmpty, err := scanExclude(excludePath)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	f, err := os.OpenFile(excludePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("layout: open %s: %w", excludePath, err)
	}
	defer f.Close()

	if nonEmpty && !endsWithNewline {
		if _, err := f.WriteString("\n"); err != nil {
			return fmt.Errorf("layout: write %s: %w", excludePath, err)
		}
	}
	if _, err := f.WriteString(excludeLine + "\n"); err != nil {
		return fmt.Errorf("layout: write %s: %w", excludePath, err)
	}
	return nil
}

func scanExclude(path string) (present, endsWithNewline, nonEmpty bool, err error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, false, false, nil
	}
	if err != nil {
		return false, false, false, fmt.Errorf("layout: read %s: %w", path, err)
	}
	nonEmpty = len(data) > 0
	endsWithNewline = nonEmpty && data[len(data)-1] == '\n'

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == excludeLine {
			present = true
			break
		}
	}
	return present, endsWithNewline, nonEmpty, scanner.Err()
}

// Remove deletes the auxiliary directory (used by `uninstall`).
func Remove(root string) error {
	auxDir := AuxiliaryDir(root)
	if _, err := os.Stat(auxDir); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(auxDir); err != nil {
		return fmt.Errorf("layout: remove %s: %w", auxDir, err)
	}
	return nil
}

// Exists reports whether the auxiliary store has been initialized.
func Exists(root string) bool {
	_, err := os.Stat(AuxiliaryDir(root))
	return err == nil
}
