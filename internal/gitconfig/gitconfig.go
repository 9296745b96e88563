// Package gitconfig reads configuration and identity from the primary
// store's git configuration. It never writes to the primary store.
package gitconfig

import (
	"strconv"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

const (
	defaultDebounceMS  = uint64(1000)
	defaultCompactDays = uint32(60)

	fallbackName  = "git-autosnap"
	fallbackEmail = "git-autosnap@local"
)

// Config is the autosnap.* configuration loaded from the primary store.
type Config struct {
	DebounceMS  uint64
	CompactDays uint32
}

// Default returns the zero-config defaults (§3: debounce_ms=1000,
// compact_days=60).
func Default() Config {
	return Config{DebounceMS: defaultDebounceMS, CompactDays: defaultCompactDays}
}

// Load reads autosnap.debounce-ms and autosnap.compact.days from the
// primary store rooted at root, falling back to defaults for missing or
// invalid (non-negative-integer) values.
func Load(root string) (Config, error) {
	cfg := Default()

	repo, err := git.PlainOpen(root)
	if err != nil {
		return cfg, nil //nolint:nilerr // discovery failures fall back to defaults, per spec
	}
	gitCfg, err := repo.Config()
	if err != nil {
		return cfg, nil //nolint:nilerr
	}

	raw := gitCfg.Raw
	if section := raw.Section("autosnap"); section != nil {
		if v, ok := parseUint(section.Option("debounce-ms")); ok {
			cfg.DebounceMS = v
		}
		if compact := section.Subsection("compact"); compact != nil {
			if v, ok := parseUint(compact.Option("days")); ok {
				cfg.CompactDays = uint32(v)
			}
		}
	}

	return cfg, nil
}

func parseUint(raw string) (uint64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return uint64(v), true
}

// Identity is the author/committer identity used for snapshot and baseline
// commits.
type Identity struct {
	Name  string
	Email string
}

// IdentityFor reads user.name/user.email from the primary store, falling
// back to the literal git-autosnap identity (§3).
func IdentityFor(root string) Identity {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return Identity{Name: fallbackName, Email: fallbackEmail}
	}
	cfg, err := repo.Config()
	if err != nil {
		return Identity{Name: fallbackName, Email: fallbackEmail}
	}

	id := Identity{Name: fallbackName, Email: fallbackEmail}
	if cfg.User.Name != "" {
		id.Name = cfg.User.Name
	}
	if cfg.User.Email != "" {
		id.Email = cfg.User.Email
	}
	return id
}

// CurrentBranch returns the primary store's current branch short name, or
// "DETACHED" if HEAD does not point at a branch.
func CurrentBranch(root string) string {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return "DETACHED"
	}
	head, err := repo.Head()
	if err != nil {
		return "DETACHED"
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return "DETACHED"
}

// HeadRef resolves the primary store's current HEAD, if any.
func HeadRef(root string) (*plumbing.Reference, error) {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return nil, err
	}
	return repo.Head()
}
