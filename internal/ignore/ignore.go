// Package ignore builds the composite ignore matcher the Index Synthesizer
// and the watcher consult, and reports which files it read so the watcher
// can detect edits to them (§4.G).
package ignore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	gitconfig "github.com/go-git/go-git/v5/plumbing/format/config"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

// hardExcludes are unconditionally excluded regardless of any project or
// environment ignore source (§4.G: "/.git and /.autosnap anchored at root").
var hardExcludes = []string{".git", ".autosnap"}

// Build returns a composite matcher rooted at root, together with the set
// of ignore files it loaded. Environment-origin ignore sources (the user's
// global excludesfile) are only consulted when no project-wide exclude
// source was found, mirroring the original's precedence.
func Build(root string) (gitignore.Matcher, []string, error) {
	var patterns []gitignore.Pattern
	var loaded []string

	projectPatterns, projectFiles, foundProjectWide, err := loadProjectPatterns(root)
	if err != nil {
		return nil, nil, err
	}
	patterns = append(patterns, projectPatterns...)
	loaded = append(loaded, projectFiles...)

	if !foundProjectWide {
		globalPatterns, globalFile := loadGlobalPatterns()
		patterns = append(patterns, globalPatterns...)
		if globalFile != "" {
			loaded = append(loaded, globalFile)
		}
	}

	for _, excl := range hardExcludes {
		patterns = append(patterns, gitignore.ParsePattern("/"+excl, nil))
	}

	return gitignore.NewMatcher(patterns), loaded, nil
}

// loadProjectPatterns walks root collecting every .gitignore it finds, plus
// the repository-wide .git/info/exclude. foundProjectWide reports whether a
// repo-root .gitignore or a non-empty info/exclude was present, gating the
// fallback to environment-origin sources.
func loadProjectPatterns(root string) (patterns []gitignore.Pattern, files []string, foundProjectWide bool, err error) {
	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			if rel == ".git" || rel == ".autosnap" {
				return filepath.SkipDir
			}
			return nil
		}
		if info.Name() != ".gitignore" {
			return nil
		}

		dir := filepath.Dir(rel)
		var domain []string
		if dir != "." {
			domain = strings.Split(filepath.ToSlash(dir), "/")
		}
		ps, readErr := readIgnoreFile(path, domain)
		if readErr != nil {
			return readErr
		}
		patterns = append(patterns, ps...)
		files = append(files, path)
		if dir == "." {
			foundProjectWide = true
		}
		return nil
	})
	if err != nil {
		return nil, nil, false, err
	}

	excludePath := filepath.Join(root, ".git", "info", "exclude")
	if ps, readErr := readIgnoreFile(excludePath, nil); readErr == nil && len(ps) > 0 {
		patterns = append(patterns, ps...)
		files = append(files, excludePath)
		foundProjectWide = true
	}

	return patterns, files, foundProjectWide, nil
}

// loadGlobalPatterns reads the user's global gitignore, the file named by
// core.excludesfile in ~/.gitconfig, if any is configured, and reports that
// file's path.
func loadGlobalPatterns() ([]gitignore.Pattern, string) {
	patterns, err := gitignore.LoadGlobalPatterns(osfs.New("/"))
	if err != nil || len(patterns) == 0 {
		return nil, ""
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return patterns, ""
	}
	f, err := os.Open(filepath.Join(home, ".gitconfig"))
	if err != nil {
		return patterns, ""
	}
	defer f.Close()
	raw := gitconfig.New()
	if err := gitconfig.NewDecoder(f).Decode(raw); err != nil {
		return patterns, ""
	}
	path := raw.Section("core").Option("excludesfile")
	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(home, path[2:])
	}
	return patterns, path
}

func readIgnoreFile(path string, domain []string) ([]gitignore.Pattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return gitignore.ParsePatterns(data, domain), nil
}
