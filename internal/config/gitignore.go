package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// GitignoreMatcher parses a .gitignore file and matches relative paths
// against its patterns, adapted from teacher's internal/config/gitignore.go
// but rewritten against doublestar.Match (already wired for C4's include/
// exclude globs) instead of a hand-rolled regex compiler.
type GitignoreMatcher struct {
	patterns []gitignorePattern
}

type gitignorePattern struct {
	base     string // glob matching the path itself
	nested   string // glob matching anything underneath it
	negate   bool
	dirOnly  bool
	anchored bool // pattern contains a "/" before the final segment
}

// LoadGitignore reads root/.gitignore if present; a missing file is not an
// error (spec.md §4.4 "failure to read a single directory is non-fatal").
func LoadGitignore(root string) (*GitignoreMatcher, error) {
	m := &GitignoreMatcher{}
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return m, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := gitignorePattern{}
		if strings.HasPrefix(line, "!") {
			p.negate = true
			line = line[1:]
		}
		if strings.HasSuffix(line, "/") {
			p.dirOnly = true
			line = strings.TrimSuffix(line, "/")
		}
		p.anchored = strings.Contains(line, "/")
		line = strings.TrimPrefix(line, "/")
		if !p.anchored {
			line = "**/" + line
		}
		p.base = line
		p.nested = line + "/**"
		m.patterns = append(m.patterns, p)
	}
	return m, scanner.Err()
}

// Match reports whether relPath (slash-separated, relative to root) is
// excluded by the loaded .gitignore patterns. Later patterns override
// earlier ones, and a "!"-prefixed pattern re-includes a previously
// excluded path, matching git's own last-match-wins semantics.
func (m *GitignoreMatcher) Match(relPath string, isDir bool) bool {
	if m == nil {
		return false
	}
	relPath = filepath.ToSlash(relPath)
	excluded := false
	for _, p := range m.patterns {
		matchesSelf := (!p.dirOnly || isDir)
		if matchesSelf {
			if ok, _ := doublestar.Match(p.base, relPath); ok {
				excluded = !p.negate
				continue
			}
		}
		// a dirOnly pattern still excludes everything found underneath it,
		// even though it never matches a same-named plain file itself.
		if ok, _ := doublestar.Match(p.nested, relPath); ok {
			excluded = !p.negate
		}
	}
	return excluded
}
