package walker

import (
	"path/filepath"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/diag"
)

// gitignoreLookup wraps the project root's single .gitignore matcher,
// mirroring teacher's GitignoreParser.LoadGitignore(rootPath) call site:
// only the root .gitignore is consulted, not nested ones.
type gitignoreLookup struct {
	matcher *config.GitignoreMatcher
}

func newGitignoreLookup(root string) *gitignoreLookup {
	m, err := config.LoadGitignore(root)
	if err != nil {
		diag.Index("walk: gitignore load error %s: %v", root, err)
	}
	return &gitignoreLookup{matcher: m}
}

// match reports whether path (absolute, under root) is excluded.
func (l *gitignoreLookup) match(root, path string, isDir bool) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return l.matcher.Match(rel, isDir)
}
