// Package query implements the three read-side engines of spec.md §4.9-4.11:
// the grep query engine, the definition query engine, and the caller/callee
// tree builder. All three run against already-loaded FileIndex/ContentIndex/
// DefinitionIndex snapshots — no index mutation happens here.
package query

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// PathFilter holds the path-based exclusion options common to grep, find,
// and the call-tree builder (spec.md §4.9, §4.11).
type PathFilter struct {
	Exclude    []string // glob patterns matched against the relative path
	ExcludeDir []string // directory name/glob components to reject
	Ext        []string // allowed extensions, compared to the file's own extension exactly
}

// Allowed reports whether relPath survives the filter.
func (f PathFilter) Allowed(relPath string) bool {
	if len(f.Ext) > 0 {
		ext := strings.TrimPrefix(path.Ext(relPath), ".")
		if !containsFold(f.Ext, ext) {
			return false
		}
	}
	for _, pat := range f.ExcludeDir {
		if pathHasDirComponent(relPath, pat) {
			return false
		}
	}
	for _, pat := range f.Exclude {
		if ok, _ := doublestar.Match(pat, relPath); ok {
			return false
		}
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// pathHasDirComponent reports whether any directory segment of relPath
// equals or glob-matches pat.
func pathHasDirComponent(relPath, pat string) bool {
	parts := strings.Split(path.Dir(relPath), "/")
	for _, p := range parts {
		if p == pat {
			return true
		}
		if ok, _ := doublestar.Match(pat, p); ok {
			return true
		}
	}
	return false
}
