package walker

import "github.com/bmatcuk/doublestar/v4"

// matchGlob wraps doublestar.Match so excludedByGlob can treat a malformed
// user pattern as simply non-matching rather than aborting the walk.
func matchGlob(pattern, relPath string) (bool, error) {
	return doublestar.Match(pattern, relPath)
}
