// Package walker implements the parallel, gitignore-aware, extension-filtered
// file enumerator (spec.md §4.4), shared by every index builder.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/diag"
)

// File describes one enumerated file.
type File struct {
	Path         string // absolute path
	RelPath      string // slash-separated, relative to root
	Size         int64
	ModifiedSecs int64
	IsDir        bool
}

// Options controls a single walk.
type Options struct {
	Root             string
	Extensions       map[string]struct{} // lowercase, no leading dot; empty means "all"
	Exclude          []string            // doublestar glob patterns, relative to root
	RespectGitignore bool
	FollowSymlinks   bool
	MaxFileSize      int64 // 0 means unlimited
	MaxGoroutines    int
}

// NewOptions builds walker Options from a loaded Config.
func NewOptions(cfg *config.Config) Options {
	exts := make(map[string]struct{}, len(cfg.Index.Extensions))
	for _, e := range cfg.Index.Extensions {
		exts[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}
	return Options{
		Root:             cfg.Project.Root,
		Extensions:       exts,
		Exclude:          cfg.Exclude,
		RespectGitignore: cfg.Index.RespectGitignore,
		FollowSymlinks:   cfg.Index.FollowSymlinks,
		MaxFileSize:      cfg.Index.MaxFileSize,
		MaxGoroutines:    cfg.Performance.MaxGoroutines,
	}
}

// Walk enumerates files under opts.Root in parallel (one goroutine per
// top-level subdirectory, bounded by opts.MaxGoroutines), honoring gitignore
// semantics and the extension filter, and returns them sorted by RelPath for
// deterministic file_id assignment downstream.
func Walk(ctx context.Context, opts Options) ([]File, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}

	var ignore *gitignoreLookup
	if opts.RespectGitignore {
		ignore = newGitignoreLookup(root)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		diag.Index("walk: root read error %s: %v", root, err)
		return nil, err
	}

	maxProcs := opts.MaxGoroutines
	if maxProcs <= 0 {
		maxProcs = 4
	}

	var mu sync.Mutex
	var results []File

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxProcs)

	var walkDir func(dir, rel string) error
	walkDir = func(dir, rel string) error {
		subEntries, err := os.ReadDir(dir)
		if err != nil {
			// spec.md §4.4: failure to read a single directory is non-fatal.
			diag.Index("walk: skip unreadable dir %s: %v", dir, err)
			return nil
		}
		for _, e := range subEntries {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			name := e.Name()
			childPath := filepath.Join(dir, name)
			childRel := name
			if rel != "" {
				childRel = rel + "/" + name
			}

			info, err := e.Info()
			if err != nil {
				diag.Index("walk: skip unreadable entry %s: %v", childPath, err)
				continue
			}
			isDir := e.IsDir()
			if info.Mode()&os.ModeSymlink != 0 {
				if !opts.FollowSymlinks {
					continue
				}
				target, err := os.Stat(childPath)
				if err != nil {
					continue
				}
				isDir = target.IsDir()
			}

			if excludedByGlob(childRel, opts.Exclude) {
				continue
			}
			if ignore != nil && ignore.match(root, childPath, isDir) {
				continue
			}

			if isDir {
				if err := walkDir(childPath, childRel); err != nil {
					return err
				}
				continue
			}

			if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
				continue
			}
			if !extensionAllowed(name, opts.Extensions) {
				continue
			}

			f := File{
				Path:         childPath,
				RelPath:      filepath.ToSlash(childRel),
				Size:         info.Size(),
				ModifiedSecs: info.ModTime().Unix(),
				IsDir:        false,
			}
			mu.Lock()
			results = append(results, f)
			mu.Unlock()
		}
		return nil
	}

	for _, e := range entries {
		e := e
		name := e.Name()
		if excludedByGlob(name, opts.Exclude) {
			continue
		}
		if ignore != nil && ignore.match(root, filepath.Join(root, name), e.IsDir()) {
			continue
		}
		if e.IsDir() {
			g.Go(func() error {
				return walkDir(filepath.Join(root, name), name)
			})
		} else {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if opts.MaxFileSize > 0 && info.Size() > opts.MaxFileSize {
				continue
			}
			if !extensionAllowed(name, opts.Extensions) {
				continue
			}
			mu.Lock()
			results = append(results, File{
				Path:         filepath.Join(root, name),
				RelPath:      name,
				Size:         info.Size(),
				ModifiedSecs: info.ModTime().Unix(),
			})
			mu.Unlock()
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].RelPath < results[j].RelPath })
	return results, nil
}

func extensionAllowed(name string, exts map[string]struct{}) bool {
	return ExtensionAllowed(name, exts)
}

// ExtensionAllowed reports whether name's extension is in exts (or exts is
// empty, meaning "all"). Exported so the watcher can apply the identical
// filter to single-file events without re-walking.
func ExtensionAllowed(name string, exts map[string]struct{}) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	_, ok := exts[ext]
	return ok
}

func excludedByGlob(relPath string, patterns []string) bool {
	return ExcludedByGlob(relPath, patterns)
}

// ExcludedByGlob reports whether relPath matches any doublestar pattern in
// patterns. Exported for the watcher's per-event filtering.
func ExcludedByGlob(relPath string, patterns []string) bool {
	relPath = filepath.ToSlash(relPath)
	for _, p := range patterns {
		if ok, _ := matchGlob(p, relPath); ok {
			return true
		}
	}
	return false
}
