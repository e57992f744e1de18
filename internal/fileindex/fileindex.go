// Package fileindex implements the flat file-metadata index (spec.md §4.5):
// one walk, serialized whole, queried by substring/regex/OR over file names
// with dirs-only/files-only filtering and exact-stem/prefix/substring ranking.
package fileindex

import (
	"context"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pustynsky/codescope/internal/codec"
	"github.com/pustynsky/codescope/internal/cserr"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/walker"
)

func init() {
	codec.RegisterConcreteTypes(Snapshot{})
}

// Entry is one file's metadata, mirroring teacher's FilePathIndex row shape.
type Entry struct {
	Path         string // relative to Root, slash-separated
	Size         int64
	ModifiedSecs int64
	IsDir        bool
}

// Snapshot is the on-disk, gob-encodable payload (spec.md §3's FileIndex
// shape). Index wraps one behind a RWMutex for concurrent query/rebuild.
type Snapshot struct {
	Root       string
	Entries    []Entry
	CreatedAt  int64
	MaxAgeSecs int64
}

// Index is the read-mostly, whole-file-replace-on-rebuild in-memory form.
type Index struct {
	mu sync.RWMutex
	Snapshot
}

// New constructs an empty index rooted at root.
func New(root string, maxAgeSecs int64, createdAt int64) *Index {
	return &Index{Snapshot: Snapshot{Root: root, MaxAgeSecs: maxAgeSecs, CreatedAt: createdAt}}
}

// Build performs one walk and replaces Entries wholesale.
func Build(ctx context.Context, opts walker.Options, maxAgeSecs int64, nowUnix int64) (*Index, error) {
	files, err := walker.Walk(ctx, opts)
	if err != nil {
		return nil, cserr.Wrap(cserr.IO, "fileindex.Build", err)
	}
	idx := New(opts.Root, maxAgeSecs, nowUnix)
	idx.Entries = make([]Entry, 0, len(files))
	for _, f := range files {
		idx.Entries = append(idx.Entries, Entry{
			Path:         f.RelPath,
			Size:         f.Size,
			ModifiedSecs: f.ModifiedSecs,
			IsDir:        f.IsDir,
		})
	}
	diag.Index("fileindex: built %d entries under %s", len(idx.Entries), opts.Root)
	return idx, nil
}

// Save writes the index via the compressed codec.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	snap := idx.Snapshot
	idx.mu.RUnlock()
	return codec.Save(snap, path)
}

// Load reads an index previously written by Save.
func Load(path string) (*Index, error) {
	var snap Snapshot
	if err := codec.Load(path, &snap); err != nil {
		return nil, err
	}
	return &Index{Snapshot: snap}, nil
}

// IsStale reports whether the index has aged past MaxAgeSecs as of nowUnix.
func (idx *Index) IsStale(nowUnix int64) bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.MaxAgeSecs <= 0 {
		return false
	}
	age := nowUnix - idx.CreatedAt
	if age < 0 {
		return false
	}
	return age > idx.MaxAgeSecs
}

// QueryOptions controls a FileIndex lookup (spec.md §4.5).
type QueryOptions struct {
	Substring  string // comma-separated OR terms when non-regex
	Regex      string
	DirsOnly   bool
	FilesOnly  bool
	MaxResults int
}

// Result is one ranked hit.
type Result struct {
	Path         string
	Size         int64
	ModifiedSecs int64
	IsDir        bool
}

// rank orders matches the way spec.md §4.5 specifies: exact stem match
// beats prefix match beats plain substring match.
const (
	rankExact = iota
	rankPrefix
	rankSubstring
)

// Query runs one of substring/regex/OR search over file names, applying the
// dirs-only/files-only filter, then ranking per spec.md §4.5.
func (idx *Index) Query(opts QueryOptions) ([]Result, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var re *regexp.Regexp
	var err error
	if opts.Regex != "" {
		re, err = regexp.Compile(opts.Regex)
		if err != nil {
			return nil, cserr.Wrap(cserr.Parse, "fileindex.Query", err)
		}
	}

	var terms []string
	if re == nil && opts.Substring != "" {
		for _, t := range strings.Split(opts.Substring, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				terms = append(terms, strings.ToLower(t))
			}
		}
	}

	type rankedResult struct {
		r    Result
		rank int
	}
	var matches []rankedResult

	for _, e := range idx.Entries {
		if opts.DirsOnly && !e.IsDir {
			continue
		}
		if opts.FilesOnly && e.IsDir {
			continue
		}

		base := filepath.Base(e.Path)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		lowerBase := strings.ToLower(base)
		lowerStem := strings.ToLower(stem)

		matched := false
		rank := rankSubstring

		switch {
		case re != nil:
			matched = re.MatchString(e.Path)
		case len(terms) > 0:
			for _, term := range terms {
				if lowerBase == term || lowerStem == term {
					matched, rank = true, rankExact
					break
				}
				if strings.HasPrefix(lowerBase, term) {
					matched, rank = true, rankPrefix
					break
				}
				if strings.Contains(lowerBase, term) {
					matched, rank = true, rankSubstring
				}
			}
		default:
			matched = true
		}

		if !matched {
			continue
		}

		matches = append(matches, rankedResult{
			r: Result{
				Path:         e.Path,
				Size:         e.Size,
				ModifiedSecs: e.ModifiedSecs,
				IsDir:        e.IsDir,
			},
			rank: rank,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].rank != matches[j].rank {
			return matches[i].rank < matches[j].rank
		}
		return len(matches[i].r.Path) < len(matches[j].r.Path)
	})

	if opts.MaxResults > 0 && len(matches) > opts.MaxResults {
		matches = matches[:opts.MaxResults]
	}

	out := make([]Result, len(matches))
	for i, m := range matches {
		out[i] = m.r
	}
	return out, nil
}

// Replace atomically swaps Entries, used by watcher-driven full rebuilds.
func (idx *Index) Replace(entries []Entry, createdAt int64) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.Entries = entries
	idx.CreatedAt = createdAt
}

// RemoveFile drops relPath's entry, if present (spec.md §4.12 watcher
// removal: the FileIndex needs no index structures to prune since it is a
// flat slice, just the row itself).
func (idx *Index) RemoveFile(relPath string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, e := range idx.Entries {
		if e.Path == relPath {
			idx.Entries = append(idx.Entries[:i], idx.Entries[i+1:]...)
			return
		}
	}
}

// UpsertFile inserts or replaces relPath's entry with fresh metadata.
func (idx *Index) UpsertFile(e Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for i, existing := range idx.Entries {
		if existing.Path == e.Path {
			idx.Entries[i] = e
			return
		}
	}
	idx.Entries = append(idx.Entries, e)
}

// Snap returns a defensive copy of the current entries.
func (idx *Index) Snap() []Entry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, len(idx.Entries))
	copy(out, idx.Entries)
	return out
}
