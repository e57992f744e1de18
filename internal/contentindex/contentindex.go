// Package contentindex implements the ContentIndex (spec.md §4.6): a
// parallel-built inverted token index with TF-IDF-rankable postings, plus
// the trigram substring accelerator (§4.7).
package contentindex

import (
	"sort"
	"sync"

	"github.com/pustynsky/codescope/internal/codec"
)

func init() {
	codec.RegisterConcreteTypes(Snapshot{})
}

// Posting records every line on which a token appears in one file.
type Posting struct {
	FileID uint32
	Lines  []uint32 // ascending, unique (spec.md §4.6 guarantee)
}

// FileMeta is one indexed file's identity and token count, enough to drive
// TF-IDF and to map back to a path for result rendering.
type FileMeta struct {
	Path       string
	TokenCount int
}

// Snapshot is the gob-encodable, whole-file-replace payload.
type Snapshot struct {
	Root        string
	Files       []FileMeta          // index == FileID
	Tokens      []string            // index == TokenID, sorted ascending as built; UpsertFile appends new tokens at the end
	Postings    [][]Posting         // index == TokenID, ascending by FileID as built; UpsertFile appends at the end
	Trigram     map[string][]uint32 // 3-byte window -> sorted, deduped TokenIDs
	TotalTokens int64
	LossyFiles  int
	CreatedAt   int64
	MaxAgeSecs  int64
}

// Index is the read-mostly in-memory wrapper with an index-by-name lookup
// built once after load/build so Query doesn't linear-scan Tokens.
type Index struct {
	snap Snapshot
	rw sync.RWMutex

	byToken map[string]int    // token -> TokenID, derived, not persisted
	byPath  map[string]uint32 // path -> FileID, derived, not persisted
}

func wrap(snap Snapshot) *Index {
	idx := &Index{snap: snap}
	idx.rebuildLookups()
	return idx
}

func (idx *Index) rebuildLookups() {
	idx.byToken = make(map[string]int, len(idx.snap.Tokens))
	for i, t := range idx.snap.Tokens {
		idx.byToken[t] = i
	}
	idx.byPath = make(map[string]uint32, len(idx.snap.Files))
	for i, f := range idx.snap.Files {
		if f.Path != "" {
			idx.byPath[f.Path] = uint32(i)
		}
	}
}

// Save writes the index via the compressed codec.
func (idx *Index) Save(path string) error {
	idx.rw.RLock()
	snap := idx.snap
	idx.rw.RUnlock()
	return codec.Save(snap, path)
}

// Load reads an index previously written by Save.
func Load(path string) (*Index, error) {
	var snap Snapshot
	if err := codec.Load(path, &snap); err != nil {
		return nil, err
	}
	return wrap(snap), nil
}

// FilePath resolves a FileID to its path, for result rendering.
func (idx *Index) FilePath(fileID uint32) (string, bool) {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	if int(fileID) >= len(idx.snap.Files) || idx.snap.Files[fileID].Path == "" {
		return "", false
	}
	return idx.snap.Files[fileID].Path, true
}

// TotalFiles returns the number of live files covered by this snapshot,
// excluding slots blanked by RemoveFile.
func (idx *Index) TotalFiles() int {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	n := 0
	for _, f := range idx.snap.Files {
		if f.Path != "" {
			n++
		}
	}
	return n
}

// IsStale reports whether the index has aged past MaxAgeSecs as of nowUnix
// (spec.md §6's saturating staleness check).
func (idx *Index) IsStale(nowUnix int64) bool {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	if idx.snap.MaxAgeSecs <= 0 {
		return false
	}
	age := nowUnix - idx.snap.CreatedAt
	if age < 0 {
		return false
	}
	return age > idx.snap.MaxAgeSecs
}

// TotalTokens returns the sum of per-file token counts.
func (idx *Index) TotalTokens() int64 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return idx.snap.TotalTokens
}

// FileTokenCount returns the token count recorded for fileID, for TF-IDF.
func (idx *Index) FileTokenCount(fileID uint32) (int, bool) {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	if int(fileID) >= len(idx.snap.Files) {
		return 0, false
	}
	return idx.snap.Files[fileID].TokenCount, true
}

// AllTokens returns a copy of the full token vocabulary, for regex scans.
func (idx *Index) AllTokens() []string {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	out := make([]string, len(idx.snap.Tokens))
	copy(out, idx.snap.Tokens)
	return out
}

// DocFrequency returns the number of distinct files containing token.
func (idx *Index) DocFrequency(token string) int {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	id, ok := idx.byToken[token]
	if !ok {
		return 0
	}
	return len(idx.snap.Postings[id])
}

// Postings returns the postings list for an exact token, or nil.
func (idx *Index) Postings(token string) []Posting {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	id, ok := idx.byToken[token]
	if !ok {
		return nil
	}
	out := make([]Posting, len(idx.snap.Postings[id]))
	copy(out, idx.snap.Postings[id])
	return out
}

// TokensContaining returns every indexed token containing substring s,
// using the trigram accelerator when |s| >= 3 (spec.md §4.7), else falling
// back to a full scan of the token vocabulary.
func (idx *Index) TokensContaining(s string) []string {
	idx.rw.RLock()
	defer idx.rw.RUnlock()

	if len(s) < 3 {
		var out []string
		for _, t := range idx.snap.Tokens {
			if containsSubstr(t, s) {
				out = append(out, t)
			}
		}
		return out
	}

	windows := trigramWindows(s)
	var candidateIDs []uint32
	for i, w := range windows {
		set := idx.snap.Trigram[w]
		if i == 0 {
			candidateIDs = append(candidateIDs, set...)
			continue
		}
		candidateIDs = intersectSorted(candidateIDs, set)
		if len(candidateIDs) == 0 {
			return nil
		}
	}

	var out []string
	for _, id := range candidateIDs {
		if int(id) >= len(idx.snap.Tokens) {
			continue
		}
		tok := idx.snap.Tokens[id]
		if containsSubstr(tok, s) {
			out = append(out, tok)
		}
	}
	sort.Strings(out)
	return out
}

func containsSubstr(token, s string) bool {
	return len(s) == 0 || indexOf(token, s) >= 0
}

func indexOf(haystack, needle string) int {
	n, h := len(needle), len(haystack)
	if n == 0 {
		return 0
	}
	for i := 0; i+n <= h; i++ {
		if haystack[i:i+n] == needle {
			return i
		}
	}
	return -1
}

// intersectSorted intersects two ascending, deduplicated uint32 slices.
func intersectSorted(a, b []uint32) []uint32 {
	var out []uint32
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
