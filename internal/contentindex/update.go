package contentindex

import (
	"os"
	"sort"
	"strings"

	"github.com/pustynsky/codescope/internal/tokenizer"
)

// RemoveFile implements spec.md §4.12's content index remove: for every
// token, filter postings with this file's FileID out of its posting list
// and subtract the file's token count from the running total (saturating).
// The file's slot is kept with a blanked path so every other file's FileID
// stays valid; tokens left with an empty posting list are harmless dead
// keys, same rationale as the trigram index's own obsolete-token tolerance.
func (idx *Index) RemoveFile(relPath string) {
	idx.rw.Lock()
	defer idx.rw.Unlock()
	idx.removeFileLocked(relPath)
}

func (idx *Index) removeFileLocked(relPath string) uint32 {
	fileID, ok := idx.byPath[relPath]
	if !ok {
		return 0
	}
	for tid, postings := range idx.snap.Postings {
		filtered := postings[:0]
		for _, p := range postings {
			if p.FileID != fileID {
				filtered = append(filtered, p)
			}
		}
		idx.snap.Postings[tid] = filtered
	}
	idx.snap.TotalTokens -= int64(idx.snap.Files[fileID].TokenCount)
	if idx.snap.TotalTokens < 0 {
		idx.snap.TotalTokens = 0
	}
	idx.snap.Files[fileID] = FileMeta{}
	delete(idx.byPath, relPath)
	return fileID
}

// UpsertFile implements spec.md §4.12's content index add/update: read the
// file lossily, tokenize it, and append its postings under either its
// existing FileID (update) or a freshly assigned one (add).
func (idx *Index) UpsertFile(path, relPath string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	clean := strings.ToValidUTF8(string(raw), "�")
	lossy := clean != string(raw)
	toks := tokenizer.TokenizeDefault([]byte(clean))

	lines := make(map[string][]uint32, len(toks))
	for _, t := range toks {
		ls := lines[t.Text]
		if n := len(ls); n == 0 || ls[n-1] != t.Line {
			lines[t.Text] = append(ls, t.Line)
		}
	}

	idx.rw.Lock()
	defer idx.rw.Unlock()

	fileID, exists := idx.byPath[relPath]
	if exists {
		idx.removeFileLocked(relPath)
	} else if reused, ok := idx.firstDeadSlot(); ok {
		fileID = reused
	} else {
		fileID = uint32(len(idx.snap.Files))
		idx.snap.Files = append(idx.snap.Files, FileMeta{})
	}

	idx.snap.Files[fileID] = FileMeta{Path: relPath, TokenCount: len(toks)}
	idx.snap.TotalTokens += int64(len(toks))
	if lossy {
		idx.snap.LossyFiles++
	}
	idx.byPath[relPath] = fileID

	tokens := make([]string, 0, len(lines))
	for tok := range lines {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)

	for _, tok := range tokens {
		id, ok := idx.byToken[tok]
		if !ok {
			id = len(idx.snap.Tokens)
			idx.snap.Tokens = append(idx.snap.Tokens, tok)
			idx.snap.Postings = append(idx.snap.Postings, nil)
			idx.byToken[tok] = id
			for _, w := range trigramWindows(tok) {
				idx.snap.Trigram[w] = insertSortedUnique(idx.snap.Trigram[w], uint32(id))
			}
		}
		idx.snap.Postings[id] = append(idx.snap.Postings[id], Posting{FileID: fileID, Lines: lines[tok]})
	}
	return nil
}

// firstDeadSlot finds a file slot blanked out by a prior RemoveFile, so
// repeated remove/add cycles (e.g. a rename) don't grow Files unboundedly.
func (idx *Index) firstDeadSlot() (uint32, bool) {
	for i, f := range idx.snap.Files {
		if f.Path == "" {
			return uint32(i), true
		}
	}
	return 0, false
}

func insertSortedUnique(ids []uint32, id uint32) []uint32 {
	i := sort.Search(len(ids), func(i int) bool { return ids[i] >= id })
	if i < len(ids) && ids[i] == id {
		return ids
	}
	out := make([]uint32, len(ids)+1)
	copy(out, ids[:i])
	out[i] = id
	copy(out[i+1:], ids[i:])
	return out
}
