package defindex

import (
	"strings"
)

// RemoveFile tombstones every definition owned by relPath and drops it from
// every secondary index and the call-site table (spec.md §4.12 definition
// index remove). Definition slots are kept, not truncated, so every other
// file's already-assigned indices stay valid.
func (idx *Index) RemoveFile(relPath string) {
	idx.rw.Lock()
	defer idx.rw.Unlock()
	idx.removeFileLocked(relPath)
}

func (idx *Index) removeFileLocked(relPath string) {
	owned := idx.snap.FileIndex[relPath]
	if len(owned) == 0 {
		return
	}
	drop := make(map[uint32]bool, len(owned))
	for _, i := range owned {
		drop[i] = true
		if int(i) < len(idx.snap.Definitions) {
			idx.snap.Definitions[i].Tombstoned = true
		}
		delete(idx.snap.MethodCalls, i)
	}
	delete(idx.snap.FileIndex, relPath)

	pruneStringKeyed(idx.snap.NameIndex, drop)
	pruneStringKeyed(idx.snap.AttributeIndex, drop)
	pruneStringKeyed(idx.snap.BaseTypeIndex, drop)
	for k, v := range idx.snap.KindIndex {
		filtered := filterOutIDs(v, drop)
		if len(filtered) == 0 {
			delete(idx.snap.KindIndex, k)
		} else {
			idx.snap.KindIndex[k] = filtered
		}
	}

	idx.snap.Files = removeString(idx.snap.Files, relPath)
}

// UpsertFile re-parses relPath's new content lossily and adds its
// definitions under freshly assigned global indices (spec.md §4.12
// definition index add/update). Field-type and base-type maps are derived
// fresh for this file only, matching the build-time rule that those maps
// are per-build scaffolding, never merged across files.
func (idx *Index) UpsertFile(relPath string, content []byte) error {
	ext := extOf(relPath)
	l := langForExt(ext)
	if l == langNone {
		idx.rw.Lock()
		idx.removeFileLocked(relPath)
		idx.rw.Unlock()
		return nil
	}

	clean := strings.ToValidUTF8(string(content), "�")
	lossy := clean != string(content)

	g := newGrammarSet()
	defer g.close()

	fe, err := extractFile(g, l, relPath, []byte(clean))
	if err != nil {
		return err
	}
	if fe == nil {
		fe = &fileExtraction{path: relPath, lang: l, parseFailed: true}
	}
	fe.lossy = lossy

	idx.rw.Lock()
	defer idx.rw.Unlock()
	idx.removeFileLocked(relPath)
	mergeExtraction(&idx.snap, fe)
	return nil
}

func pruneStringKeyed(m map[string][]uint32, drop map[uint32]bool) {
	for k, v := range m {
		filtered := filterOutIDs(v, drop)
		if len(filtered) == 0 {
			delete(m, k)
		} else {
			m[k] = filtered
		}
	}
}

func filterOutIDs(ids []uint32, drop map[uint32]bool) []uint32 {
	out := ids[:0]
	for _, v := range ids {
		if !drop[v] {
			out = append(out, v)
		}
	}
	return out
}

func removeString(ss []string, s string) []string {
	out := ss[:0]
	for _, v := range ss {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
