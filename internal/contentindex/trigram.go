package contentindex

// trigramWindows returns every consecutive 3-byte window of s, grounded on
// teacher's trigram.go bucket-key derivation but operating over whole
// token strings rather than per-file byte offsets.
func trigramWindows(s string) []string {
	if len(s) < 3 {
		return nil
	}
	out := make([]string, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, s[i:i+3])
	}
	return out
}

// buildTrigramIndex constructs trigram_index (spec.md §4.7) from the final
// token vocabulary: for every token of length >= 3, for every consecutive
// 3-byte window, insert the token's id into trigram_index[window].
func buildTrigramIndex(tokens []string) map[string][]uint32 {
	idx := make(map[string][]uint32)
	for id, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		for _, w := range trigramWindows(tok) {
			idx[w] = append(idx[w], uint32(id))
		}
	}
	for w, ids := range idx {
		idx[w] = dedupSortedAppendOrder(ids)
	}
	return idx
}

// dedupSortedAppendOrder removes adjacent duplicates in place; it does not
// sort. ids arrive append-ordered (ascending TokenID already, since tokens
// are walked in vocabulary order) so this single pass leaves them ascending
// and unique.
func dedupSortedAppendOrder(ids []uint32) []uint32 {
	if len(ids) < 2 {
		return ids
	}
	out := ids[:1]
	for _, v := range ids[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
