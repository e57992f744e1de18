package query

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/pustynsky/codescope/internal/contentindex"
)

// grepPhrase implements spec.md §4.9's phrase evaluation: a literal-scan
// bypass when the phrase contains characters the tokenizer wouldn't
// preserve adjacency for, otherwise a tokenize+AND+adjacency-regex path.
func grepPhrase(idx *contentindex.Index, root string, req GrepRequest) (GrepResponse, error) {
	raw := strings.Join(req.Terms, " ")
	if req.CaseInsensitive {
		raw = strings.ToLower(raw)
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return GrepResponse{}, nil
	}

	words := alnumWords(raw)
	if len(words) == 0 {
		return GrepResponse{}, nil
	}

	if phraseHasNonAlnumBesidesSpace(raw) {
		return grepPhraseLiteralScan(idx, root, req, raw, words)
	}
	return grepPhraseAdjacency(idx, root, req, raw, words)
}

func alnumWords(s string) []string {
	var out []string
	var cur strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func phraseHasNonAlnumBesidesSpace(s string) bool {
	for _, r := range s {
		if r == ' ' {
			continue
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// grepPhraseLiteralScan finds AND-candidate files via the longest
// alphanumeric subtokens, then rescans those files line-by-line for the
// literal phrase.
func grepPhraseLiteralScan(idx *contentindex.Index, root string, req GrepRequest, raw string, words []string) (GrepResponse, error) {
	sort.Slice(words, func(i, j int) bool { return len(words[i]) > len(words[j]) })

	var candidateFiles map[uint32]bool
	for _, w := range words {
		// Candidate narrowing only: the literal line-scan below is the real
		// phrase check, so over-inclusive (substring) beats under-inclusive
		// (exact) here — a narrower candidate set could skip a real match.
		tokens, err := resolveTerm(idx, w, false, true)
		if err != nil {
			return GrepResponse{}, err
		}
		files := make(map[uint32]bool)
		for _, tok := range tokens {
			for _, p := range idx.Postings(tok) {
				files[p.FileID] = true
			}
		}
		if candidateFiles == nil {
			candidateFiles = files
		} else {
			for fid := range candidateFiles {
				if !files[fid] {
					delete(candidateFiles, fid)
				}
			}
		}
		if len(candidateFiles) == 0 {
			return GrepResponse{}, nil
		}
	}

	var results []GrepFileResult
	var totalOccurrences int
	for fileID := range candidateFiles {
		relPath, ok := idx.FilePath(fileID)
		if !ok || !req.Filter.Allowed(relPath) {
			continue
		}
		lines, err := readAllLines(filepath.Join(root, relPath))
		if err != nil {
			continue
		}
		var matchedLines map[uint32]bool
		for i, line := range lines {
			cmp := line
			if req.CaseInsensitive {
				cmp = strings.ToLower(cmp)
			}
			if strings.Contains(cmp, raw) {
				if matchedLines == nil {
					matchedLines = make(map[uint32]bool)
				}
				matchedLines[uint32(i+1)] = true
				totalOccurrences++
			}
		}
		if len(matchedLines) == 0 {
			continue
		}
		fr := GrepFileResult{Path: relPath, DistinctTermsMatched: 1, Score: float64(len(matchedLines))}
		if req.ShowLines {
			fr.LineGroups = buildLineGroups(filepath.Join(root, relPath), matchedLines, req.ContextLines, req.Before, req.After)
		}
		results = append(results, fr)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	resp := GrepResponse{TotalFiles: len(results), TotalResults: len(results), TotalOccurrences: totalOccurrences}
	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	if !req.CountOnly {
		resp.Files = results
	}
	return resp, nil
}

// grepPhraseAdjacency tokenizes the phrase, AND-intersects candidate files
// by exact token, then verifies word-adjacency per file with a compiled
// regex requiring the words in order separated only by non-word characters.
func grepPhraseAdjacency(idx *contentindex.Index, root string, req GrepRequest, raw string, words []string) (GrepResponse, error) {
	var candidateFiles map[uint32]bool
	for _, w := range words {
		files := make(map[uint32]bool)
		for _, p := range idx.Postings(w) {
			files[p.FileID] = true
		}
		if candidateFiles == nil {
			candidateFiles = files
		} else {
			for fid := range candidateFiles {
				if !files[fid] {
					delete(candidateFiles, fid)
				}
			}
		}
		if len(candidateFiles) == 0 {
			return GrepResponse{}, nil
		}
	}

	var pat strings.Builder
	for i, w := range words {
		if i > 0 {
			pat.WriteString(`\W+`)
		}
		pat.WriteString(regexp.QuoteMeta(w))
	}
	re, err := regexp.Compile(`(?i)` + pat.String())
	if err != nil {
		return GrepResponse{}, err
	}

	var results []GrepFileResult
	var totalOccurrences int
	for fileID := range candidateFiles {
		relPath, ok := idx.FilePath(fileID)
		if !ok || !req.Filter.Allowed(relPath) {
			continue
		}
		lines, err := readAllLines(filepath.Join(root, relPath))
		if err != nil {
			continue
		}
		var matchedLines map[uint32]bool
		for i, line := range lines {
			if re.MatchString(line) {
				if matchedLines == nil {
					matchedLines = make(map[uint32]bool)
				}
				matchedLines[uint32(i+1)] = true
				totalOccurrences++
			}
		}
		if len(matchedLines) == 0 {
			continue
		}
		fr := GrepFileResult{Path: relPath, DistinctTermsMatched: 1, Score: float64(len(matchedLines))}
		if req.ShowLines {
			fr.LineGroups = buildLineGroups(filepath.Join(root, relPath), matchedLines, req.ContextLines, req.Before, req.After)
		}
		results = append(results, fr)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Path < results[j].Path
	})

	resp := GrepResponse{TotalFiles: len(results), TotalResults: len(results), TotalOccurrences: totalOccurrences}
	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	if !req.CountOnly {
		resp.Files = results
	}
	return resp, nil
}
