package query

import (
	"bufio"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/cserr"
)

// GrepRequest is the configuration of spec.md §4.9's grep engine.
type GrepRequest struct {
	Terms           []string
	Mode            string // "or" (default) or "and"
	Substring       bool   // default true in server mode
	Regex           bool
	Phrase          bool
	CaseInsensitive bool // default true

	ShowLines    bool
	ContextLines int
	Before       int
	After        int

	MaxResults int
	CountOnly  bool

	Filter PathFilter
}

// Normalize applies spec.md §6's argument-validation rule: substring+regex
// and substring+phrase are mutually exclusive, except that setting regex
// alone silently disables substring (rather than erroring).
func (r *GrepRequest) Normalize() error {
	if r.Regex && r.Substring {
		r.Substring = false
	} else if r.Phrase && r.Substring {
		return cserr.New(cserr.Config, "GrepRequest.Normalize", "substring and phrase are mutually exclusive")
	}
	return nil
}

// LineGroup is a block of contiguous (after ±context expansion) matching
// lines from one file, read fresh from disk (spec.md §4.9's "reading the
// file from disk is the first I/O the query does").
type LineGroup struct {
	StartLine    int
	Lines        []string
	MatchIndices []int // indices into Lines that were actual matches
}

// GrepFileResult is one file's aggregated match, scored and ready to rank.
type GrepFileResult struct {
	Path                 string
	DistinctTermsMatched int
	MatchedTokens        []string
	Score                float64
	LineGroups           []LineGroup
}

// GrepResponse is the full result set, pre-truncation.
type GrepResponse struct {
	Files            []GrepFileResult
	TotalFiles       int
	TotalResults     int
	TotalOccurrences int
}

type termFileStat struct {
	occurrences int
	lines       map[uint32]bool
}

// Grep evaluates req against idx, implementing exact/substring/regex/phrase
// resolution, OR/AND combination, and TF-IDF ranking (spec.md §4.9).
func Grep(idx *contentindex.Index, root string, req GrepRequest) (GrepResponse, error) {
	if err := req.Normalize(); err != nil {
		return GrepResponse{}, err
	}

	if req.Phrase {
		return grepPhrase(idx, root, req)
	}

	terms := normalizeTerms(req.Terms, req.CaseInsensitive)
	if len(terms) == 0 {
		return GrepResponse{}, nil
	}

	// perFile[fileID][termIndex] accumulates occurrences/lines for that term.
	perFile := make(map[uint32]map[int]*termFileStat)
	matchedTokensByFile := make(map[uint32]map[string]bool)
	termDocSets := make([]map[uint32]bool, len(terms))

	for ti, term := range terms {
		tokens, err := resolveTerm(idx, term, req.Regex, req.Substring)
		if err != nil {
			return GrepResponse{}, err
		}
		docSet := make(map[uint32]bool)
		for _, tok := range tokens {
			for _, p := range idx.Postings(tok) {
				docSet[p.FileID] = true
				fm, ok := perFile[p.FileID]
				if !ok {
					fm = make(map[int]*termFileStat)
					perFile[p.FileID] = fm
				}
				ts, ok := fm[ti]
				if !ok {
					ts = &termFileStat{lines: make(map[uint32]bool)}
					fm[ti] = ts
				}
				ts.occurrences += len(p.Lines)
				for _, ln := range p.Lines {
					ts.lines[ln] = true
				}
				mt, ok := matchedTokensByFile[p.FileID]
				if !ok {
					mt = make(map[string]bool)
					matchedTokensByFile[p.FileID] = mt
				}
				mt[tok] = true
			}
		}
		termDocSets[ti] = docSet
	}

	and := strings.EqualFold(req.Mode, "and")
	totalFiles := idx.TotalFiles()

	var results []GrepFileResult
	var totalOccurrences int
	for fileID, byTerm := range perFile {
		if and && len(byTerm) != len(terms) {
			continue
		}
		relPath, ok := idx.FilePath(fileID)
		if !ok || !req.Filter.Allowed(relPath) {
			continue
		}

		tokenCount, _ := idx.FileTokenCount(fileID)
		var score float64
		var lines map[uint32]bool
		for ti, ts := range byTerm {
			totalOccurrences += ts.occurrences
			if tokenCount > 0 {
				tf := float64(ts.occurrences) / float64(tokenCount)
				df := len(termDocSets[ti])
				idf := 0.0
				if df > 0 && totalFiles > 0 {
					idf = math.Log(float64(totalFiles) / float64(df))
				}
				score += tf * idf
			}
			if lines == nil {
				lines = make(map[uint32]bool)
			}
			for ln := range ts.lines {
				lines[ln] = true
			}
		}

		var matchedTokens []string
		for tok := range matchedTokensByFile[fileID] {
			matchedTokens = append(matchedTokens, tok)
		}
		sort.Strings(matchedTokens)

		fr := GrepFileResult{
			Path:                 relPath,
			DistinctTermsMatched: len(byTerm),
			MatchedTokens:        matchedTokens,
			Score:                score,
		}
		if req.ShowLines {
			fr.LineGroups = buildLineGroups(filepath.Join(root, relPath), lines, req.ContextLines, req.Before, req.After)
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

func normalizeTerms(terms []string, caseInsensitive bool) []string {
	var out []string
	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if caseInsensitive {
			t = strings.ToLower(t)
		}
		out = append(out, t)
	}
	return out
}

// resolveTerm maps one input term to the indexed tokens it matches: exact
// lookup, substring via the trigram accelerator, or regex over the full
// token vocabulary. useSubstring is ignored when useRegex is set (regex
// already takes precedence per Normalize); when both are false, term must
// match an indexed token exactly.
func resolveTerm(idx *contentindex.Index, term string, useRegex, useSubstring bool) ([]string, error) {
	if useRegex {
		re, err := regexp.Compile(term)
		if err != nil {
			return nil, cserr.Wrap(cserr.Config, "resolveTerm", err)
		}
		var out []string
		for _, tok := range idx.AllTokens() {
			if re.MatchString(tok) {
				out = append(out, tok)
			}
		}
		return out, nil
	}
	if !useSubstring {
		if idx.DocFrequency(term) > 0 {
			return []string{term}, nil
		}
		return nil, nil
	}
	// substring: TokensContaining is trigram-accelerated; an exact token is
	// simply a substring match of itself, so no separate exact-match path
	// is needed here.
	tokens := idx.TokensContaining(term)
	if len(tokens) == 0 {
		if idx.DocFrequency(term) > 0 {
			return []string{term}, nil
		}
	}
	return tokens, nil
}

func buildLineGroups(absPath string, lineSet map[uint32]bool, contextLines, before, after int) []LineGroup {
	if len(lineSet) == 0 {
		return nil
	}
	var matchLines []int
	for ln := range lineSet {
		matchLines = append(matchLines, int(ln))
	}
	sort.Ints(matchLines)

	beforeN, afterN := before, after
	if contextLines > 0 {
		beforeN, afterN = contextLines, contextLines
	}

	fileLines, err := readAllLines(absPath)
	if err != nil {
		return nil
	}

	type window struct{ start, end int } // 1-based inclusive
	var windows []window
	for _, ln := range matchLines {
		s := ln - beforeN
		if s < 1 {
			s = 1
		}
		e := ln + afterN
		if e > len(fileLines) {
			e = len(fileLines)
		}
		windows = append(windows, window{s, e})
	}

	// Coalesce overlapping/adjacent windows.
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	var merged []window
	for _, w := range windows {
		if len(merged) > 0 && w.start <= merged[len(merged)-1].end+1 {
			if w.end > merged[len(merged)-1].end {
				merged[len(merged)-1].end = w.end
			}
			continue
		}
		merged = append(merged, w)
	}

	var groups []LineGroup
	for _, w := range merged {
		g := LineGroup{StartLine: w.start}
		for ln := w.start; ln <= w.end; ln++ {
			g.Lines = append(g.Lines, fileLines[ln-1])
			if lineSet[uint32(ln)] {
				g.MatchIndices = append(g.MatchIndices, ln-w.start)
			}
		}
		groups = append(groups, g)
	}
	return groups
}

func readAllLines(absPath string) ([]string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}
