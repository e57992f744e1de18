package query

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/fileindex"
)

// DefRequest is spec.md §4.10's definition query configuration.
type DefRequest struct {
	Name     string
	NameMode string // "exact" (default), "substring", "or", "regex"
	Kind     defindex.Kind
	HasKind  bool
	Attribute string
	BaseType  string
	File      string
	Parent    string

	ContainsLine int // requires File
	HasContainsLine bool

	IncludeBody       bool
	MaxBodyLines      int
	MaxTotalBodyLines int

	MaxResults int
	Filter     PathFilter
}

type nameRank int

const (
	rankDefExact nameRank = iota
	rankDefPrefix
	rankDefSubstring
	rankDefNone
)

// DefResult is one returned definition, optionally with its source body.
type DefResult struct {
	defindex.DefinitionEntry
	Body          string
	BodyTruncated bool
	BodyOmitted   bool
}

// DefResponse is the full, pre-truncation result set.
type DefResponse struct {
	Definitions []DefResult
	TotalFound  int
}

// Definitions resolves req against idx, applying the ranking and
// includeBody budgeting rules of spec.md §4.10.
func Definitions(idx *defindex.Index, root string, req DefRequest) (DefResponse, error) {
	candidates, err := resolveDefCandidates(idx, req)
	if err != nil {
		return DefResponse{}, err
	}

	deduped := dedupeUint32(candidates)

	type scored struct {
		def  defindex.DefinitionEntry
		idx  uint32
		rank nameRank
	}
	var rows []scored
	for _, di := range deduped {
		def, ok := idx.Definition(di)
		if !ok {
			continue
		}
		if req.File != "" && !strings.EqualFold(def.File, req.File) {
			continue
		}
		if req.Parent != "" && !strings.EqualFold(def.Parent, req.Parent) {
			continue
		}
		if !req.Filter.Allowed(def.File) {
			continue
		}
		rows = append(rows, scored{def: def, idx: di, rank: rankOf(def.Name, req)})
	}

	if req.HasContainsLine {
		// spec.md §4.10: among defs bracketing the line, innermost first.
		// Ties on identical [line, endLine] break by deeper parent chain,
		// then member kinds before type-level kinds.
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			aSpan := a.def.EndLine - a.def.Line
			bSpan := b.def.EndLine - b.def.Line
			if aSpan != bSpan {
				return aSpan < bSpan
			}
			aDepth := parentDepth(idx, a.def)
			bDepth := parentDepth(idx, b.def)
			if aDepth != bDepth {
				return aDepth > bDepth
			}
			if a.def.Kind.TypeLevel() != b.def.Kind.TypeLevel() {
				return !a.def.Kind.TypeLevel()
			}
			return a.def.File < b.def.File
		})
	} else {
		sort.Slice(rows, func(i, j int) bool {
			a, b := rows[i], rows[j]
			if req.Name != "" && req.NameMode != "regex" && a.rank != b.rank {
				return a.rank < b.rank
			}
			if a.def.Kind.TypeLevel() != b.def.Kind.TypeLevel() {
				return a.def.Kind.TypeLevel() // type-level first
			}
			if len(a.def.Name) != len(b.def.Name) {
				return len(a.def.Name) < len(b.def.Name)
			}
			return a.def.File < b.def.File
		})
	}

	resp := DefResponse{TotalFound: len(rows)}
	if req.MaxResults > 0 && len(rows) > req.MaxResults {
		rows = rows[:req.MaxResults]
	}

	budget := req.MaxTotalBodyLines
	for _, r := range rows {
		dr := DefResult{DefinitionEntry: r.def}
		if req.IncludeBody {
			if req.MaxTotalBodyLines <= 0 || budget > 0 {
				lines, truncated, consumed := readBody(filepath.Join(root, r.def.File), r.def.Line, r.def.EndLine, req.MaxBodyLines, budget, req.MaxTotalBodyLines)
				dr.Body = lines
				dr.BodyTruncated = truncated
				if req.MaxTotalBodyLines > 0 {
					budget -= consumed
					if budget < 0 {
						budget = 0
					}
				}
			} else {
				dr.BodyOmitted = true
			}
		}
		resp.Definitions = append(resp.Definitions, dr)
	}
	return resp, nil
}

func rankOf(name string, req DefRequest) nameRank {
	if req.Name == "" {
		return rankDefNone
	}
	target := req.Name
	if strings.EqualFold(name, target) {
		return rankDefExact
	}
	if strings.HasPrefix(strings.ToLower(name), strings.ToLower(target)) {
		return rankDefPrefix
	}
	return rankDefSubstring
}

func resolveDefCandidates(idx *defindex.Index, req DefRequest) ([]uint32, error) {
	var sets [][]uint32

	if req.Name != "" {
		switch req.NameMode {
		case "or":
			var out []uint32
			for _, n := range strings.Split(req.Name, ",") {
				n = strings.TrimSpace(n)
				if n == "" {
					continue
				}
				out = append(out, idx.ByName(n)...)
			}
			sets = append(sets, out)
		case "regex":
			re, err := regexp.Compile(req.Name)
			if err != nil {
				return nil, err
			}
			var out []uint32
			for _, ie := range idx.AllIndexed() {
				if re.MatchString(ie.Entry.Name) {
					out = append(out, ie.Idx)
				}
			}
			sets = append(sets, out)
		case "substring":
			var out []uint32
			needle := strings.ToLower(req.Name)
			for _, ie := range idx.AllIndexed() {
				if strings.Contains(strings.ToLower(ie.Entry.Name), needle) {
					out = append(out, ie.Idx)
				}
			}
			sets = append(sets, out)
		default:
			sets = append(sets, idx.ByName(req.Name))
		}
	}
	if req.HasKind {
		sets = append(sets, idx.ByKind(req.Kind))
	}
	if req.Attribute != "" {
		sets = append(sets, idx.ByAttribute(req.Attribute))
	}
	if req.BaseType != "" {
		sets = append(sets, idx.ByBaseType(req.BaseType))
	}
	if req.File != "" {
		sets = append(sets, idx.ByFile(req.File))
	}
	if req.HasContainsLine && req.File != "" {
		var out []uint32
		for _, di := range idx.ByFile(req.File) {
			def, ok := idx.Definition(di)
			if !ok {
				continue
			}
			if uint32(req.ContainsLine) >= def.Line && uint32(req.ContainsLine) <= def.EndLine {
				out = append(out, di)
			}
		}
		sets = append(sets, out)
	}

	if len(sets) == 0 {
		all := idx.AllIndexed()
		out := make([]uint32, len(all))
		for i, ie := range all {
			out[i] = ie.Idx
		}
		return out, nil
	}

	result := sets[0]
	for _, s := range sets[1:] {
		result = intersectUint32(result, s)
	}
	return result, nil
}

// parentDepth counts how many enclosing definitions def is nested in, by
// walking the Parent name chain within the same file. Bounded to guard
// against a malformed self-referential Parent.
func parentDepth(idx *defindex.Index, def defindex.DefinitionEntry) int {
	depth := 0
	cur := def
	for cur.Parent != "" && depth < 64 {
		next, ok := findDefByNameInFile(idx, cur.Parent, cur.File)
		if !ok {
			break
		}
		depth++
		cur = next
	}
	return depth
}

func findDefByNameInFile(idx *defindex.Index, name, file string) (defindex.DefinitionEntry, bool) {
	for _, di := range idx.ByName(name) {
		if def, ok := idx.Definition(di); ok && def.File == file {
			return def, true
		}
	}
	return defindex.DefinitionEntry{}, false
}

func dedupeUint32(in []uint32) []uint32 {
	seen := make(map[uint32]bool, len(in))
	out := in[:0:0]
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func intersectUint32(a, b []uint32) []uint32 {
	set := make(map[uint32]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []uint32
	for _, v := range a {
		if set[v] {
			out = append(out, v)
		}
	}
	return out
}

// readBody reads lines [start, min(end, start+maxBodyLines-1)] from path,
// honoring the remaining global body-line budget (spec.md §4.10).
func readBody(path string, start, end uint32, maxBodyLines, remainingBudget, totalBudget int) (body string, truncated bool, consumed int) {
	f, err := os.Open(path)
	if err != nil {
		return "", false, 0
	}
	defer f.Close()

	wantEnd := end
	if maxBodyLines > 0 && wantEnd > start+uint32(maxBodyLines)-1 {
		wantEnd = start + uint32(maxBodyLines) - 1
		truncated = true
	}
	if totalBudget > 0 {
		maxAllowed := start + uint32(remainingBudget) - 1
		if wantEnd > maxAllowed {
			wantEnd = maxAllowed
			truncated = true
		}
	}
	if wantEnd < start {
		return "", true, 0
	}

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	var b strings.Builder
	var ln uint32 = 1
	for sc.Scan() {
		if ln >= start && ln <= wantEnd {
			if consumed > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(sc.Text())
			consumed++
		}
		if ln >= wantEnd {
			break
		}
		ln++
	}
	return b.String(), truncated, consumed
}

// AuditResult is spec.md §4.10's audit operation output.
type AuditResult struct {
	TotalFiles              int
	FilesWithDefinitions    int
	FilesWithoutDefinitions int
	ReadErrors              int
	LossyUtf8Files          int
	SuspiciousFiles         []string
}

// Audit cross-references fi (every indexed file and its size) against di
// (which files actually produced definitions), flagging large files with
// zero defs as suspicious.
func Audit(fi *fileindex.Index, di *defindex.Index, suspiciousSizeThreshold int64) AuditResult {
	parseErrors, lossyFiles := di.Stats()
	withDefs := make(map[string]bool)
	for _, def := range di.AllDefinitions() {
		withDefs[def.File] = true
	}

	res := AuditResult{ReadErrors: parseErrors, LossyUtf8Files: lossyFiles}
	for _, e := range fi.Snap() {
		if e.IsDir {
			continue
		}
		res.TotalFiles++
		if withDefs[e.Path] {
			res.FilesWithDefinitions++
			continue
		}
		res.FilesWithoutDefinitions++
		if e.Size >= suspiciousSizeThreshold {
			res.SuspiciousFiles = append(res.SuspiciousFiles, e.Path)
		}
	}
	sort.Strings(res.SuspiciousFiles)
	return res
}
