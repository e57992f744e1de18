package query

import (
	"sort"
	"strings"
	"unicode"

	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/defindex"
)

// CallTreeRequest is spec.md §4.11's caller/callee tree configuration.
type CallTreeRequest struct {
	Method string
	Class  string // optional

	Depth              int
	MaxCallersPerLevel int
	MaxTotalNodes      int

	Filter PathFilter
}

// CallNode is one resolved definition in the tree, with its accepted
// children (callers or callees depending on direction).
type CallNode struct {
	Method   string
	Class    string
	File     string
	Line     uint32
	Children []CallNode
}

// CallTreeResult is the full tree plus any ambiguity warnings.
type CallTreeResult struct {
	Roots      []CallNode
	Warnings   []string
	TotalNodes int
}

const defaultMaxCallersPerLevel = 25
const defaultMaxTotalNodes = 500

func (r CallTreeRequest) limits() (maxPerLevel, maxTotal, depth int) {
	maxPerLevel = r.MaxCallersPerLevel
	if maxPerLevel <= 0 {
		maxPerLevel = defaultMaxCallersPerLevel
	}
	maxTotal = r.MaxTotalNodes
	if maxTotal <= 0 {
		maxTotal = defaultMaxTotalNodes
	}
	depth = r.Depth
	if depth <= 0 {
		depth = 1
	}
	return
}

// callerFinder carries the mutable cycle/cap state for one Callers call.
type callerFinder struct {
	ci             *contentindex.Index
	di             *defindex.Index
	req            CallTreeRequest
	maxPerLevel    int
	maxTotal       int
	depth          int
	visited        map[uint32]bool
	nodeCount      int
	allowedClasses map[string]bool
}

// Callers builds the up-direction tree of spec.md §4.11: methods that call
// (Method, Class?).
func Callers(ci *contentindex.Index, di *defindex.Index, req CallTreeRequest) CallTreeResult {
	maxPerLevel, maxTotal, depth := req.limits()
	cf := &callerFinder{ci: ci, di: di, req: req, maxPerLevel: maxPerLevel, maxTotal: maxTotal, depth: depth, visited: make(map[uint32]bool)}

	if req.Class != "" {
		cf.allowedClasses = map[string]bool{req.Class: true}
		for _, di2 := range di.ByBaseType(req.Class) {
			if def, ok := di.Definition(di2); ok {
				cf.allowedClasses[def.Name] = true
			}
		}
	}

	var warnings []string
	if req.Class == "" {
		parents := distinctParentsOf(di, req.Method)
		if len(parents) > 1 {
			warnings = append(warnings, ambiguityWarning(parents))
		}
	}

	targets := targetDefSet(di, req.Method, req.Class)
	candidates := callerCandidateLines(ci, req.Method)

	seen := make(map[uint32]bool)
	var roots []CallNode
	for _, cand := range candidates {
		if cf.nodeCount >= cf.maxTotal {
			break
		}
		callerDefIdx, caller, ok := innermostCallableDef(di, cand.file, cand.line)
		if !ok || seen[callerDefIdx] || targets[callerDefIdx] {
			continue
		}
		if !cf.verifyCallSite(callerDefIdx, cand.line, req.Method, cf.allowedClasses) {
			continue
		}
		seen[callerDefIdx] = true
		if !req.Filter.Allowed(caller.File) {
			continue
		}
		node := CallNode{Method: caller.Name, Class: caller.Parent, File: caller.File, Line: cand.line}
		cf.nodeCount++
		cf.visited[callerDefIdx] = true
		node.Children = cf.recurseCallers(callerDefIdx, 1)
		roots = append(roots, node)
		if len(roots) >= cf.maxPerLevel {
			break
		}
	}

	sort.Slice(roots, func(i, j int) bool {
		if roots[i].File != roots[j].File {
			return roots[i].File < roots[j].File
		}
		return roots[i].Line < roots[j].Line
	})

	return CallTreeResult{Roots: roots, Warnings: warnings, TotalNodes: cf.nodeCount}
}

type lineRef struct {
	file string
	line uint32
}

// callerCandidateLines resolves (file,line) pairs from the ContentIndex for
// the method token, falling back to a substring match for camelCase-split
// tokenization (spec.md §4.11 up-direction step 1).
func callerCandidateLines(ci *contentindex.Index, method string) []lineRef {
	token := strings.ToLower(method)
	postings := ci.Postings(token)
	if len(postings) == 0 && hasUpper(method) {
		for _, tok := range ci.TokensContaining(token) {
			postings = append(postings, ci.Postings(tok)...)
		}
	}
	var out []lineRef
	for _, p := range postings {
		path, ok := ci.FilePath(p.FileID)
		if !ok {
			continue
		}
		for _, ln := range p.Lines {
			out = append(out, lineRef{file: path, line: ln})
		}
	}
	return out
}

func hasUpper(s string) bool {
	for _, r := range s {
		if unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// innermostCallableDef finds the innermost Method/Constructor/Property/
// Function definition in file whose [Line, EndLine] brackets line.
func innermostCallableDef(di *defindex.Index, file string, line uint32) (uint32, defindex.DefinitionEntry, bool) {
	var best defindex.DefinitionEntry
	var bestIdx uint32
	found := false
	for _, idx := range di.ByFile(file) {
		def, ok := di.Definition(idx)
		if !ok || !callableKind(def.Kind) {
			continue
		}
		if line < def.Line || line > def.EndLine {
			continue
		}
		if !found || (def.EndLine-def.Line) < (best.EndLine-best.Line) {
			best, bestIdx, found = def, idx, true
		}
	}
	return bestIdx, best, found
}

func callableKind(k defindex.Kind) bool {
	switch k {
	case defindex.KindMethod, defindex.KindConstructor, defindex.KindProperty, defindex.KindFunction:
		return true
	default:
		return false
	}
}

// verifyCallSite implements spec.md §4.11 up-direction step 3: require a
// call site on this exact line naming method. With nil allowedClasses (no
// class filter requested) any receiver is accepted; otherwise the call's
// ReceiverType must be in allowedClasses, and a call whose receiver is
// absent or an unresolved variable name is rejected.
func (cf *callerFinder) verifyCallSite(callerDefIdx uint32, line uint32, method string, allowedClasses map[string]bool) bool {
	calls := cf.di.Calls(callerDefIdx)
	if len(calls) == 0 {
		if caller, ok := cf.di.Definition(callerDefIdx); ok && strings.EqualFold(caller.Name, method) {
			return false // token hit is the definition's own name in its signature, not a call
		}
		return true // no call-site data: graceful fallback, accept
	}
	for _, c := range calls {
		if c.Line != line || !strings.EqualFold(c.Callee, method) {
			continue
		}
		if allowedClasses == nil {
			return true // no class filter requested: any receiver is acceptable
		}
		if c.ReceiverType == "" {
			continue // absent receiver cannot satisfy the class filter; reject
		}
		if allowedClasses[c.ReceiverType] {
			return true
		}
	}
	return false
}

func (cf *callerFinder) recurseCallers(defIdx uint32, depth int) []CallNode {
	if depth >= cf.depth || cf.nodeCount >= cf.maxTotal {
		return nil
	}
	def, ok := cf.di.Definition(defIdx)
	if !ok {
		return nil
	}
	allowedClasses := map[string]bool{def.Parent: true}
	for _, di2 := range cf.di.ByBaseType(def.Parent) {
		if sub, ok := cf.di.Definition(di2); ok {
			allowedClasses[sub.Name] = true
		}
	}
	candidates := callerCandidateLines(cf.ci, def.Name)

	var out []CallNode
	seen := make(map[uint32]bool)
	for _, cand := range candidates {
		if cf.nodeCount >= cf.maxTotal || len(out) >= cf.maxPerLevel {
			break
		}
		callerDefIdx, caller, ok := innermostCallableDef(cf.di, cand.file, cand.line)
		if !ok || callerDefIdx == defIdx || seen[callerDefIdx] || cf.visited[callerDefIdx] {
			continue
		}
		if !cf.verifyCallSite(callerDefIdx, cand.line, def.Name, allowedClasses) {
			continue
		}
		if !cf.req.Filter.Allowed(caller.File) {
			continue
		}
		seen[callerDefIdx] = true
		cf.visited[callerDefIdx] = true
		cf.nodeCount++
		node := CallNode{Method: caller.Name, Class: caller.Parent, File: caller.File, Line: cand.line}
		node.Children = cf.recurseCallers(callerDefIdx, depth+1)
		out = append(out, node)
	}
	return out
}

// targetDefSet resolves the definition indices that (method, class) itself
// names, so callerCandidateLines' token-postings scan can skip a method's
// own declaration line instead of mistaking it for a self-call.
func targetDefSet(di *defindex.Index, method, class string) map[uint32]bool {
	out := make(map[uint32]bool)
	for _, idx := range di.ByName(method) {
		def, ok := di.Definition(idx)
		if !ok {
			continue
		}
		if class != "" && !strings.EqualFold(def.Parent, class) {
			continue
		}
		out[idx] = true
	}
	return out
}

// distinctParentsOf lists the distinct class names that declare a
// definition named method, used for ambiguity warnings.
func distinctParentsOf(di *defindex.Index, method string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, idx := range di.ByName(method) {
		def, ok := di.Definition(idx)
		if !ok || def.Parent == "" {
			continue
		}
		if !seen[def.Parent] {
			seen[def.Parent] = true
			out = append(out, def.Parent)
		}
	}
	sort.Strings(out)
	return out
}

func ambiguityWarning(classes []string) string {
	shown := classes
	truncated := false
	if len(shown) > 10 {
		shown = shown[:10]
		truncated = true
	}
	msg := "method name resolves to multiple classes: " + strings.Join(shown, ", ")
	if truncated {
		msg += "…"
	}
	return msg
}

// Callees builds the down-direction tree of spec.md §4.11: methods that
// (Method, Class?) calls.
func Callees(di *defindex.Index, req CallTreeRequest) CallTreeResult {
	maxPerLevel, maxTotal, depth := req.limits()
	state := &calleeState{di: di, filter: req.Filter, maxPerLevel: maxPerLevel, maxTotal: maxTotal, depth: depth, visited: make(map[uint32]bool)}

	var warnings []string
	var roots []CallNode
	for _, idx := range di.ByName(req.Method) {
		def, ok := di.Definition(idx)
		if !ok || !callableKind(def.Kind) {
			continue
		}
		if req.Class != "" && !strings.EqualFold(def.Parent, req.Class) {
			continue
		}
		if state.visited[idx] {
			continue
		}
		state.visited[idx] = true
		state.nodeCount++
		node := CallNode{Method: def.Name, Class: def.Parent, File: def.File, Line: def.Line}
		node.Children = state.recurse(idx, 1)
		roots = append(roots, node)
	}
	if req.Class == "" {
		parents := distinctParentsOf(di, req.Method)
		if len(parents) > 1 {
			warnings = append(warnings, ambiguityWarning(parents))
		}
	}

	sort.Slice(roots, func(i, j int) bool {
		if roots[i].File != roots[j].File {
			return roots[i].File < roots[j].File
		}
		return roots[i].Line < roots[j].Line
	})
	return CallTreeResult{Roots: roots, Warnings: warnings, TotalNodes: state.nodeCount}
}

type calleeState struct {
	di          *defindex.Index
	filter      PathFilter
	maxPerLevel int
	maxTotal    int
	depth       int
	visited     map[uint32]bool
	nodeCount   int
}

func (s *calleeState) recurse(callerDefIdx uint32, depth int) []CallNode {
	if depth >= s.depth || s.nodeCount >= s.maxTotal {
		return nil
	}
	var out []CallNode
	for _, c := range s.di.Calls(callerDefIdx) {
		if s.nodeCount >= s.maxTotal || len(out) >= s.maxPerLevel {
			break
		}
		if c.ReceiverType == "" {
			continue // unresolved receiver: skip in down mode
		}
		for _, idx := range s.di.ByName(c.Callee) {
			def, ok := s.di.Definition(idx)
			if !ok || !strings.EqualFold(def.Parent, c.ReceiverType) || !callableKind(def.Kind) {
				continue
			}
			if s.visited[idx] {
				continue
			}
			if !s.filter.Allowed(def.File) {
				continue
			}
			s.visited[idx] = true
			s.nodeCount++
			node := CallNode{Method: def.Name, Class: def.Parent, File: def.File, Line: c.Line}
			node.Children = s.recurse(idx, depth+1)
			out = append(out, node)
		}
	}
	return out
}
