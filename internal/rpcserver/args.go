// Package rpcserver implements the line-delimited JSON-RPC / MCP server of
// spec.md §4.13-§4.14: tool dispatch over stdio, readiness gating on the
// shared Store, and progressive response truncation. Grounded on the
// teacher's internal/mcp package (mcp.NewServer/AddTool/Run(ctx,
// &mcp.StdioTransport{}) and the createJSONResponse/createErrorResponse
// pair in internal/mcp/response.go).
package rpcserver

import (
	"path/filepath"
	"strings"

	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/query"
)

// pathFilterArgs is the argument shape shared by search_grep, search_find,
// and search_callers for excluding paths/dirs/extensions (spec.md §4.9,
// §4.11's PathFilter).
type pathFilterArgs struct {
	Exclude    []string `json:"exclude,omitempty"`
	ExcludeDir []string `json:"excludeDir,omitempty"`
	Ext        []string `json:"ext,omitempty"`
}

func (a pathFilterArgs) toFilter() query.PathFilter {
	return query.PathFilter{Exclude: a.Exclude, ExcludeDir: a.ExcludeDir, Ext: a.Ext}
}

// grepArgs is search_grep's and search_fast's JSON request shape.
type grepArgs struct {
	Terms           []string `json:"terms"`
	Pattern         string   `json:"pattern"` // single-term convenience alias for Terms
	Mode            string   `json:"mode"`
	Substring       *bool    `json:"substring"`
	Regex           bool     `json:"regex"`
	Phrase          bool     `json:"phrase"`
	CaseInsensitive *bool    `json:"caseInsensitive"`

	ShowLines    bool `json:"showLines"`
	ContextLines int  `json:"contextLines"`
	Before       int  `json:"before"`
	After        int  `json:"after"`

	MaxResults int  `json:"maxResults"`
	CountOnly  bool `json:"countOnly"`

	Dir string `json:"dir"`

	pathFilterArgs
}

func (a grepArgs) terms() []string {
	if len(a.Terms) > 0 {
		return a.Terms
	}
	if a.Pattern != "" {
		return []string{a.Pattern}
	}
	return nil
}

// toRequest resolves spec.md §6's substring/regex/phrase default: substring
// defaults true unless the caller explicitly set it false, or set regex
// without setting substring (the else-branch below covers the regex-
// disables-substring case; Normalize() still rejects substring+phrase).
func (a grepArgs) toRequest() query.GrepRequest {
	caseInsensitive := true
	if a.CaseInsensitive != nil {
		caseInsensitive = *a.CaseInsensitive
	}
	substring := true
	if a.Substring != nil {
		substring = *a.Substring
	} else if a.Regex {
		substring = false
	}
	return query.GrepRequest{
		Terms:           a.terms(),
		Mode:            a.Mode,
		Substring:       substring,
		Regex:           a.Regex,
		Phrase:          a.Phrase,
		CaseInsensitive: caseInsensitive,
		ShowLines:       a.ShowLines,
		ContextLines:    a.ContextLines,
		Before:          a.Before,
		After:           a.After,
		MaxResults:      a.MaxResults,
		CountOnly:       a.CountOnly,
		Filter:          a.pathFilterArgs.toFilter(),
	}
}

// findArgs is search_find's JSON request shape.
type findArgs struct {
	Substring  string `json:"substring"`
	Regex      string `json:"regex"`
	DirsOnly   bool   `json:"dirsOnly"`
	FilesOnly  bool   `json:"filesOnly"`
	MaxResults int    `json:"maxResults"`
	Dir        string `json:"dir"`
}

// definitionsArgs is search_definitions' JSON request shape.
type definitionsArgs struct {
	Name      string `json:"name"`
	NameMode  string `json:"nameMode"`
	Kind      string `json:"kind"`
	Attribute string `json:"attribute"`
	BaseType  string `json:"baseType"`
	File      string `json:"file"`
	Parent    string `json:"parent"`

	ContainsLine *int `json:"containsLine"`

	IncludeBody       bool `json:"includeBody"`
	MaxBodyLines      int  `json:"maxBodyLines"`
	MaxTotalBodyLines int  `json:"maxTotalBodyLines"`

	MaxResults int `json:"maxResults"`

	pathFilterArgs
}

func (a definitionsArgs) toRequest() query.DefRequest {
	req := query.DefRequest{
		Name:              a.Name,
		NameMode:          a.NameMode,
		Attribute:         a.Attribute,
		BaseType:          a.BaseType,
		File:              a.File,
		Parent:            a.Parent,
		IncludeBody:       a.IncludeBody,
		MaxBodyLines:      a.MaxBodyLines,
		MaxTotalBodyLines: a.MaxTotalBodyLines,
		MaxResults:        a.MaxResults,
		Filter:            a.pathFilterArgs.toFilter(),
	}
	if a.Kind != "" {
		req.Kind = defindex.Kind(strings.ToLower(a.Kind))
		req.HasKind = true
	}
	if a.ContainsLine != nil {
		req.ContainsLine = *a.ContainsLine
		req.HasContainsLine = true
	}
	return req
}

// callersArgs is search_callers' JSON request shape; Direction picks
// Callers ("up", default) vs Callees ("down") per spec.md §4.11.
type callersArgs struct {
	Method    string `json:"method"`
	Class     string `json:"class"`
	Direction string `json:"direction"`

	Depth              int `json:"depth"`
	MaxCallersPerLevel int `json:"maxCallersPerLevel"`
	MaxTotalNodes      int `json:"maxTotalNodes"`

	pathFilterArgs
}

func (a callersArgs) toRequest() query.CallTreeRequest {
	return query.CallTreeRequest{
		Method:             a.Method,
		Class:              a.Class,
		Depth:              a.Depth,
		MaxCallersPerLevel: a.MaxCallersPerLevel,
		MaxTotalNodes:      a.MaxTotalNodes,
		Filter:             a.pathFilterArgs.toFilter(),
	}
}

// reindexArgs is the empty argument shape of search_reindex and
// search_reindex_definitions. Their handlers do not decode arguments, so
// any object passed in the MCP tools/call envelope is ignored.
type reindexArgs struct{}

type helpArgs struct {
	Tool string `json:"tool"`
}

// dirWithinRoot implements spec.md §6's "reject dir values not inside the
// server's configured root" rule for search_grep and search_find. It
// returns dir resolved to a slash-separated path relative to root, suitable
// for a PathFilter.ExcludeDir-style prefix check; "" means "no dir filter".
func dirWithinRoot(root, dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	abs := dir
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(root, dir)
	}
	abs = filepath.Clean(abs)
	rootClean := filepath.Clean(root)
	rel, err := filepath.Rel(rootClean, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errOutsideRoot
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// withinDir reports whether relPath lies inside dir (a slash-separated
// path relative to root, as returned by dirWithinRoot), or dir is "".
func withinDir(relPath, dir string) bool {
	if dir == "" {
		return true
	}
	return relPath == dir || strings.HasPrefix(relPath, dir+"/")
}
