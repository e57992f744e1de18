package rpcserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/cserr"
	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/fileindex"
	"github.com/pustynsky/codescope/internal/query"
	"github.com/pustynsky/codescope/internal/walker"
)

func unmarshalArgs(req *mcp.CallToolRequest, dst interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	return json.Unmarshal(req.Params.Arguments, dst)
}

// handleGrep implements search_grep (spec.md §4.9, via internal/query.Grep).
func (s *Server) handleGrep(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args grepArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_grep", fmt.Errorf("invalid parameters: %w", err))
	}
	return s.runGrep("search_grep", args)
}

// handleFast implements search_fast: the same engine, lighter output
// (spec.md §6 names it without further detail; grounded on the teacher
// CLI's "grep" vs "search" distinction — ultra-fast, files+counts only).
func (s *Server) handleFast(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args grepArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_fast", fmt.Errorf("invalid parameters: %w", err))
	}
	args.ShowLines = false
	return s.runGrep("search_fast", args)
}

func (s *Server) runGrep(operation string, args grepArgs) (*mcp.CallToolResult, error) {
	if !s.store.ContentReady() {
		return notReadyResponse(operation)
	}
	ci := s.store.Content()

	relDir, err := dirWithinRoot(s.cfg.Project.Root, args.Dir)
	if err != nil {
		return createErrorResponse(operation, err)
	}

	greq := args.toRequest()
	if err := greq.Normalize(); err != nil {
		return asToolError(operation, err)
	}

	resp, err := query.Grep(ci, s.cfg.Project.Root, greq)
	if err != nil {
		return asToolError(operation, err)
	}

	out := &grepResponseJSON{
		Summary: grepSummaryJSON{
			TotalFiles:       resp.TotalFiles,
			TotalResults:     resp.TotalResults,
			TotalOccurrences: resp.TotalOccurrences,
			SearchMode:       searchModeLabel(greq),
		},
	}
	for _, f := range resp.Files {
		if !withinDir(f.Path, relDir) {
			continue
		}
		out.Files = append(out.Files, toGrepFileJSON(f))
	}

	truncateGrep(out, budgetBytes(s.cfg.Search.MaxResponseKB))
	return createJSONResponse(out)
}

func searchModeLabel(r query.GrepRequest) string {
	switch {
	case r.Regex:
		return "regex"
	case r.Phrase:
		return "phrase"
	case r.Substring:
		return "substring"
	default:
		return "exact"
	}
}

func toGrepFileJSON(f query.GrepFileResult) grepFileJSON {
	out := grepFileJSON{
		Path:                 f.Path,
		Score:                f.Score,
		DistinctTermsMatched: f.DistinctTermsMatched,
		MatchedTokens:        f.MatchedTokens,
	}
	for _, g := range f.LineGroups {
		lg := lineGroupJSON{StartLine: g.StartLine, Lines: g.Lines, MatchIndices: g.MatchIndices}
		out.LineContent = append(out.LineContent, lg)
		for _, mi := range g.MatchIndices {
			out.Lines = append(out.Lines, g.StartLine+mi)
		}
	}
	return out
}

// handleFind implements search_find (spec.md §4.5, via fileindex.Query).
// Unlike the other index-backed tools, it is not gated on a readiness flag:
// spec.md §4.13 step 3 names "info, help, find" as working immediately.
func (s *Server) handleFind(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args findArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_find", fmt.Errorf("invalid parameters: %w", err))
	}
	fi := s.store.Files()
	if fi == nil {
		return notReadyResponse("search_find")
	}

	relDir, err := dirWithinRoot(s.cfg.Project.Root, args.Dir)
	if err != nil {
		return createErrorResponse("search_find", err)
	}

	results, err := fi.Query(fileindex.QueryOptions{
		Substring:  args.Substring,
		Regex:      args.Regex,
		DirsOnly:   args.DirsOnly,
		FilesOnly:  args.FilesOnly,
		MaxResults: args.MaxResults,
	})
	if err != nil {
		return asToolError("search_find", err)
	}

	var filtered []fileindex.Result
	for _, r := range results {
		if withinDir(r.Path, relDir) {
			filtered = append(filtered, r)
		}
	}

	data := map[string]interface{}{
		"results":    filtered,
		"totalFound": len(filtered),
	}
	truncateGenericArray(data, "results", "narrow the substring/regex pattern or set dirsOnly/filesOnly", budgetBytes(s.cfg.Search.MaxResponseKB))
	return createJSONResponse(data)
}

// handleInfo implements search_info: readiness, size, staleness, and error
// counters across all three indexes (spec.md §7's "surfaced via
// search_info" recovery policy).
func (s *Server) handleInfo(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	now := time.Now().Unix()
	info := map[string]interface{}{
		"root": s.cfg.Project.Root,
	}

	if fi := s.store.Files(); fi != nil {
		info["files"] = map[string]interface{}{
			"ready": s.store.FilesReady(),
			"count": len(fi.Snap()),
			"stale": fi.IsStale(now),
		}
	} else {
		info["files"] = map[string]interface{}{"ready": false}
	}

	if ci := s.store.Content(); ci != nil {
		info["content"] = map[string]interface{}{
			"ready":       s.store.ContentReady(),
			"totalFiles":  ci.TotalFiles(),
			"totalTokens": ci.TotalTokens(),
			"stale":       ci.IsStale(now),
		}
	} else {
		info["content"] = map[string]interface{}{"ready": false}
	}

	if di := s.store.Defs(); di != nil {
		parseErrors, lossyFiles := di.Stats()
		info["definitions"] = map[string]interface{}{
			"ready":          s.store.DefReady(),
			"count":          len(di.AllDefinitions()),
			"parseErrors":    parseErrors,
			"lossyUtf8Files": lossyFiles,
			"stale":          di.IsStale(now),
		}
	} else {
		info["definitions"] = map[string]interface{}{"ready": false}
	}

	return createJSONResponse(info)
}

// handleReindex implements search_reindex: rebuild FileIndex+ContentIndex.
func (s *Server) handleReindex(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts := walker.NewOptions(s.cfg)
	now := time.Now().Unix()
	staleSecs := s.cfg.StaleSeconds()

	fi, err := fileindex.Build(ctx, opts, staleSecs, now)
	if err != nil {
		return asToolError("search_reindex", err)
	}
	ci, err := contentindex.Build(ctx, opts, staleSecs, now)
	if err != nil {
		return asToolError("search_reindex", err)
	}
	s.store.SetFiles(fi)
	s.store.SetContent(ci)
	diag.RPC("search_reindex: rebuilt %d files", len(fi.Snap()))

	return createJSONResponse(map[string]interface{}{
		"success":     true,
		"filesCount":  len(fi.Snap()),
		"tokensCount": ci.TotalTokens(),
	})
}

// handleReindexDefinitions implements search_reindex_definitions: rebuild
// the DefinitionIndex only.
func (s *Server) handleReindexDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.cfg.Index.EnableDefinitions {
		return createErrorResponse("search_reindex_definitions", cserr.New(cserr.Config, "handleReindexDefinitions", "definitions are disabled for this server"))
	}
	opts := walker.NewOptions(s.cfg)
	now := time.Now().Unix()
	staleSecs := s.cfg.StaleSeconds()

	di, err := defindex.Build(ctx, opts, staleSecs, now)
	if err != nil {
		return asToolError("search_reindex_definitions", err)
	}
	s.store.SetDefs(di)
	parseErrors, lossyFiles := di.Stats()
	diag.RPC("search_reindex_definitions: rebuilt %d definitions", len(di.AllDefinitions()))

	return createJSONResponse(map[string]interface{}{
		"success":        true,
		"count":          len(di.AllDefinitions()),
		"parseErrors":    parseErrors,
		"lossyUtf8Files": lossyFiles,
	})
}

// handleDefinitions implements search_definitions (spec.md §4.10, via
// internal/query.Definitions).
func (s *Server) handleDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args definitionsArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_definitions", fmt.Errorf("invalid parameters: %w", err))
	}
	if !s.store.DefReady() {
		return notReadyResponse("search_definitions")
	}
	di := s.store.Defs()

	resp, err := query.Definitions(di, s.cfg.Project.Root, args.toRequest())
	if err != nil {
		return asToolError("search_definitions", err)
	}

	data := map[string]interface{}{
		"definitions": resp.Definitions,
		"totalFound":  resp.TotalFound,
	}
	truncateGenericArray(data, "definitions", "add name, kind, file, or parent filters", budgetBytes(s.cfg.Search.MaxResponseKB))
	return createJSONResponse(data)
}

// handleCallers implements search_callers (spec.md §4.11, via
// internal/query.Callers/Callees).
func (s *Server) handleCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args callersArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_callers", fmt.Errorf("invalid parameters: %w", err))
	}
	if args.Method == "" {
		return createErrorResponse("search_callers", cserr.New(cserr.Config, "handleCallers", "method is required"))
	}
	if !s.store.DefReady() {
		return notReadyResponse("search_callers")
	}
	di := s.store.Defs()

	var result query.CallTreeResult
	if args.Direction == "down" {
		result = query.Callees(di, args.toRequest())
	} else {
		if !s.store.ContentReady() {
			return notReadyResponse("search_callers")
		}
		ci := s.store.Content()
		result = query.Callers(ci, di, args.toRequest())
	}

	data := map[string]interface{}{
		"roots":      result.Roots,
		"warnings":   result.Warnings,
		"totalNodes": result.TotalNodes,
	}
	truncateGenericArray(data, "roots", "narrow with class, or reduce depth/maxCallersPerLevel", budgetBytes(s.cfg.Search.MaxResponseKB))
	return createJSONResponse(data)
}

// handleHelp implements search_help: static descriptive text, grounded on
// the teacher's "info" meta-tool (internal/mcp/handlers.go's handleInfo).
func (s *Server) handleHelp(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args helpArgs
	if err := unmarshalArgs(req, &args); err != nil {
		return createErrorResponse("search_help", fmt.Errorf("invalid parameters: %w", err))
	}

	overview := map[string]interface{}{
		"tools": []string{
			"search_grep", "search_find", "search_fast", "search_info",
			"search_reindex", "search_reindex_definitions",
			"search_definitions", "search_callers", "search_help",
		},
		"note": "Pass {\"tool\": \"<name>\"} for parameter details on a specific tool.",
	}

	details := map[string]map[string]string{
		"search_grep":                {"description": "Search file contents by token, substring, regex, or phrase with TF-IDF ranking."},
		"search_fast":                {"description": "Lighter search_grep: files and counts only."},
		"search_find":                {"description": "Find files by name, like 'find' or 'fd'."},
		"search_info":                {"description": "Report index readiness, size, staleness, and error counters."},
		"search_reindex":             {"description": "Rebuild the FileIndex and ContentIndex."},
		"search_reindex_definitions": {"description": "Rebuild the DefinitionIndex."},
		"search_definitions":         {"description": "Find AST-derived definitions by name, kind, attribute, base type, file, parent, or enclosing line."},
		"search_callers":             {"description": "Build a caller or callee tree for a method."},
		"search_help":                {"description": "Describe the available tools."},
	}

	if args.Tool == "" {
		return createJSONResponse(overview)
	}
	if d, ok := details[args.Tool]; ok {
		return createJSONResponse(d)
	}
	return createErrorResponse("search_help", cserr.New(cserr.Config, "handleHelp", "unknown tool "+args.Tool))
}
