package rpcserver

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/pathkey"
	"github.com/pustynsky/codescope/internal/store"
)

const serverName = "codescope-mcp-server"
const serverVersion = "0.1.0"

// Server is the process's single MCP server instance, holding the shared
// Store every tool handler reads and, on shutdown, saves (spec.md §4.13).
type Server struct {
	store  *store.Store
	cfg    *config.Config
	server *mcp.Server
}

// NewServer constructs the MCP server and registers the minimum tool
// surface spec.md §6 names, grounded on the teacher's
// NewServer/registerTools split in internal/mcp/server.go.
func NewServer(st *store.Store, cfg *config.Config) *Server {
	s := &Server{
		store: st,
		cfg:   cfg,
		server: mcp.NewServer(&mcp.Implementation{
			Name:    serverName,
			Version: serverVersion,
		}, nil),
	}
	s.registerTools()
	return s
}

// Run serves stdio JSON-RPC until stdin closes, then saves every in-memory
// index the Store currently holds before returning (spec.md §4.13 step 4).
func (s *Server) Run(ctx context.Context) error {
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	s.saveAll()
	return err
}

func (s *Server) saveAll() {
	root := s.cfg.Project.Root
	ext := s.cfg.ExtensionsSpec()

	if fi := s.store.Files(); fi != nil {
		if path, perr := pathkey.IndexFilePath("codescope", root, ext, pathkey.KindFileList); perr == nil {
			if err := fi.Save(path); err != nil {
				diag.RPC("save FileIndex failed: %v", err)
			}
		}
	}
	if ci := s.store.Content(); ci != nil {
		if path, perr := pathkey.IndexFilePath("codescope", root, ext, pathkey.KindWordSearch); perr == nil {
			if err := ci.Save(path); err != nil {
				diag.RPC("save ContentIndex failed: %v", err)
			}
		}
	}
	if di := s.store.Defs(); di != nil {
		if path, perr := pathkey.IndexFilePath("codescope", root, ext, pathkey.KindCodeStructure); perr == nil {
			if err := di.Save(path); err != nil {
				diag.RPC("save DefinitionIndex failed: %v", err)
			}
		}
	}
}

// registerTools registers the minimum tool surface of spec.md §6:
// search_grep, search_find, search_fast, search_info, search_reindex,
// search_reindex_definitions, search_definitions, search_callers,
// search_help.
func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "search_grep",
		Description: "Search file contents by token, substring, regex, or phrase, with TF-IDF ranking and optional surrounding line context.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"terms":           stringArraySchema("Search terms (OR'd by default)"),
				"pattern":         stringSchema("Single search term, shorthand for terms=[pattern]"),
				"mode":            stringSchema("\"or\" (default) or \"and\""),
				"substring":       boolSchema("Substring matching (default true, unless regex is set and substring is omitted)"),
				"regex":           boolSchema("Treat terms as regular expressions"),
				"phrase":          boolSchema("Treat terms as an exact multi-word phrase"),
				"caseInsensitive": boolSchema("Case-insensitive matching (default true)"),
				"showLines":       boolSchema("Include matching line content in the response"),
				"contextLines":    intSchema("Lines of context on both sides of a match"),
				"before":          intSchema("Lines of context before a match"),
				"after":           intSchema("Lines of context after a match"),
				"maxResults":      intSchema("Maximum files returned (0 = unlimited)"),
				"countOnly":       boolSchema("Return counts only, omit file entries"),
				"dir":             stringSchema("Restrict results to this directory, relative to the server root"),
				"exclude":         stringArraySchema("Glob patterns to exclude, matched against the relative path"),
				"excludeDir":      stringArraySchema("Directory name/glob components to reject"),
				"ext":             stringArraySchema("Allowed extensions"),
			},
		},
	}, s.handleGrep)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_fast",
		Description: "Lighter-weight search_grep: files and counts only, no line content, for quick existence checks.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"terms":           stringArraySchema("Search terms (OR'd by default)"),
				"pattern":         stringSchema("Single search term, shorthand for terms=[pattern]"),
				"mode":            stringSchema("\"or\" (default) or \"and\""),
				"substring":       boolSchema("Substring matching (default true)"),
				"regex":           boolSchema("Treat terms as regular expressions"),
				"caseInsensitive": boolSchema("Case-insensitive matching (default true)"),
				"maxResults":      intSchema("Maximum files returned (0 = unlimited)"),
				"dir":             stringSchema("Restrict results to this directory, relative to the server root"),
			},
		},
	}, s.handleFast)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_find",
		Description: "Find files by name (substring, regex, or OR'd terms), like 'find' or 'fd' over an in-memory file list.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"substring":  stringSchema("Comma-separated OR terms matched against the file name"),
				"regex":      stringSchema("Regex matched against the relative path"),
				"dirsOnly":   boolSchema("Only return directories"),
				"filesOnly":  boolSchema("Only return files"),
				"maxResults": intSchema("Maximum results (0 = unlimited)"),
				"dir":        stringSchema("Restrict results to this directory, relative to the server root"),
			},
		},
	}, s.handleFind)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_info",
		Description: "Report index readiness, size, staleness, and error/warning counters.",
		InputSchema: &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}},
	}, s.handleInfo)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_reindex",
		Description: "Rebuild the FileIndex and ContentIndex from disk.",
		InputSchema: &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}},
	}, s.handleReindex)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_reindex_definitions",
		Description: "Rebuild the DefinitionIndex from disk.",
		InputSchema: &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}},
	}, s.handleReindexDefinitions)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_definitions",
		Description: "Find AST-derived definitions by name, kind, attribute, base type, file, parent, or the definition enclosing a given line.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":              stringSchema("Definition name to look up"),
				"nameMode":          stringSchema("\"exact\" (default), \"substring\", \"or\", or \"regex\""),
				"kind":              stringSchema("Definition kind, e.g. class, method, function"),
				"attribute":         stringSchema("Attribute/decorator the definition must carry"),
				"baseType":          stringSchema("Base type/interface the definition must extend or implement"),
				"file":              stringSchema("Relative file path the definition must live in"),
				"parent":            stringSchema("Enclosing type name"),
				"containsLine":      intSchema("Find the innermost definition bracketing this line (requires file)"),
				"includeBody":       boolSchema("Include the definition's source body"),
				"maxBodyLines":      intSchema("Cap each definition's body to this many lines"),
				"maxTotalBodyLines": intSchema("Cap the total body lines returned across all definitions"),
				"maxResults":        intSchema("Maximum definitions returned (0 = unlimited)"),
				"exclude":           stringArraySchema("Glob patterns to exclude, matched against the relative path"),
				"excludeDir":        stringArraySchema("Directory name/glob components to reject"),
				"ext":               stringArraySchema("Allowed extensions"),
			},
		},
	}, s.handleDefinitions)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_callers",
		Description: "Build a caller (direction=up) or callee (direction=down) tree for a method, optionally scoped to a class.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"method":             stringSchema("Method/function name"),
				"class":              stringSchema("Enclosing class name, to disambiguate overloaded method names"),
				"direction":          stringSchema("\"up\" (callers, default) or \"down\" (callees)"),
				"depth":              intSchema("Tree depth (default 1)"),
				"maxCallersPerLevel": intSchema("Cap nodes returned at each level"),
				"maxTotalNodes":      intSchema("Cap total nodes across the whole tree"),
				"exclude":            stringArraySchema("Glob patterns to exclude, matched against the relative path"),
				"excludeDir":         stringArraySchema("Directory name/glob components to reject"),
				"ext":                stringArraySchema("Allowed extensions"),
			},
			Required: []string{"method"},
		},
	}, s.handleCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "search_help",
		Description: "Describe the available tools and their parameters.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"tool": stringSchema("Tool name to describe; omitted shows an overview")},
		},
	}, s.handleHelp)
}
