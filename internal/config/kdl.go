package config

import (
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// applyKDL parses a .codescope.kdl document and overlays recognized nodes
// onto cfg, following teacher's internal/config/kdl_config.go node-walking
// idiom, narrowed to SPEC_FULL.md's enumerated option set (spec.md §6).
func applyKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return err
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "root":
					if s, ok := firstStringArg(cn); ok {
						cfg.Project.Root = s
					}
				case "name":
					if s, ok := firstStringArg(cn); ok {
						cfg.Project.Name = s
					}
				}
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "extensions":
					if items := collectStringArgs(cn); len(items) > 0 {
						cfg.Index.Extensions = items
					}
				case "enable_definitions":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.EnableDefinitions = b
					}
				case "enable_watch":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.EnableWatch = b
					}
				case "max_age_hours":
					if v, ok := firstFloatArg(cn); ok {
						cfg.Index.MaxAgeHours = v
					}
				case "auto_reindex":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.AutoReindex = b
					}
				case "bulk_threshold":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.BulkThreshold = v
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "follow_symlinks":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.FollowSymlinks = b
					}
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
				}
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_goroutines":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.MaxGoroutines = v
					}
				case "debounce_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.DebounceMs = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_response_kb":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResponseKB = v
					}
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				}
			}
		case "include":
			cfg.Include = append(cfg.Include, collectStringArgs(n)...)
		case "exclude":
			cfg.Exclude = collectStringArgs(n)
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

func firstFloatArg(n *document.Node) (float64, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		for _, cn := range n.Children {
			out = append(out, nodeName(cn))
		}
	}
	return out
}
