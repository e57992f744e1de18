// Package config loads the server's enumerated start options (spec.md §6)
// from a ".codescope.kdl" file, following the teacher's KDL configuration
// layer (internal/config/config.go, kdl_config.go).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Config is the full set of enumerated CLI/config options spec.md §6 lists.
type Config struct {
	Project     Project
	Index       Index
	Performance Performance
	Search      Search
	Include     []string
	Exclude     []string
}

// Project identifies the one directory tree the server will serve.
type Project struct {
	Root string
	Name string
}

// Index controls builder behavior.
type Index struct {
	Extensions       []string // comma-separated extensions list, both builder filter and per-query default
	EnableDefinitions bool    // build and load the DefinitionIndex
	EnableWatch       bool    // start the filesystem watcher
	MaxAgeHours       float64 // staleness threshold for all indexes
	AutoReindex       bool    // rebuild on staleness instead of warn
	BulkThreshold     int     // watcher event-batch size above which a full rebuild is preferred
	RespectGitignore  bool
	FollowSymlinks    bool
	MaxFileSize       int64
}

// Performance controls parallelism.
type Performance struct {
	MaxGoroutines int
	DebounceMs    int
}

// Search controls default query shaping.
type Search struct {
	MaxResponseKB int // truncator budget (spec.md §4.14)
	MaxResults    int
}

// Default returns the teacher-style sane defaults, mirroring
// internal/config/kdl_config.go's parseKDL default block.
func Default() *Config {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	return &Config{
		Project: Project{Root: cwd, Name: filepath.Base(cwd)},
		Index: Index{
			Extensions:        []string{"go", "cs", "ts", "tsx", "js", "jsx", "py"},
			EnableDefinitions: true,
			EnableWatch:       true,
			MaxAgeHours:       24,
			AutoReindex:       false,
			BulkThreshold:     100,
			RespectGitignore:  true,
			FollowSymlinks:    false,
			MaxFileSize:       10 * 1024 * 1024,
		},
		Performance: Performance{
			MaxGoroutines: runtime.NumCPU(),
			DebounceMs:    500,
		},
		Search: Search{
			MaxResponseKB: 32,
			MaxResults:    500,
		},
		Include: []string{},
		Exclude: []string{"**/.*/**", "**/node_modules/**", "**/vendor/**", "**/bin/**", "**/obj/**"},
	}
}

// Load reads path (a .codescope.kdl file) if present, overlaying it onto
// Default(). A missing file is not an error — defaults are used as-is,
// mirroring teacher's "no KDL config found, use defaults" behavior.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := applyKDL(cfg, string(content)); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	root, err := filepath.Abs(cfg.Project.Root)
	if err == nil {
		cfg.Project.Root = filepath.Clean(root)
	}
	return cfg, nil
}

// Validate checks invariants the server depends on before it starts.
func (c *Config) Validate() error {
	if c.Project.Root == "" {
		return fmt.Errorf("config: project.root must not be empty")
	}
	info, err := os.Stat(c.Project.Root)
	if err != nil {
		return fmt.Errorf("config: project.root %q: %w", c.Project.Root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("config: project.root %q is not a directory", c.Project.Root)
	}
	if len(c.Index.Extensions) == 0 {
		return fmt.Errorf("config: index.extensions must not be empty")
	}
	if c.Index.BulkThreshold <= 0 {
		return fmt.Errorf("config: index.bulk_threshold must be positive")
	}
	if c.Search.MaxResponseKB <= 0 {
		return fmt.Errorf("config: search.max_response_kb must be positive")
	}
	return nil
}

// ExtensionsSpec joins the configured extensions into the comma-separated
// spec used for both hashing (pathkey.Hash8) and walker filtering.
func (c *Config) ExtensionsSpec() string {
	spec := ""
	for i, ext := range c.Index.Extensions {
		if i > 0 {
			spec += ","
		}
		spec += ext
	}
	return spec
}

// StaleSeconds converts MaxAgeHours to the saturating-subtraction-friendly
// integer seconds the index staleness check (spec.md §6) uses.
func (c *Config) StaleSeconds() int64 {
	return int64(c.Index.MaxAgeHours * 3600)
}
