// Command codescope is the server binary: it loads or builds the three
// indexes under a configured root, then serves search_* tools over stdio
// JSON-RPC until stdin closes. Grounded on the teacher's cmd/lci/main.go
// urfave/cli/v2 App/Command structure and mcpCommand's signal-driven
// graceful-shutdown sequencing, reduced to "serve"/"reindex"/"version" per
// spec.md's explicit Non-goal scoping the elaborate CLI surface out of core.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/fileindex"
	"github.com/pustynsky/codescope/internal/pathkey"
	"github.com/pustynsky/codescope/internal/rpcserver"
	"github.com/pustynsky/codescope/internal/store"
	"github.com/pustynsky/codescope/internal/walker"
	"github.com/pustynsky/codescope/internal/watch"
)

const version = "0.1.0"
const appName = "codescope"

func main() {
	app := &cli.App{
		Name:                   appName,
		Usage:                  "persistent code-search server over three indexes",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Config file path (KDL)", Value: ".codescope.kdl"},
			&cli.StringFlag{Name: "root", Aliases: []string{"r"}, Usage: "Project root directory to index (overrides config)"},
			&cli.StringFlag{Name: "extensions", Usage: "Comma-separated extensions list (overrides config)"},
			&cli.BoolFlag{Name: "enable-definitions", Usage: "Build and load the DefinitionIndex"},
			&cli.BoolFlag{Name: "enable-watch", Usage: "Start the filesystem watcher"},
			&cli.Float64Flag{Name: "max-age-hours", Usage: "Staleness threshold for all indexes"},
			&cli.BoolFlag{Name: "auto-reindex", Usage: "Rebuild on staleness instead of warn"},
			&cli.IntFlag{Name: "bulk-threshold", Usage: "Watcher event-batch size above which a full rebuild is preferred"},
			&cli.IntFlag{Name: "max-response-kb", Usage: "Truncator budget"},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve search_* tools over stdio JSON-RPC",
				Action: serveCommand,
			},
			{
				Name:   "reindex",
				Usage:  "Build every configured index and save it, then exit",
				Action: reindexCommand,
			},
			{
				Name:  "version",
				Usage: "Print the server version",
				Action: func(c *cli.Context) error {
					fmt.Println(appName, version)
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if root := c.String("root"); root != "" {
		cfg.Project.Root = root
	}
	if exts := c.String("extensions"); exts != "" {
		cfg.Index.Extensions = strings.Split(pathkey.NormalizeExtensions(exts), ",")
	}
	if c.IsSet("enable-definitions") {
		cfg.Index.EnableDefinitions = c.Bool("enable-definitions")
	}
	if c.IsSet("enable-watch") {
		cfg.Index.EnableWatch = c.Bool("enable-watch")
	}
	if c.IsSet("max-age-hours") {
		cfg.Index.MaxAgeHours = c.Float64("max-age-hours")
	}
	if c.IsSet("auto-reindex") {
		cfg.Index.AutoReindex = c.Bool("auto-reindex")
	}
	if c.IsSet("bulk-threshold") {
		cfg.Index.BulkThreshold = c.Int("bulk-threshold")
	}
	if c.IsSet("max-response-kb") {
		cfg.Search.MaxResponseKB = c.Int("max-response-kb")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// indexPaths resolves the three deterministic on-disk names spec.md §6
// derives from (canonical root, extensions, kind).
type indexPaths struct {
	files, content, defs string
}

func resolveIndexPaths(cfg *config.Config) (indexPaths, error) {
	root, err := pathkey.Canonicalize(cfg.Project.Root)
	if err != nil {
		return indexPaths{}, err
	}
	ext := cfg.ExtensionsSpec()
	var p indexPaths
	if p.files, err = pathkey.IndexFilePath(appName, root, ext, pathkey.KindFileList); err != nil {
		return indexPaths{}, err
	}
	if p.content, err = pathkey.IndexFilePath(appName, root, ext, pathkey.KindWordSearch); err != nil {
		return indexPaths{}, err
	}
	if p.defs, err = pathkey.IndexFilePath(appName, root, ext, pathkey.KindCodeStructure); err != nil {
		return indexPaths{}, err
	}
	return p, nil
}

// loadOrBuild implements spec.md §4.13 step 1: try load_compressed from
// disk; on miss (or stale, if auto-reindex is set), build in the
// background and publish when ready.
func loadOrBuild(st *store.Store, cfg *config.Config, paths indexPaths) {
	opts := walker.NewOptions(cfg)
	staleSecs := cfg.StaleSeconds()
	now := time.Now().Unix()

	if fi, err := fileindex.Load(paths.files); err == nil && (!cfg.Index.AutoReindex || !fi.IsStale(now)) {
		st.SetFiles(fi)
		diag.Index("loaded FileIndex from %s", paths.files)
	} else {
		go buildFiles(st, opts, staleSecs, now, paths.files)
	}

	if ci, err := contentindex.Load(paths.content); err == nil && (!cfg.Index.AutoReindex || !ci.IsStale(now)) {
		st.SetContent(ci)
		diag.Index("loaded ContentIndex from %s", paths.content)
	} else {
		go buildContent(st, opts, staleSecs, now, paths.content)
	}

	if cfg.Index.EnableDefinitions {
		if di, err := defindex.Load(paths.defs); err == nil && (!cfg.Index.AutoReindex || !di.IsStale(now)) {
			st.SetDefs(di)
			diag.Index("loaded DefinitionIndex from %s", paths.defs)
		} else {
			go buildDefs(st, opts, staleSecs, now, paths.defs)
		}
	}
}

// buildFiles/buildContent/buildDefs each save-then-reload after a fresh
// build, per spec.md §5's resource-scoping note: reclaim heap fragmentation
// by round-tripping through disk rather than keeping the just-built value.
func buildFiles(st *store.Store, opts walker.Options, staleSecs, now int64, path string) {
	fi, err := fileindex.Build(context.Background(), opts, staleSecs, now)
	if err != nil {
		diag.Index("FileIndex build failed: %v", err)
		return
	}
	if err := fi.Save(path); err != nil {
		diag.Index("FileIndex save failed: %v", err)
	}
	if reloaded, err := fileindex.Load(path); err == nil {
		fi = reloaded
	}
	st.SetFiles(fi)
}

func buildContent(st *store.Store, opts walker.Options, staleSecs, now int64, path string) {
	ci, err := contentindex.Build(context.Background(), opts, staleSecs, now)
	if err != nil {
		diag.Index("ContentIndex build failed: %v", err)
		return
	}
	if err := ci.Save(path); err != nil {
		diag.Index("ContentIndex save failed: %v", err)
	}
	if reloaded, err := contentindex.Load(path); err == nil {
		ci = reloaded
	}
	st.SetContent(ci)
}

func buildDefs(st *store.Store, opts walker.Options, staleSecs, now int64, path string) {
	di, err := defindex.Build(context.Background(), opts, staleSecs, now)
	if err != nil {
		diag.Index("DefinitionIndex build failed: %v", err)
		return
	}
	if err := di.Save(path); err != nil {
		diag.Index("DefinitionIndex save failed: %v", err)
	}
	if reloaded, err := defindex.Load(path); err == nil {
		di = reloaded
	}
	st.SetDefs(di)
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	paths, err := resolveIndexPaths(cfg)
	if err != nil {
		return err
	}

	st := store.New(cfg.Project.Root)
	loadOrBuild(st, cfg, paths)

	var watcher *watch.Watcher
	if cfg.Index.EnableWatch {
		watcher, err = watch.New(st, walker.NewOptions(cfg), time.Duration(cfg.Performance.DebounceMs)*time.Millisecond, cfg.Index.BulkThreshold)
		if err != nil {
			diag.Index("watcher init failed: %v", err)
		} else if err := watcher.Start(); err != nil {
			diag.Index("watcher start failed: %v", err)
		}
	}

	// Diagnostic output must stop before the stdio JSON-RPC stream starts
	// (spec.md §6's "diagnostic logs on the error stream" still applies
	// pre-serve, but framing must stay clean once tools/call traffic flows).
	diag.SetRPCMode(true)

	server := rpcserver.NewServer(st, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Run(ctx)
	}()

	var runErr error
	select {
	case runErr = <-errChan:
	case <-sigChan:
		cancel()
		timer := time.NewTimer(2 * time.Second)
		defer timer.Stop()
		select {
		case runErr = <-errChan:
		case <-timer.C:
			os.Stdin.Close()
			forceTimer := time.NewTimer(500 * time.Millisecond)
			defer forceTimer.Stop()
			select {
			case runErr = <-errChan:
			case <-forceTimer.C:
				runErr = nil
			}
		}
	}

	if watcher != nil {
		watcher.Stop()
	}
	return runErr
}

func reindexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	paths, err := resolveIndexPaths(cfg)
	if err != nil {
		return err
	}
	opts := walker.NewOptions(cfg)
	staleSecs := cfg.StaleSeconds()
	now := time.Now().Unix()

	fi, err := fileindex.Build(context.Background(), opts, staleSecs, now)
	if err != nil {
		return err
	}
	if err := fi.Save(paths.files); err != nil {
		return err
	}
	fmt.Printf("FileIndex: %d entries -> %s\n", len(fi.Snap()), paths.files)

	ci, err := contentindex.Build(context.Background(), opts, staleSecs, now)
	if err != nil {
		return err
	}
	if err := ci.Save(paths.content); err != nil {
		return err
	}
	fmt.Printf("ContentIndex: %d tokens -> %s\n", ci.TotalTokens(), paths.content)

	if cfg.Index.EnableDefinitions {
		di, err := defindex.Build(context.Background(), opts, staleSecs, now)
		if err != nil {
			return err
		}
		if err := di.Save(paths.defs); err != nil {
			return err
		}
		fmt.Printf("DefinitionIndex: %d definitions -> %s\n", len(di.AllDefinitions()), paths.defs)
	}

	return nil
}
