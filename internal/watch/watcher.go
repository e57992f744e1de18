// Package watch implements the filesystem watcher and incremental index
// updater of spec.md §4.12: platform-native change notifications collected
// into a debounce window, applied as in-place mutations to the shared
// Store's three indexes, or as a full rebuild when a batch is too large.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pustynsky/codescope/internal/config"
	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/diag"
	"github.com/pustynsky/codescope/internal/fileindex"
	"github.com/pustynsky/codescope/internal/store"
	"github.com/pustynsky/codescope/internal/walker"
)

type eventKind int

const (
	eventUpsert eventKind = iota
	eventRemove
)

const defaultDebounce = 500 * time.Millisecond
const defaultBulkThreshold = 100

// Watcher owns the fsnotify handle and the debounce state; it is the sole
// writer into Store's indexes during normal operation (spec.md §4's
// ownership rule).
type Watcher struct {
	store         *store.Store
	opts          walker.Options
	debounce      time.Duration
	bulkThreshold int
	gitignore     *config.GitignoreMatcher

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	events map[string]eventKind
	timer  *time.Timer
}

// New creates a watcher rooted at opts.Root. debounce <= 0 and
// bulkThreshold <= 0 fall back to spec.md §4.12's defaults (500ms, 100).
func New(st *store.Store, opts walker.Options, debounce time.Duration, bulkThreshold int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	var gi *config.GitignoreMatcher
	if opts.RespectGitignore {
		gi, err = config.LoadGitignore(opts.Root)
		if err != nil {
			diag.Index("watch: gitignore load error: %v", err)
		}
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if bulkThreshold <= 0 {
		bulkThreshold = defaultBulkThreshold
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:         st,
		opts:          opts,
		debounce:      debounce,
		bulkThreshold: bulkThreshold,
		gitignore:     gi,
		fsw:           fsw,
		ctx:           ctx,
		cancel:        cancel,
		events:        make(map[string]eventKind),
	}, nil
}

// Start adds recursive directory watches and begins processing events.
func (w *Watcher) Start() error {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return err
	}
	if err := w.addWatches(root); err != nil {
		return err
	}
	w.wg.Add(1)
	go w.processEvents()
	diag.Index("watch: started for %s", root)
	return nil
}

// Stop cancels the event loop and closes the fsnotify handle. Pending
// debounced events are discarded rather than flushed: flushing here would
// mutate indexes that may already be mid-save during shutdown.
func (w *Watcher) Stop() {
	w.cancel()
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) addWatches(root string) error {
	visited := make(map[string]bool)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		real, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		if visited[real] {
			return filepath.SkipDir
		}
		visited[real] = true

		rel, relErr := filepath.Rel(root, path)
		if relErr == nil && rel != "." && w.shouldIgnoreDir(filepath.ToSlash(rel)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			diag.Index("watch: add watch failed for %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) shouldIgnoreDir(rel string) bool {
	if walker.ExcludedByGlob(rel, w.opts.Exclude) {
		return true
	}
	if w.gitignore != nil && w.gitignore.Match(rel, true) {
		return true
	}
	return false
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			diag.Index("watch: fsnotify error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return
	}
	rel, err := filepath.Rel(root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	info, statErr := os.Stat(ev.Name)
	if statErr != nil {
		if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
			w.queue(rel, eventRemove)
		}
		return
	}

	if info.IsDir() {
		if ev.Op&fsnotify.Create != 0 && !w.shouldIgnoreDir(rel) {
			if err := w.fsw.Add(ev.Name); err != nil {
				diag.Index("watch: add watch for new dir %s failed: %v", ev.Name, err)
			}
		}
		return
	}

	if w.opts.MaxFileSize > 0 && info.Size() > w.opts.MaxFileSize {
		return
	}
	if !walker.ExtensionAllowed(info.Name(), w.opts.Extensions) {
		return
	}
	if walker.ExcludedByGlob(rel, w.opts.Exclude) {
		return
	}
	if w.gitignore != nil && w.gitignore.Match(rel, false) {
		return
	}

	switch {
	case ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0:
		w.queue(rel, eventUpsert)
	case ev.Op&fsnotify.Remove != 0:
		w.queue(rel, eventRemove)
	}
}

func (w *Watcher) queue(rel string, kind eventKind) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events[rel] = kind
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

// flush is the debounce timeout callback (spec.md §4.12's "on timeout").
func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.events
	w.events = make(map[string]eventKind)
	w.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if len(batch) > w.bulkThreshold {
		diag.Index("watch: batch of %d exceeds bulk threshold %d, scheduling full rebuild", len(batch), w.bulkThreshold)
		go w.rebuildAll()
		return
	}

	diag.Index("watch: applying %d debounced events", len(batch))
	root, err := filepath.Abs(w.opts.Root)
	if err != nil {
		return
	}
	for rel, kind := range batch {
		switch kind {
		case eventRemove:
			w.applyRemove(rel)
		case eventUpsert:
			w.applyUpsert(root, rel)
		}
	}
}

func (w *Watcher) applyRemove(rel string) {
	if fi := w.store.Files(); fi != nil {
		fi.RemoveFile(rel)
	}
	if ci := w.store.Content(); ci != nil {
		ci.RemoveFile(rel)
	}
	if di := w.store.Defs(); di != nil {
		di.RemoveFile(rel)
	}
}

func (w *Watcher) applyUpsert(root, rel string) {
	abs := filepath.Join(root, rel)
	info, err := os.Stat(abs)
	if err != nil {
		w.applyRemove(rel)
		return
	}

	if fi := w.store.Files(); fi != nil {
		fi.UpsertFile(fileindex.Entry{
			Path:         rel,
			Size:         info.Size(),
			ModifiedSecs: info.ModTime().Unix(),
		})
	}
	if ci := w.store.Content(); ci != nil {
		if err := ci.UpsertFile(abs, rel); err != nil {
			diag.Index("watch: content upsert failed for %s: %v", rel, err)
		}
	}
	if di := w.store.Defs(); di != nil {
		raw, err := os.ReadFile(abs)
		if err != nil {
			diag.Index("watch: definition upsert read failed for %s: %v", rel, err)
			return
		}
		if err := di.UpsertFile(rel, raw); err != nil {
			diag.Index("watch: definition upsert failed for %s: %v", rel, err)
		}
	}
}

// rebuildAll replaces every index Store currently holds wholesale. The
// ready flags are left set throughout: spec.md §4.12 says to "serve with
// last-known index in the meantime", so the old pointer keeps answering
// queries until the new one is published, rather than flipping not-ready
// and forcing callers to retry (that path is reserved for the initial
// startup load in spec.md §4.13).
func (w *Watcher) rebuildAll() {
	ctx := context.Background()
	now := time.Now().Unix()

	if w.store.Files() != nil {
		if fi, err := fileindex.Build(ctx, w.opts, 0, now); err == nil {
			w.store.SetFiles(fi)
		} else {
			diag.Index("watch: full file index rebuild failed: %v", err)
		}
	}
	if w.store.Content() != nil {
		if ci, err := contentindex.Build(ctx, w.opts, 0, now); err == nil {
			w.store.SetContent(ci)
		} else {
			diag.Index("watch: full content index rebuild failed: %v", err)
		}
	}
	if w.store.Defs() != nil {
		if di, err := defindex.Build(ctx, w.opts, 0, now); err == nil {
			w.store.SetDefs(di)
		} else {
			diag.Index("watch: full definition index rebuild failed: %v", err)
		}
	}
}
