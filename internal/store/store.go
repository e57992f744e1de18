// Package store owns the server process's one instance of each index
// (spec.md §4's ownership rule) and the two readiness flags that gate tool
// dispatch on them (spec.md §4.13 step 3 / §5's release/acquire semantics).
package store

import (
	"sync/atomic"

	"github.com/pustynsky/codescope/internal/contentindex"
	"github.com/pustynsky/codescope/internal/defindex"
	"github.com/pustynsky/codescope/internal/fileindex"
)

// Store is the single shared handle the dispatcher, builders, and watcher
// all hold. Each index already carries its own internal RWMutex (the
// shared-reader/exclusive-writer guard spec.md §5 names); Store adds the
// cross-cutting readiness flags and lets callers swap an index wholesale
// after a background rebuild.
type Store struct {
	Root string

	files   atomic.Pointer[fileindex.Index]
	content atomic.Pointer[contentindex.Index]
	defs    atomic.Pointer[defindex.Index]

	filesReady   atomic.Bool
	contentReady atomic.Bool
	defReady     atomic.Bool
}

func New(root string) *Store {
	return &Store{Root: root}
}

func (s *Store) Files() *fileindex.Index     { return s.files.Load() }
func (s *Store) Content() *contentindex.Index { return s.content.Load() }
func (s *Store) Defs() *defindex.Index       { return s.defs.Load() }

func (s *Store) FilesReady() bool   { return s.filesReady.Load() }
func (s *Store) ContentReady() bool { return s.contentReady.Load() }
func (s *Store) DefReady() bool     { return s.defReady.Load() }

// SetFiles publishes a freshly built or rebuilt FileIndex and marks it
// ready with release ordering, per spec.md §5's readiness protocol.
func (s *Store) SetFiles(idx *fileindex.Index) {
	s.files.Store(idx)
	s.filesReady.Store(true)
}

func (s *Store) SetContent(idx *contentindex.Index) {
	s.content.Store(idx)
	s.contentReady.Store(true)
}

func (s *Store) SetDefs(idx *defindex.Index) {
	s.defs.Store(idx)
	s.defReady.Store(true)
}

// ClearContentReady marks the ContentIndex not-ready; the previous index
// pointer is left in place so reads in flight still see a last-known-good
// index. The watcher's bulk rebuild does not call it or ClearDefReady: it
// keeps the ready flags set while it rebuilds.
func (s *Store) ClearContentReady() { s.contentReady.Store(false) }
func (s *Store) ClearDefReady()     { s.defReady.Store(false) }
