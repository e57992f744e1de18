// Package defindex implements the DefinitionIndex (spec.md §4.8): AST-derived
// definitions and their call graph, built from the C#/TypeScript/TSX
// grammars via github.com/tree-sitter/go-tree-sitter.
package defindex

import (
	"sync"

	"github.com/pustynsky/codescope/internal/codec"
)

func init() {
	codec.RegisterConcreteTypes(Snapshot{})
}

// Kind enumerates the definition shapes spec.md §4.8 distinguishes for
// ranking (type-level kinds sort before member-level kinds, §4.10).
type Kind string

const (
	KindClass       Kind = "class"
	KindInterface   Kind = "interface"
	KindStruct      Kind = "struct"
	KindRecord      Kind = "record"
	KindEnum        Kind = "enum"
	KindNamespace   Kind = "namespace"
	KindTypeAlias   Kind = "type_alias"
	KindMethod      Kind = "method"
	KindConstructor Kind = "constructor"
	KindFunction    Kind = "function"
	KindProperty    Kind = "property"
	KindField       Kind = "field"
)

// TypeLevel reports whether k is a type-level kind (class/interface/struct/
// record/enum/namespace/type_alias) as opposed to a member-level kind.
func (k Kind) TypeLevel() bool {
	switch k {
	case KindClass, KindInterface, KindStruct, KindRecord, KindEnum, KindNamespace, KindTypeAlias:
		return true
	default:
		return false
	}
}

// DefinitionEntry is one AST-derived symbol.
type DefinitionEntry struct {
	Name       string
	Kind       Kind
	File       string // relative path
	Line       uint32 // 1-based
	EndLine    uint32
	Parent     string // enclosing type name, if any
	Attributes []string
	BaseTypes  []string // for type-level kinds: extends/implements list
	HasBody    bool

	// Tombstoned marks a definition removed by the watcher (spec.md §4.12)
	// whose slot is kept so every other definition's index stays stable.
	Tombstoned bool
}

// CallSite is one resolved (or partially resolved) invocation inside a
// definition's body (spec.md §4.8 step 6).
type CallSite struct {
	CallerDefIdx uint32
	Callee       string
	ReceiverType string // resolved per the receiver table; "" if unresolved
	Line         uint32
}

// Snapshot is the gob-encodable, whole-file-replace payload, named per
// spec.md §3's DefinitionIndex field list.
type Snapshot struct {
	Root          string
	CreatedAt     int64
	MaxAgeSecs    int64
	Extensions    []string
	Files         []string // relative paths that produced at least one definition
	Definitions   []DefinitionEntry

	NameIndex      map[string][]uint32 // lowercased name -> def indices
	KindIndex      map[Kind][]uint32
	AttributeIndex map[string][]uint32
	BaseTypeIndex  map[string][]uint32 // lowercased base type -> def indices of its subtypes
	FileIndex      map[string][]uint32 // relative path -> def indices

	MethodCalls map[uint32][]CallSite // caller def idx -> call sites inside its body

	ParseErrors    int
	LossyUTF8Files int
}

// Index is the read-mostly in-memory wrapper.
type Index struct {
	rw   sync.RWMutex
	snap Snapshot
}

func wrap(snap Snapshot) *Index {
	return &Index{snap: snap}
}

// Save writes the index via the compressed codec.
func (idx *Index) Save(path string) error {
	idx.rw.RLock()
	snap := idx.snap
	idx.rw.RUnlock()
	return codec.Save(snap, path)
}

// Load reads an index previously written by Save.
func Load(path string) (*Index, error) {
	var snap Snapshot
	if err := codec.Load(path, &snap); err != nil {
		return nil, err
	}
	return wrap(snap), nil
}

// IsStale reports whether the index has aged past MaxAgeSecs as of nowUnix
// (spec.md §6's saturating staleness check).
func (idx *Index) IsStale(nowUnix int64) bool {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	if idx.snap.MaxAgeSecs <= 0 {
		return false
	}
	age := nowUnix - idx.snap.CreatedAt
	if age < 0 {
		return false
	}
	return age > idx.snap.MaxAgeSecs
}

// Definition returns the entry at idx, and whether it exists and is live.
func (idx *Index) Definition(i uint32) (DefinitionEntry, bool) {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	if int(i) >= len(idx.snap.Definitions) || idx.snap.Definitions[i].Tombstoned {
		return DefinitionEntry{}, false
	}
	return idx.snap.Definitions[i], true
}

// ByName returns def indices whose name matches (case-insensitive exact).
func (idx *Index) ByName(name string) []uint32 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]uint32(nil), idx.snap.NameIndex[lower(name)]...)
}

// ByKind returns def indices of the given kind.
func (idx *Index) ByKind(k Kind) []uint32 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]uint32(nil), idx.snap.KindIndex[k]...)
}

// ByFile returns def indices declared in the given relative path.
func (idx *Index) ByFile(path string) []uint32 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]uint32(nil), idx.snap.FileIndex[path]...)
}

// ByAttribute returns def indices carrying the given attribute/decorator.
func (idx *Index) ByAttribute(attr string) []uint32 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]uint32(nil), idx.snap.AttributeIndex[lower(attr)]...)
}

// ByBaseType returns def indices of types whose base-type list contains baseType.
func (idx *Index) ByBaseType(baseType string) []uint32 {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]uint32(nil), idx.snap.BaseTypeIndex[lower(baseType)]...)
}

// Calls returns the call sites recorded inside callerDefIdx's body.
func (idx *Index) Calls(callerDefIdx uint32) []CallSite {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return append([]CallSite(nil), idx.snap.MethodCalls[callerDefIdx]...)
}

// AllDefinitions returns every live definition, for full scans (e.g. callee
// resolution by method name across all files). Tombstoned slots left by
// RemoveFile are omitted.
func (idx *Index) AllDefinitions() []DefinitionEntry {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	out := make([]DefinitionEntry, 0, len(idx.snap.Definitions))
	for _, def := range idx.snap.Definitions {
		if !def.Tombstoned {
			out = append(out, def)
		}
	}
	return out
}

// IndexedEntry pairs a definition with its global index, for full scans
// that need to report back a resolvable def index (e.g. regex/substring
// name matching) rather than just the value.
type IndexedEntry struct {
	Idx   uint32
	Entry DefinitionEntry
}

// AllIndexed returns every live definition paired with its global index.
func (idx *Index) AllIndexed() []IndexedEntry {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	out := make([]IndexedEntry, 0, len(idx.snap.Definitions))
	for i, def := range idx.snap.Definitions {
		if !def.Tombstoned {
			out = append(out, IndexedEntry{Idx: uint32(i), Entry: def})
		}
	}
	return out
}

// Stats returns parse_errors/lossy_utf8_files counters.
func (idx *Index) Stats() (parseErrors, lossyFiles int) {
	idx.rw.RLock()
	defer idx.rw.RUnlock()
	return idx.snap.ParseErrors, idx.snap.LossyUTF8Files
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
