package defindex

import (
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// classInfo accumulates the per-class field-type map and base-types list
// (spec.md §4.8 steps 4-5) while walking a file's AST.
type classInfo struct {
	name      string
	fields    map[string]string // field/property name -> type name, generics stripped
	baseTypes []string
}

// fileExtraction is one file's AST-derived output before it's merged into
// the global Snapshot by the sequential merge step. Call sites are resolved
// eagerly, while content is still in hand (spec.md §4.6 step 4's
// drop-buffers-before-further-allocation rule applies the same way here).
type fileExtraction struct {
	path        string
	lang        lang
	lossy       bool
	parseFailed bool

	definitions []DefinitionEntry
	bodies      []bodyRef // parallel to a subset of definitions, by defIdxInFile
	classes     map[string]*classInfo

	// callsByDef maps a file-local definition index to the call sites found
	// in its body, with receivers already resolved.
	callsByDef map[int][]CallSite
}

type bodyRef struct {
	defIdxInFile int
	node         tree_sitter.Node
	enclosing    string // class name the body executes in, for "this"/bare calls
}

// extractFile parses content with the grammar appropriate to l and walks the
// resulting tree, producing definitions, their call sites, and per-class
// field and base-type maps.
func extractFile(g *grammarSet, l lang, path string, content []byte) (*fileExtraction, error) {
	parser, err := g.parserFor(l)
	if err != nil || parser == nil {
		return nil, err
	}
	tree := parser.Parse(content, nil)
	if tree == nil {
		return &fileExtraction{path: path, lang: l, parseFailed: true}, nil
	}
	defer tree.Close()

	fe := &fileExtraction{path: path, lang: l, classes: make(map[string]*classInfo), callsByDef: make(map[int][]CallSite)}
	w := &walker{lang: l, content: content, fe: fe}
	w.visit(tree.RootNode(), "")

	for _, b := range fe.bodies {
		ci := fe.classes[b.enclosing]
		var fields map[string]string
		var bases []string
		if ci != nil {
			fields = ci.fields
			bases = ci.baseTypes
		}
		calls := extractCallSites(l, b.node, content, b.enclosing, fields, bases)
		if len(calls) > 0 {
			fe.callsByDef[b.defIdxInFile] = calls
		}
	}

	return fe, nil
}

type walker struct {
	lang    lang
	content []byte
	fe      *fileExtraction
}

func nodeText(n tree_sitter.Node, content []byte) string {
	return string(content[n.StartByte():n.EndByte()])
}

func line1(n tree_sitter.Node) uint32 {
	return uint32(n.StartPosition().Row) + 1
}

func endLine1(n tree_sitter.Node) uint32 {
	return uint32(n.EndPosition().Row) + 1
}

// visit recursively walks node, tracking the enclosing type name (parent)
// for Parent attribution and for "this"/bare-call receiver resolution.
func (w *walker) visit(n tree_sitter.Node, parent string) {
	kind := n.Kind()

	switch w.lang {
	case langCSharp:
		w.visitCSharp(n, kind, parent)
		return
	case langTypeScript, langTSX:
		w.visitTypeScript(n, kind, parent)
		return
	}
}

func (w *walker) childCount(n tree_sitter.Node) uint {
	return n.ChildCount()
}

func (w *walker) children(n tree_sitter.Node) []tree_sitter.Node {
	count := n.ChildCount()
	out := make([]tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func (w *walker) descendInto(n tree_sitter.Node, parent string) {
	for _, c := range w.children(n) {
		w.visit(c, parent)
	}
}

// addDefinition records a new DefinitionEntry and returns its file-local index.
func (w *walker) addDefinition(e DefinitionEntry) int {
	w.fe.definitions = append(w.fe.definitions, e)
	return len(w.fe.definitions) - 1
}

func (w *walker) addBody(defIdx int, body tree_sitter.Node, enclosing string) {
	w.fe.bodies = append(w.fe.bodies, bodyRef{defIdxInFile: defIdx, node: body, enclosing: enclosing})
}

func (w *walker) classFor(name string) *classInfo {
	ci, ok := w.fe.classes[name]
	if !ok {
		ci = &classInfo{name: name, fields: make(map[string]string)}
		w.fe.classes[name] = ci
	}
	return ci
}

// stripGenerics turns "Store<AppState>" into "Store" (spec.md §4.8 step 4).
func stripGenerics(typ string) string {
	for i := 0; i < len(typ); i++ {
		if typ[i] == '<' {
			return typ[:i]
		}
	}
	return typ
}
