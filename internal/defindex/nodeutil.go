package defindex

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// fieldNode is a nil-safe wrapper over Node.ChildByFieldName.
func fieldNode(n tree_sitter.Node, field string) *tree_sitter.Node {
	return n.ChildByFieldName(field)
}

// fieldText returns the source text of n's named field, or "".
func fieldText(n tree_sitter.Node, field string, content []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return nodeText(*c, content)
}

// allChildren returns every direct child of n, named or anonymous.
func allChildren(n tree_sitter.Node) []tree_sitter.Node {
	count := n.ChildCount()
	out := make([]tree_sitter.Node, 0, count)
	for i := uint(0); i < count; i++ {
		if c := n.Child(i); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

// findChildKind returns the first direct child whose Kind matches, or nil.
func findChildKind(n tree_sitter.Node, kind string) *tree_sitter.Node {
	for _, c := range allChildren(n) {
		if c.Kind() == kind {
			cc := c
			return &cc
		}
	}
	return nil
}

// findChildrenKind returns every direct child whose Kind matches.
func findChildrenKind(n tree_sitter.Node, kind string) []tree_sitter.Node {
	var out []tree_sitter.Node
	for _, c := range allChildren(n) {
		if c.Kind() == kind {
			out = append(out, c)
		}
	}
	return out
}

// findDescendantsKind returns every descendant (not just direct children)
// whose Kind matches, stopping recursion at body-like boundary kinds the
// caller wants to exclude (nested function/class bodies) is the caller's
// responsibility — this helper recurses unconditionally.
func findDescendantsKind(n tree_sitter.Node, kind string) []tree_sitter.Node {
	var out []tree_sitter.Node
	var walk func(tree_sitter.Node)
	walk = func(node tree_sitter.Node) {
		if node.Kind() == kind {
			out = append(out, node)
		}
		for _, c := range allChildren(node) {
			walk(c)
		}
	}
	walk(n)
	return out
}
