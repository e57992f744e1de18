package defindex

import (
	"unicode"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// extractCallSites walks body (a method/constructor/function/arrow-function
// body) for every invocation and constructor call, resolving each receiver
// per spec.md §4.8 step 6's table.
func extractCallSites(l lang, body tree_sitter.Node, content []byte, enclosingClass string, fields map[string]string, baseTypes []string) []CallSite {
	locals := collectLocalVarTypes(l, body, content)
	var out []CallSite

	invocationKinds, newKinds, memberKind := nodeKindsFor(l)

	var walk func(tree_sitter.Node)
	walk = func(n tree_sitter.Node) {
		switch n.Kind() {
		case invocationKinds:
			if fn := fieldNode(n, "function"); fn != nil {
				callee, receiver := resolveReceiver(*fn, content, enclosingClass, fields, baseTypes, locals, memberKind)
				if callee != "" {
					out = append(out, CallSite{Callee: callee, ReceiverType: receiver, Line: line1(n)})
				}
			}
		case newKinds:
			typ := ""
			if t := fieldNode(n, "type"); t != nil {
				typ = nodeText(*t, content)
			} else if t := fieldNode(n, "constructor"); t != nil {
				typ = nodeText(*t, content)
			}
			if typ != "" {
				out = append(out, CallSite{Callee: stripGenerics(typ), ReceiverType: stripGenerics(typ), Line: line1(n)})
			}
		}
		for _, c := range allChildren(n) {
			walk(c)
		}
	}
	walk(body)
	return out
}

func nodeKindsFor(l lang) (invocation, newExpr, member string) {
	switch l {
	case langCSharp:
		return "invocation_expression", "object_creation_expression", "member_access_expression"
	default:
		return "call_expression", "new_expression", "member_expression"
	}
}

// resolveReceiver implements spec.md §4.8 step 6's receiver resolution table.
func resolveReceiver(fn tree_sitter.Node, content []byte, enclosingClass string, fields map[string]string, baseTypes []string, locals map[string]string, memberKind string) (callee, receiver string) {
	if fn.Kind() == memberKind {
		objField := "expression"
		if memberKind == "member_expression" {
			objField = "object"
		}
		nameField := "name"
		if memberKind == "member_expression" {
			nameField = "property"
		}
		obj := fieldNode(fn, objField)
		name := fieldNode(fn, nameField)
		if name == nil {
			return "", ""
		}
		callee = nodeText(*name, content)
		if obj == nil {
			return callee, ""
		}

		objText := nodeText(*obj, content)
		switch {
		case objText == "this":
			return callee, enclosingClass
		case objText == "super" || objText == "base":
			if len(baseTypes) > 0 {
				return callee, baseTypes[0]
			}
			return callee, ""
		case obj.Kind() == memberKind:
			// this.field.Method() — resolve the field reference's type.
			innerNameField := nameField
			innerName := fieldNode(*obj, innerNameField)
			innerObj := fieldNode(*obj, objField)
			if innerObj != nil && nodeText(*innerObj, content) == "this" && innerName != nil {
				if typ, ok := fields[nodeText(*innerName, content)]; ok {
					return callee, typ
				}
			}
			return callee, ""
		case obj.Kind() == "identifier" || obj.Kind() == "this_expression":
			return callee, resolveIdentifierReceiver(objText, fields, locals)
		default:
			return callee, ""
		}
	}

	// Bare call: identifier (no explicit receiver).
	if fn.Kind() == "identifier" {
		name := nodeText(fn, content)
		return name, enclosingClass
	}
	return "", ""
}

// resolveIdentifierReceiver handles the bare-identifier-as-receiver rows of
// spec.md §4.8 step 6's table: field reference, local variable, uppercase
// static reference, or the bare name preserved unresolved.
func resolveIdentifierReceiver(name string, fields map[string]string, locals map[string]string) string {
	if typ, ok := fields[name]; ok {
		return typ
	}
	if typ, ok := locals[name]; ok {
		return typ
	}
	if r := []rune(name); len(r) > 0 && unicode.IsUpper(r[0]) {
		return name
	}
	return name
}

// collectLocalVarTypes does a best-effort scan of body for
// `var x = new T(...)` / `let x: T = ...` declarations in the method's own
// scope (not nested closures), spec.md §4.8 step 6's local-variable row.
func collectLocalVarTypes(l lang, body tree_sitter.Node, content []byte) map[string]string {
	out := make(map[string]string)

	declKinds := map[string]bool{"variable_declaration": true, "lexical_declaration": true, "local_declaration_statement": true}

	var walk func(tree_sitter.Node)
	walk = func(n tree_sitter.Node) {
		if declKinds[n.Kind()] {
			for _, decl := range findDescendantsKind(n, "variable_declarator") {
				name := fieldText(decl, "name", content)
				if name == "" {
					continue
				}
				if typ := typeAnnotationText(decl, content); typ != "" {
					out[name] = stripGenerics(typ)
					continue
				}
				if value := fieldNode(decl, "value"); value != nil {
					if t := newExpressionType(*value, content); t != "" {
						out[name] = stripGenerics(t)
					}
				}
			}
		}
		for _, c := range allChildren(n) {
			walk(c)
		}
	}
	walk(body)
	return out
}

func newExpressionType(n tree_sitter.Node, content []byte) string {
	if n.Kind() != "object_creation_expression" && n.Kind() != "new_expression" {
		return ""
	}
	if t := fieldNode(n, "type"); t != nil {
		return nodeText(*t, content)
	}
	if t := fieldNode(n, "constructor"); t != nil {
		return nodeText(*t, content)
	}
	return ""
}
