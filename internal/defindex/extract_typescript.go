package defindex

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// visitTypeScript walks a TS/TSX syntax tree, grounded on the node-kind
// vocabulary teacher's parser_language_setup.go setupTypeScript query
// already names (function_declaration, method_definition, class_declaration,
// interface_declaration, type_alias_declaration, enum_declaration).
func (w *walker) visitTypeScript(n tree_sitter.Node, kind string, parent string) {
	switch kind {
	case "class_declaration":
		w.tsClass(n, parent)
		return
	case "interface_declaration":
		name := fieldText(n, "name", w.content)
		bases := tsHeritageTypes(n, w.content)
		w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindInterface, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent,
			BaseTypes: bases,
		})
		if body := fieldNode(n, "body"); body != nil {
			w.descendInto(*body, name)
		}
		return
	case "type_alias_declaration":
		name := fieldText(n, "name", w.content)
		w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindTypeAlias, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent,
		})
		return
	case "enum_declaration":
		name := fieldText(n, "name", w.content)
		w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindEnum, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent,
		})
		return
	case "function_declaration":
		name := fieldText(n, "name", w.content)
		defIdx := w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindFunction, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent, HasBody: true,
		})
		if body := fieldNode(n, "body"); body != nil {
			w.addBody(defIdx, *body, parent)
		}
		return
	}

	w.descendInto(n, parent)
}

func (w *walker) tsClass(n tree_sitter.Node, parent string) {
	name := fieldText(n, "name", w.content)
	bases := tsHeritageTypes(n, w.content)

	w.addDefinition(DefinitionEntry{
		Name: name, Kind: KindClass, File: w.fe.path,
		Line: line1(n), EndLine: endLine1(n), Parent: parent,
		BaseTypes: bases,
	})

	ci := w.classFor(name)
	ci.baseTypes = bases

	body := fieldNode(n, "body")
	if body == nil {
		return
	}
	for _, member := range allChildren(*body) {
		switch member.Kind() {
		case "method_definition":
			w.tsMethod(member, name)
		case "public_field_definition":
			w.tsField(member, name, ci)
		}
	}
}

func (w *walker) tsMethod(n tree_sitter.Node, className string) {
	name := fieldText(n, "name", w.content)
	k := KindMethod
	if name == "constructor" {
		k = KindConstructor
		w.tsConstructorParameterProperties(n, className)
	}
	defIdx := w.addDefinition(DefinitionEntry{
		Name: name, Kind: k, File: w.fe.path,
		Line: line1(n), EndLine: endLine1(n), Parent: className, HasBody: true,
	})
	if body := fieldNode(n, "body"); body != nil {
		w.addBody(defIdx, *body, className)
	}
}

// tsField handles a class property, including an arrow-function initializer
// (treated as a method-shaped body, spec.md §4.8 step 3) and an `inject(X)`
// initializer (spec.md §4.8 step 4).
func (w *walker) tsField(n tree_sitter.Node, className string, ci *classInfo) {
	name := fieldText(n, "name", w.content)
	typ := stripGenerics(typeAnnotationText(n, w.content))

	value := fieldNode(n, "value")
	if value != nil && value.Kind() == "call_expression" {
		if callee := fieldText(*value, "function", w.content); callee == "inject" {
			if arg := firstCallArgument(*value, w.content); arg != "" {
				typ = stripGenerics(arg)
			}
		}
	}
	if typ != "" && name != "" {
		ci.fields[name] = typ
	}

	defIdx := w.addDefinition(DefinitionEntry{
		Name: name, Kind: KindField, File: w.fe.path,
		Line: line1(n), EndLine: endLine1(n), Parent: className,
	})
	if value != nil && value.Kind() == "arrow_function" {
		w.fe.definitions[defIdx].HasBody = true
		w.fe.definitions[defIdx].Kind = KindMethod
		if body := fieldNode(*value, "body"); body != nil {
			w.addBody(defIdx, *body, className)
		}
	}
}

// tsConstructorParameterProperties records TS parameter properties
// (`constructor(private x: T)`) as class fields, spec.md §4.8 step 4.
func (w *walker) tsConstructorParameterProperties(n tree_sitter.Node, className string) {
	params := fieldNode(n, "parameters")
	if params == nil {
		return
	}
	ci := w.classFor(className)
	for _, p := range allChildren(*params) {
		if p.Kind() != "required_parameter" && p.Kind() != "optional_parameter" {
			continue
		}
		if !hasAccessibilityModifier(p) {
			continue
		}
		name := fieldText(p, "pattern", w.content)
		if name == "" {
			name = nodeText(p, w.content)
		}
		typ := stripGenerics(typeAnnotationText(p, w.content))
		if typ == "" {
			if value := fieldNode(p, "value"); value != nil && value.Kind() == "call_expression" {
				if callee := fieldText(*value, "function", w.content); callee == "inject" {
					if arg := firstCallArgument(*value, w.content); arg != "" {
						typ = stripGenerics(arg)
					}
				}
			}
		}
		if name != "" && typ != "" {
			ci.fields[name] = typ
		}
	}
}

func hasAccessibilityModifier(p tree_sitter.Node) bool {
	for _, c := range allChildren(p) {
		switch c.Kind() {
		case "accessibility_modifier", "public", "private", "protected", "readonly":
			return true
		}
	}
	return false
}

// typeAnnotationText extracts the type text from a `: Type` annotation
// child, stripping the leading colon.
func typeAnnotationText(n tree_sitter.Node, content []byte) string {
	ann := findChildKind(n, "type_annotation")
	if ann == nil {
		return ""
	}
	text := nodeText(*ann, content)
	return strings.TrimSpace(strings.TrimPrefix(text, ":"))
}

// firstCallArgument returns the source text of a call_expression's first
// argument, used to resolve `inject(X)` to X.
func firstCallArgument(call tree_sitter.Node, content []byte) string {
	args := fieldNode(call, "arguments")
	if args == nil {
		return ""
	}
	for _, c := range allChildren(*args) {
		switch c.Kind() {
		case "(", ")", ",":
			continue
		default:
			return nodeText(c, content)
		}
	}
	return ""
}

// tsHeritageTypes collects the identifiers named in a class/interface's
// extends/implements clauses.
func tsHeritageTypes(n tree_sitter.Node, content []byte) []string {
	var out []string
	for _, heritage := range findDescendantsKind(n, "class_heritage") {
		out = append(out, heritageIdentifiers(heritage, content)...)
	}
	for _, ext := range findChildrenKind(n, "extends_type_clause") {
		out = append(out, heritageIdentifiers(ext, content)...)
	}
	return out
}

func heritageIdentifiers(n tree_sitter.Node, content []byte) []string {
	var out []string
	for _, c := range findDescendantsKind(n, "type_identifier") {
		out = append(out, stripGenerics(nodeText(c, content)))
	}
	for _, c := range findDescendantsKind(n, "identifier") {
		out = append(out, stripGenerics(nodeText(c, content)))
	}
	return out
}
