package defindex

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// visitCSharp walks a C# syntax tree, grounded on the node-kind vocabulary
// teacher's parser_language_setup.go setupCSharp query already names
// (class_declaration, interface_declaration, struct_declaration,
// record_declaration, enum_declaration, method_declaration,
// constructor_declaration, property_declaration, field_declaration,
// namespace_declaration).
func (w *walker) visitCSharp(n tree_sitter.Node, kind string, parent string) {
	switch kind {
	case "class_declaration", "interface_declaration", "struct_declaration", "record_declaration":
		w.csharpType(n, kind, parent)
		return
	case "enum_declaration":
		name := fieldText(n, "name", w.content)
		w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindEnum, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent,
		})
		return
	case "namespace_declaration":
		name := fieldText(n, "name", w.content)
		w.descendInto(n, name)
		return
	case "method_declaration":
		w.csharpMember(n, KindMethod, parent)
		return
	case "constructor_declaration":
		w.csharpMember(n, KindConstructor, parent)
		return
	case "property_declaration":
		name := fieldText(n, "name", w.content)
		ci := w.classFor(parent)
		if name != "" {
			ci.fields[name] = stripGenerics(fieldText(n, "type", w.content))
		}
		defIdx := w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindProperty, File: w.fe.path,
			Line: line1(n), EndLine: endLine1(n), Parent: parent,
			Attributes: csharpAttributes(n, w.content),
		})
		if body := findChildKind(n, "arrow_expression_clause"); body != nil {
			w.addBody(defIdx, *body, parent)
		}
		return
	case "field_declaration":
		w.csharpField(n, parent)
		return
	}

	w.descendInto(n, parent)
}

func (w *walker) csharpType(n tree_sitter.Node, kind string, parent string) {
	var k Kind
	switch kind {
	case "class_declaration":
		k = KindClass
	case "interface_declaration":
		k = KindInterface
	case "struct_declaration":
		k = KindStruct
	case "record_declaration":
		k = KindRecord
	}
	name := fieldText(n, "name", w.content)
	bases := csharpBaseTypes(n, w.content)

	w.addDefinition(DefinitionEntry{
		Name: name, Kind: k, File: w.fe.path,
		Line: line1(n), EndLine: endLine1(n), Parent: parent,
		Attributes: csharpAttributes(n, w.content),
		BaseTypes:  bases,
	})

	ci := w.classFor(name)
	ci.baseTypes = bases

	if body := fieldNode(n, "body"); body != nil {
		w.descendInto(*body, name)
	}
}

func (w *walker) csharpMember(n tree_sitter.Node, k Kind, parent string) {
	name := fieldText(n, "name", w.content)
	if k == KindConstructor && name == "" {
		name = parent
	}
	defIdx := w.addDefinition(DefinitionEntry{
		Name: name, Kind: k, File: w.fe.path,
		Line: line1(n), EndLine: endLine1(n), Parent: parent,
		Attributes: csharpAttributes(n, w.content),
		HasBody:    true,
	})
	if body := fieldNode(n, "body"); body != nil {
		w.addBody(defIdx, *body, parent)
	} else if body := findChildKind(n, "arrow_expression_clause"); body != nil {
		w.addBody(defIdx, *body, parent)
	}
}

// csharpField records the class field-type map entry for every declarator
// in a (possibly multi-variable) field_declaration.
func (w *walker) csharpField(n tree_sitter.Node, parent string) {
	varDecl := fieldNode(n, "declaration")
	if varDecl == nil {
		return
	}
	typ := stripGenerics(fieldText(*varDecl, "type", w.content))
	ci := w.classFor(parent)
	for _, decl := range findChildrenKind(*varDecl, "variable_declarator") {
		name := fieldText(decl, "name", w.content)
		if name == "" {
			name = nodeText(decl, w.content)
		}
		ci.fields[name] = typ
		w.addDefinition(DefinitionEntry{
			Name: name, Kind: KindField, File: w.fe.path,
			Line: line1(decl), EndLine: endLine1(decl), Parent: parent,
		})
	}
}

// csharpBaseTypes collects the identifiers named in a class/interface/
// struct/record's base_list (extends/implements in one grammar production).
func csharpBaseTypes(n tree_sitter.Node, content []byte) []string {
	baseList := findChildKind(n, "base_list")
	if baseList == nil {
		return nil
	}
	var out []string
	for _, c := range allChildren(*baseList) {
		switch c.Kind() {
		case "identifier", "generic_name", "qualified_name":
			out = append(out, stripGenerics(nodeText(c, content)))
		}
	}
	return out
}

// csharpAttributes collects the names in any attribute_list preceding n.
func csharpAttributes(n tree_sitter.Node, content []byte) []string {
	var out []string
	for _, c := range findChildrenKind(n, "attribute_list") {
		for _, attr := range findChildrenKind(c, "attribute") {
			name := fieldText(attr, "name", content)
			if name == "" {
				name = nodeText(attr, content)
			}
			out = append(out, name)
		}
	}
	return out
}
