package defindex

import (
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_csharp "github.com/tree-sitter/tree-sitter-c-sharp/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// lang identifies which grammar a file's extension maps to.
type lang int

const (
	langNone lang = iota
	langCSharp
	langTypeScript
	langTSX
)

func langForExt(ext string) lang {
	switch strings.ToLower(ext) {
	case "cs":
		return langCSharp
	case "ts":
		return langTypeScript
	case "tsx":
		return langTSX
	default:
		return langNone
	}
}

// grammarSet holds one parser per grammar, created lazily so a worker that
// never sees a .ts file never instantiates the TypeScript parser
// (spec.md §4.8 step 1).
type grammarSet struct {
	parsers map[lang]*tree_sitter.Parser
}

func newGrammarSet() *grammarSet {
	return &grammarSet{parsers: make(map[lang]*tree_sitter.Parser)}
}

func (g *grammarSet) parserFor(l lang) (*tree_sitter.Parser, error) {
	if p, ok := g.parsers[l]; ok {
		return p, nil
	}
	p := tree_sitter.NewParser()
	var langPtr *tree_sitter.Language
	switch l {
	case langCSharp:
		langPtr = tree_sitter.NewLanguage(tree_sitter_csharp.Language())
	case langTypeScript:
		langPtr = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	case langTSX:
		langPtr = tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTSX())
	default:
		return nil, nil
	}
	if err := p.SetLanguage(langPtr); err != nil {
		return nil, err
	}
	g.parsers[l] = p
	return p, nil
}

func (g *grammarSet) close() {
	for _, p := range g.parsers {
		p.Close()
	}
}
