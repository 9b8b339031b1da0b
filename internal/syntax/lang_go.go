package syntax

import (
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"

	"github.com/jward/pennyone/internal/model"
)

type goAdapter struct{}

// Go returns the adapter for .go files.
func Go() Adapter {
	return goAdapter{}
}

var goNodeTypes = map[Category][]string{
	CategoryDecision: {"if_statement", "for_statement", "expression_case", "type_case", "communication_case"},
	CategoryBlock:    {"block"},
	CategoryImport:   {"import_spec"},
	CategoryExport:   {"function_declaration", "method_declaration", "type_spec", "const_spec", "var_spec"},
}

func (goAdapter) Name() string                  { return "go" }
func (goAdapter) Extensions() []string          { return []string{".go"} }
func (goAdapter) Grammar() *sitter.Language     { return golang.GetLanguage() }
func (goAdapter) NodeTypes(c Category) []string { return goNodeTypes[c] }

func (goAdapter) Comments() CommentStyle {
	return CommentStyle{Line: []string{"//"}, BlockStart: "/*", BlockEnd: "*/", Quotes: "\"'`"}
}

func (goAdapter) ImportEdges(n *sitter.Node, src []byte) []model.ImportEdge {
	if n.Type() != "import_spec" {
		return nil
	}
	path := unquote(fieldText(n, "path", src))
	if path == "" {
		return nil
	}
	local := fieldText(n, "name", src)
	if local == "" {
		local = path
		for i := len(path) - 1; i >= 0; i-- {
			if path[i] == '/' {
				local = path[i+1:]
				break
			}
		}
	}
	return []model.ImportEdge{{Source: path, Local: local, Imported: "*"}}
}

// ExportNames returns capitalized package-level names.
func (goAdapter) ExportNames(n *sitter.Node, src []byte) []string {
	switch n.Type() {
	case "function_declaration", "method_declaration":
		return exported(fieldText(n, "name", src))
	case "type_spec":
		if !packageLevel(n) {
			return nil
		}
		return exported(fieldText(n, "name", src))
	case "const_spec", "var_spec":
		if !packageLevel(n) {
			return nil
		}
		var names []string
		for _, c := range childrenOfType(n, "identifier") {
			names = append(names, exported(c.Content(src))...)
		}
		return names
	}
	return nil
}

// packageLevel reports whether a spec sits directly under source_file,
// possibly through a declaration and a parenthesized list.
func packageLevel(n *sitter.Node) bool {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Type() {
		case "source_file":
			return true
		case "function_declaration", "method_declaration", "func_literal", "block":
			return false
		}
	}
	return false
}

func exported(name string) []string {
	r, _ := utf8.DecodeRuneInString(name)
	if name == "" || !unicode.IsUpper(r) {
		return nil
	}
	return []string{name}
}
