package syntax

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/jward/pennyone/internal/model"
)

// ecmaAdapter covers TypeScript, TSX and JavaScript, whose grammars share the
// node types used here.
type ecmaAdapter struct {
	name       string
	extensions []string
	grammar    func() *sitter.Language
}

// TypeScript returns the adapter for .ts files.
func TypeScript() Adapter {
	return &ecmaAdapter{name: "typescript", extensions: []string{".ts", ".mts", ".cts"}, grammar: typescript.GetLanguage}
}

// TSX returns the adapter for .tsx files.
func TSX() Adapter {
	return &ecmaAdapter{name: "tsx", extensions: []string{".tsx"}, grammar: tsx.GetLanguage}
}

// JavaScript returns the adapter for .js, .jsx, .mjs and .cjs files.
func JavaScript() Adapter {
	return &ecmaAdapter{name: "javascript", extensions: []string{".js", ".jsx", ".mjs", ".cjs"}, grammar: javascript.GetLanguage}
}

var ecmaNodeTypes = map[Category][]string{
	CategoryDecision: {
		"if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "ternary_expression", "catch_clause", "switch_case",
	},
	CategoryBlock:  {"statement_block"},
	CategoryImport: {"import_statement", "export_statement", "call_expression"},
	CategoryExport: {"export_statement"},
}

func (a *ecmaAdapter) Name() string                  { return a.name }
func (a *ecmaAdapter) Extensions() []string          { return a.extensions }
func (a *ecmaAdapter) Grammar() *sitter.Language     { return a.grammar() }
func (a *ecmaAdapter) NodeTypes(c Category) []string { return ecmaNodeTypes[c] }

func (a *ecmaAdapter) Comments() CommentStyle {
	return CommentStyle{Line: []string{"//"}, BlockStart: "/*", BlockEnd: "*/", Quotes: "\"'`"}
}

func (a *ecmaAdapter) ImportEdges(n *sitter.Node, src []byte) []model.ImportEdge {
	switch n.Type() {
	case "import_statement":
		return ecmaImportStatement(n, src)
	case "export_statement":
		source := n.ChildByFieldName("source")
		if source == nil {
			return nil
		}
		return []model.ImportEdge{{Source: unquote(source.Content(src)), Local: "*", Imported: "*"}}
	case "call_expression":
		return ecmaRequire(n, src)
	}
	return nil
}

func ecmaImportStatement(n *sitter.Node, src []byte) []model.ImportEdge {
	source := n.ChildByFieldName("source")
	var clause *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "import_clause":
			clause = c
		case "import_require_clause":
			// import x = require('y')
			if s := c.ChildByFieldName("source"); s != nil {
				source = s
			} else if ss := childrenOfType(c, "string"); len(ss) > 0 {
				source = ss[0]
			}
			if id := childrenOfType(c, "identifier"); len(id) > 0 && source != nil {
				return []model.ImportEdge{{Source: unquote(source.Content(src)), Local: id[0].Content(src), Imported: "*"}}
			}
		}
	}
	if source == nil {
		if ss := childrenOfType(n, "string"); len(ss) > 0 {
			source = ss[0]
		} else {
			return nil
		}
	}
	spec := unquote(source.Content(src))
	if clause == nil {
		return []model.ImportEdge{{Source: spec}}
	}

	var edges []model.ImportEdge
	for i := 0; i < int(clause.NamedChildCount()); i++ {
		c := clause.NamedChild(i)
		switch c.Type() {
		case "identifier":
			edges = append(edges, model.ImportEdge{Source: spec, Local: c.Content(src), Imported: "default"})
		case "namespace_import":
			edges = append(edges, model.ImportEdge{Source: spec, Local: FirstIdentifier(c, src), Imported: "*"})
		case "named_imports":
			for _, s := range childrenOfType(c, "import_specifier") {
				name := fieldText(s, "name", src)
				local := fieldText(s, "alias", src)
				if local == "" {
					local = name
				}
				edges = append(edges, model.ImportEdge{Source: spec, Local: local, Imported: name})
			}
		}
	}
	if len(edges) == 0 {
		edges = append(edges, model.ImportEdge{Source: spec})
	}
	return edges
}

// ecmaRequire recognizes require('x') and import('x') calls with a literal
// argument.
func ecmaRequire(n *sitter.Node, src []byte) []model.ImportEdge {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	switch fn.Type() {
	case "import":
	case "identifier":
		if fn.Content(src) != "require" {
			return nil
		}
	default:
		return nil
	}
	args := n.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return nil
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return nil
	}
	local := "*"
	if p := n.Parent(); p != nil && p.Type() == "variable_declarator" {
		if name := fieldText(p, "name", src); name != "" {
			local = name
		}
	}
	return []model.ImportEdge{{Source: unquote(arg.Content(src)), Local: local, Imported: "*"}}
}

func (a *ecmaAdapter) ExportNames(n *sitter.Node, src []byte) []string {
	if n.Type() != "export_statement" {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.Child(i).Type() == "default" {
			return []string{"default"}
		}
	}

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		switch decl.Type() {
		case "lexical_declaration", "variable_declaration":
			var names []string
			for _, d := range childrenOfType(decl, "variable_declarator") {
				if name := fieldText(d, "name", src); name != "" {
					names = append(names, name)
				}
			}
			return names
		default:
			if name := fieldText(decl, "name", src); name != "" {
				return []string{name}
			}
			if id := FirstIdentifier(decl, src); id != "" {
				return []string{id}
			}
			return nil
		}
	}

	var names []string
	for _, clause := range childrenOfType(n, "export_clause") {
		for _, s := range childrenOfType(clause, "export_specifier") {
			name := fieldText(s, "alias", src)
			if name == "" {
				name = fieldText(s, "name", src)
			}
			if name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}
