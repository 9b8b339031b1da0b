package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/jward/pennyone/internal/model"
)

type pythonAdapter struct{}

// Python returns the adapter for .py files.
func Python() Adapter {
	return pythonAdapter{}
}

var pythonNodeTypes = map[Category][]string{
	CategoryDecision: {
		"if_statement", "elif_clause", "for_statement", "while_statement",
		"conditional_expression", "except_clause",
	},
	CategoryBlock:  {"block"},
	CategoryImport: {"import_statement", "import_from_statement"},
	CategoryExport: {"function_definition", "class_definition"},
}

func (pythonAdapter) Name() string                  { return "python" }
func (pythonAdapter) Extensions() []string          { return []string{".py"} }
func (pythonAdapter) Grammar() *sitter.Language     { return python.GetLanguage() }
func (pythonAdapter) NodeTypes(c Category) []string { return pythonNodeTypes[c] }

func (pythonAdapter) Comments() CommentStyle {
	return CommentStyle{Line: []string{"#"}, TripleQuoted: true, Quotes: "\"'"}
}

func (pythonAdapter) ImportEdges(n *sitter.Node, src []byte) []model.ImportEdge {
	switch n.Type() {
	case "import_statement":
		var edges []model.ImportEdge
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			switch c.Type() {
			case "dotted_name":
				name := c.Content(src)
				edges = append(edges, model.ImportEdge{Source: name, Local: name, Imported: "*"})
			case "aliased_import":
				name := fieldText(c, "name", src)
				edges = append(edges, model.ImportEdge{Source: name, Local: fieldText(c, "alias", src), Imported: "*"})
			}
		}
		return edges

	case "import_from_statement":
		module := n.ChildByFieldName("module_name")
		if module == nil {
			return nil
		}
		spec := module.Content(src)
		var names []string
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c.StartByte() == module.StartByte() {
				continue
			}
			switch c.Type() {
			case "dotted_name":
				names = append(names, c.Content(src))
			case "aliased_import":
				names = append(names, fieldText(c, "name", src))
			case "wildcard_import":
				names = append(names, "*")
			}
		}

		if module.Type() == "relative_import" {
			return relativeEdges(spec, names)
		}
		if len(names) == 0 {
			return []model.ImportEdge{{Source: spec, Local: spec, Imported: "*"}}
		}
		edges := make([]model.ImportEdge, 0, len(names))
		for _, name := range names {
			edges = append(edges, model.ImportEdge{Source: spec, Local: name, Imported: name})
		}
		return edges
	}
	return nil
}

// relativeEdges rewrites a relative module (".mod", "..pkg.mod", ".") into a
// path-style specifier the resolver understands. A bare dot prefix imports
// sibling modules by name.
func relativeEdges(spec string, names []string) []model.ImportEdge {
	rest := strings.TrimLeft(spec, ".")
	dots := len(spec) - len(rest)
	prefix := "./"
	if dots > 1 {
		prefix = strings.Repeat("../", dots-1)
	}

	if rest != "" {
		source := prefix + strings.ReplaceAll(rest, ".", "/")
		if len(names) == 0 {
			return []model.ImportEdge{{Source: source, Local: rest, Imported: "*"}}
		}
		edges := make([]model.ImportEdge, 0, len(names))
		for _, name := range names {
			edges = append(edges, model.ImportEdge{Source: source, Local: name, Imported: name})
		}
		return edges
	}

	var edges []model.ImportEdge
	for _, name := range names {
		if name == "*" {
			continue
		}
		edges = append(edges, model.ImportEdge{Source: prefix + strings.ReplaceAll(name, ".", "/"), Local: name, Imported: "*"})
	}
	return edges
}

// ExportNames treats public module-level functions and classes as exports.
func (pythonAdapter) ExportNames(n *sitter.Node, src []byte) []string {
	parent := n.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	if parent == nil || parent.Type() != "module" {
		return nil
	}
	name := fieldText(n, "name", src)
	if name == "" || strings.HasPrefix(name, "_") {
		return nil
	}
	return []string{name}
}
