package syntax

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/pennyone/internal/model"
)

// Adapter describes one language to the engine and extracts imports and
// exports from its nodes.
type Adapter interface {
	// Name is the language tag, unique per grammar.
	Name() string
	Extensions() []string
	Grammar() *sitter.Language
	NodeTypes(c Category) []string
	Comments() CommentStyle

	// ImportEdges returns the raw imports declared by an import node.
	ImportEdges(n *sitter.Node, src []byte) []model.ImportEdge

	// ExportNames returns the exported names declared by an export node. An
	// empty result means the node exports nothing.
	ExportNames(n *sitter.Node, src []byte) []string
}

// CommentStyle tells the line scanner how comments and string literals look.
type CommentStyle struct {
	Line       []string
	BlockStart string
	BlockEnd   string

	// TripleQuoted treats ''' and """ literals as block comments.
	TripleQuoted bool

	// Quotes are the single-character string delimiters. Backtick literals
	// may span lines.
	Quotes string
}

// FirstIdentifier returns the text of the first identifier-like descendant of
// n in document order, or "".
func FirstIdentifier(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	switch n.Type() {
	case "identifier", "type_identifier", "property_identifier", "field_identifier":
		return n.Content(src)
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if id := FirstIdentifier(n.NamedChild(i), src); id != "" {
			return id
		}
	}
	return ""
}

// unquote strips one layer of matching quotes from a string literal.
func unquote(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if first == last && strings.ContainsRune("\"'`", rune(first)) {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func childrenOfType(n *sitter.Node, typ string) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == typ {
			out = append(out, c)
		}
	}
	return out
}

func fieldText(n *sitter.Node, field string, src []byte) string {
	c := n.ChildByFieldName(field)
	if c == nil {
		return ""
	}
	return c.Content(src)
}
