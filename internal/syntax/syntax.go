// Package syntax wraps tree-sitter behind a per-language adapter so callers
// never branch on language identity.
//
// An Engine maps a file path to an Adapter by extension, lazily builds one
// parser per language and compiles one query per (language, category) pair.
// Both caches live for the lifetime of the Engine.
package syntax

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
)

var (
	// ErrUnsupportedLanguage is returned for files no adapter claims.
	ErrUnsupportedLanguage = errors.New("syntax: unsupported language")

	// ErrParseFailure wraps parser and query errors.
	ErrParseFailure = errors.New("syntax: parse failure")
)

// Category names a group of node types an adapter declares.
type Category int

const (
	CategoryDecision Category = iota
	CategoryBlock
	CategoryImport
	CategoryExport
)

var allCategories = []Category{CategoryDecision, CategoryBlock, CategoryImport, CategoryExport}

func (c Category) String() string {
	switch c {
	case CategoryDecision:
		return "decision"
	case CategoryBlock:
		return "block"
	case CategoryImport:
		return "import"
	case CategoryExport:
		return "export"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// Parser is a tree-sitter parser bound to one language. A tree-sitter parser
// is not safe for concurrent use, so Parse serializes callers.
type Parser struct {
	mu     sync.Mutex
	parser *sitter.Parser
	lang   string
}

// Parse parses src into a syntax tree.
func (p *Parser) Parse(ctx context.Context, src []byte) (*sitter.Tree, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tree, err := p.parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("%s parser returned no tree", p.lang)
	}
	return tree, nil
}

type queryKey struct {
	lang     string
	category Category
}

// Engine owns the parser and query caches.
type Engine struct {
	adapters map[string]Adapter // extension -> adapter

	mu      sync.Mutex
	parsers map[string]*Parser
	queries map[queryKey]*sitter.Query
}

// NewEngine creates an Engine with the given adapters. With none, the
// built-in TypeScript, TSX, JavaScript, Python and Go adapters are used.
func NewEngine(adapters ...Adapter) *Engine {
	if len(adapters) == 0 {
		adapters = DefaultAdapters()
	}
	e := &Engine{
		adapters: make(map[string]Adapter),
		parsers:  make(map[string]*Parser),
		queries:  make(map[queryKey]*sitter.Query),
	}
	for _, a := range adapters {
		for _, ext := range a.Extensions() {
			e.adapters[strings.ToLower(ext)] = a
		}
	}
	return e
}

// DefaultAdapters returns the built-in adapters.
func DefaultAdapters() []Adapter {
	return []Adapter{TypeScript(), TSX(), JavaScript(), Python(), Go()}
}

// AdapterFor returns the adapter claiming path's extension.
func (e *Engine) AdapterFor(path string) (Adapter, error) {
	ext := strings.ToLower(filepath.Ext(path))
	a, ok := e.adapters[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, ext)
	}
	return a, nil
}

// Supports reports whether some adapter claims path.
func (e *Engine) Supports(path string) bool {
	_, err := e.AdapterFor(path)
	return err == nil
}

// ParserFor returns the cached parser and adapter for path, building the
// parser on first use.
func (e *Engine) ParserFor(path string) (*Parser, Adapter, error) {
	a, err := e.AdapterFor(path)
	if err != nil {
		return nil, nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.parsers[a.Name()]; ok {
		return p, a, nil
	}
	sp := sitter.NewParser()
	sp.SetLanguage(a.Grammar())
	p := &Parser{parser: sp, lang: a.Name()}
	e.parsers[a.Name()] = p
	return p, a, nil
}

// Parse parses src and precomputes the category queries for its language.
func (e *Engine) Parse(ctx context.Context, src []byte, path string) (*Tree, error) {
	p, a, err := e.ParserFor(path)
	if err != nil {
		return nil, err
	}

	queries := make(map[Category]*sitter.Query, len(allCategories))
	for _, c := range allCategories {
		q, err := e.query(a, c)
		if err != nil {
			return nil, fmt.Errorf("%w: %s %s query: %v", ErrParseFailure, a.Name(), c, err)
		}
		queries[c] = q
	}

	tree, err := p.Parse(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParseFailure, path, err)
	}
	return &Tree{tree: tree, src: src, adapter: a, queries: queries}, nil
}

// query returns the cached query for (language, category). A category with
// no node types yields a nil query.
func (e *Engine) query(a Adapter, c Category) (*sitter.Query, error) {
	key := queryKey{lang: a.Name(), category: c}

	e.mu.Lock()
	defer e.mu.Unlock()
	if q, ok := e.queries[key]; ok {
		return q, nil
	}
	types := a.NodeTypes(c)
	if len(types) == 0 {
		e.queries[key] = nil
		return nil, nil
	}
	q, err := sitter.NewQuery([]byte(queryPattern(types)), a.Grammar())
	if err != nil {
		return nil, err
	}
	e.queries[key] = q
	return q, nil
}

// queryPattern builds an alternation that captures every node of the given
// types as @node.
func queryPattern(types []string) string {
	var b strings.Builder
	b.WriteString("[")
	for _, t := range types {
		b.WriteString(" (")
		b.WriteString(t)
		b.WriteString(")")
	}
	b.WriteString(" ] @node")
	return b.String()
}

// Tree is a parsed file together with its source and adapter.
type Tree struct {
	tree    *sitter.Tree
	src     []byte
	adapter Adapter
	queries map[Category]*sitter.Query
}

// Root returns the root node.
func (t *Tree) Root() *sitter.Node {
	return t.tree.RootNode()
}

// Source returns the parsed bytes.
func (t *Tree) Source() []byte {
	return t.src
}

// Adapter returns the adapter the tree was parsed with.
func (t *Tree) Adapter() Adapter {
	return t.adapter
}

// Nodes returns every node of the category's types in document order.
func (t *Tree) Nodes(c Category) []*sitter.Node {
	q := t.queries[c]
	if q == nil {
		return nil
	}
	cursor := sitter.NewQueryCursor()
	defer cursor.Close()
	cursor.Exec(q, t.tree.RootNode())

	var out []*sitter.Node
	for {
		match, ok := cursor.NextMatch()
		if !ok {
			break
		}
		for _, capture := range match.Captures {
			out = append(out, capture.Node)
		}
	}
	return out
}

// MaxDepth returns the deepest nesting of the category's node types: a node
// with no ancestor of those types has depth 1. Zero means none occur.
func (t *Tree) MaxDepth(c Category) int {
	types := make(map[string]bool)
	for _, nt := range t.adapter.NodeTypes(c) {
		types[nt] = true
	}
	if len(types) == 0 {
		return 0
	}
	return maxDepth(t.tree.RootNode(), types, 0)
}

func maxDepth(n *sitter.Node, types map[string]bool, depth int) int {
	if n == nil {
		return depth
	}
	if types[n.Type()] {
		depth++
	}
	best := depth
	for i := 0; i < int(n.ChildCount()); i++ {
		if d := maxDepth(n.Child(i), types, depth); d > best {
			best = d
		}
	}
	return best
}

// Close releases the underlying tree.
func (t *Tree) Close() {
	t.tree.Close()
}

// Text returns the source text of n.
func (t *Tree) Text(n *sitter.Node) string {
	return n.Content(t.src)
}
