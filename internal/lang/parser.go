package lang

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

// Tree is a parsed source file. Nodes with HasError set cover syntax
// errors; callers are expected to degrade gracefully around them rather
// than treat the whole tree as unusable.
type Tree struct {
	Root     *Node
	Source   []byte
	Language string
}

// Node is a node in the parse tree.
type Node struct {
	Type       string
	StartByte  uint32
	EndByte    uint32
	StartPoint Point
	EndPoint   Point
	Children   []*Node
	HasError   bool
}

// Point is a position in the source (0-indexed row and column).
type Point struct {
	Row    uint32
	Column uint32
}

// Parser wraps tree-sitter for parse-tree construction.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser   *sitter.Parser
	registry *Registry
}

// NewParser creates a parser backed by the default language registry.
func NewParser() *Parser {
	return NewParserWithRegistry(DefaultRegistry())
}

// NewParserWithRegistry creates a parser with a custom registry.
func NewParserWithRegistry(registry *Registry) *Parser {
	return &Parser{
		parser:   sitter.NewParser(),
		registry: registry,
	}
}

// Parse parses source code for the named language.
// Returns ErrUnsupportedLanguage when no grammar is registered and
// ErrParseFailure when tree-sitter cannot produce any tree (including a
// context deadline hit). Partial trees with error nodes succeed.
func (p *Parser) Parse(ctx context.Context, source []byte, language string) (*Tree, error) {
	tsLang, ok := p.registry.TreeSitterLanguage(language)
	if !ok {
		return nil, cserr.New(cserr.ErrCodeUnsupportedLanguage,
			fmt.Sprintf("no parser registered for language %q", language), nil)
	}

	p.parser.SetLanguage(tsLang)

	tsTree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, cserr.New(cserr.ErrCodeParseFailure,
			fmt.Sprintf("failed to parse %s source", language), err)
	}
	if tsTree == nil {
		return nil, cserr.New(cserr.ErrCodeParseFailure,
			fmt.Sprintf("parser produced no tree for %s source", language), nil)
	}

	return &Tree{
		Root:     convertNode(tsTree.RootNode()),
		Source:   source,
		Language: language,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	if p.parser != nil {
		p.parser.Close()
	}
}

// convertNode converts a tree-sitter node into our tree representation.
func convertNode(tsNode *sitter.Node) *Node {
	if tsNode == nil {
		return nil
	}

	node := &Node{
		Type:      tsNode.Type(),
		StartByte: tsNode.StartByte(),
		EndByte:   tsNode.EndByte(),
		StartPoint: Point{
			Row:    tsNode.StartPoint().Row,
			Column: tsNode.StartPoint().Column,
		},
		EndPoint: Point{
			Row:    tsNode.EndPoint().Row,
			Column: tsNode.EndPoint().Column,
		},
		HasError: tsNode.HasError(),
		Children: make([]*Node, 0, int(tsNode.ChildCount())),
	}

	for i := uint32(0); i < tsNode.ChildCount(); i++ {
		if child := tsNode.Child(int(i)); child != nil {
			node.Children = append(node.Children, convertNode(child))
		}
	}

	return node
}

// Content returns the source content covered by the node.
func (n *Node) Content(source []byte) string {
	if n.StartByte >= n.EndByte || int(n.EndByte) > len(source) {
		return ""
	}
	return string(source[n.StartByte:n.EndByte])
}

// FindChildByType returns the first direct child with the given type.
func (n *Node) FindChildByType(nodeType string) *Node {
	for _, child := range n.Children {
		if child.Type == nodeType {
			return child
		}
	}
	return nil
}

// Walk traverses the tree depth-first and calls fn for each node.
// Returning false from fn stops descent into that node's children.
func (n *Node) Walk(fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, child := range n.Children {
		child.Walk(fn)
	}
}
