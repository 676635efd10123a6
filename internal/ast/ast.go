// Package ast defines the abstract syntax tree for Ember programs.
//
// A parsed file is a flat sequence of top-level items: word definitions,
// module blocks, import and use directives, and immediate expressions.
// Expression bodies are themselves flat node sequences; the only nesting
// comes from quotation and list literals.
package ast

import (
	"strings"

	"github.com/sger/ember/internal/lexer"
)

// Node is implemented by every AST node.
type Node interface {
	Pos() lexer.Position
}

// IntLit is an integer literal.
type IntLit struct {
	Value    int64
	Position lexer.Position
}

func (n *IntLit) Pos() lexer.Position { return n.Position }

// FloatLit is a float literal.
type FloatLit struct {
	Value    float64
	Position lexer.Position
}

func (n *FloatLit) Pos() lexer.Position { return n.Position }

// BoolLit is a boolean literal.
type BoolLit struct {
	Value    bool
	Position lexer.Position
}

func (n *BoolLit) Pos() lexer.Position { return n.Position }

// StringLit is a string literal. Value holds the decoded content.
type StringLit struct {
	Value    string
	Position lexer.Position
}

func (n *StringLit) Pos() lexer.Position { return n.Position }

// Ident is a word reference, bare (dup) or qualified (Math.square).
type Ident struct {
	Name     string
	Position lexer.Position
}

func (n *Ident) Pos() lexer.Position { return n.Position }

// Qualified reports whether the reference names a module explicitly.
func (n *Ident) Qualified() bool {
	return strings.IndexByte(n.Name, '.') > 0
}

// ListLit is a { ... } list literal. Elements are restricted to literal
// values (integer, float, string, boolean, nested list) by the parser.
type ListLit struct {
	Elements []Node
	Position lexer.Position
}

func (n *ListLit) Pos() lexer.Position { return n.Position }

// QuotLit is a [ ... ] quotation literal holding an arbitrary body.
type QuotLit struct {
	Body     []Node
	Position lexer.Position
}

func (n *QuotLit) Pos() lexer.Position { return n.Position }

// WordDef is a def NAME body... end word definition.
type WordDef struct {
	Name     string
	Body     []Node
	Position lexer.Position
}

func (n *WordDef) Pos() lexer.Position { return n.Position }

// ModuleBlock is a module NAME decl* end block. Modules contain only word
// definitions and do not nest.
type ModuleBlock struct {
	Name     string
	Defs     []*WordDef
	Position lexer.Position
}

func (n *ModuleBlock) Pos() lexer.Position { return n.Position }

// ImportDecl records a relative path to load.
type ImportDecl struct {
	Path     string
	Position lexer.Position
}

func (n *ImportDecl) Pos() lexer.Position { return n.Position }

// UseDecl records alias requests for a module. Either Wildcard is set, or
// Names lists the short names to alias.
type UseDecl struct {
	Module   string
	Names    []string
	Wildcard bool
	Position lexer.Position
}

func (n *UseDecl) Pos() lexer.Position { return n.Position }

// File is the parse result for one source file.
type File struct {
	// Items holds the top-level items in source order.
	Items []Node
	// Name is the path the file was parsed from, as given to the lexer.
	Name string
}
