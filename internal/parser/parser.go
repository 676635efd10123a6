// Package parser implements the recursive-descent parser for Ember.
//
// The grammar is flat: a file is a sequence of top-level items, and item
// bodies are sequences of expression nodes. There is no operator precedence
// to manage; the only recursion is through quotation and list literals and
// the def/module block structure.
package parser

import (
	"fmt"
	"strconv"

	"github.com/sger/ember/internal/ast"
	"github.com/sger/ember/internal/lexer"
)

// ErrorKind classifies parser failures.
type ErrorKind int

const (
	UnexpectedToken ErrorKind = iota
	UnexpectedEnd
	ExpectedName
	MismatchedBrackets
)

// errorKindNames maps error kinds to their display labels.
var errorKindNames = map[ErrorKind]string{
	UnexpectedToken:    "unexpected token",
	UnexpectedEnd:      "unexpected end of input",
	ExpectedName:       "expected name",
	MismatchedBrackets: "mismatched brackets",
}

// String returns the display label for the error kind.
func (k ErrorKind) String() string {
	if name, ok := errorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// ParseError reports a parse failure with its kind and source position.
type ParseError struct {
	Kind    ErrorKind
	Message string
	Pos     lexer.Position
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s: %s", e.Pos, e.Kind, e.Message)
}

// Parser consumes a token sequence and produces a sequence of top-level
// AST nodes.
type Parser struct {
	tokens []lexer.Token
	pos    int
	file   string
}

// New creates a parser over the given token sequence.
// The sequence must end with an EOF token, as produced by lexer.Tokenize.
func New(tokens []lexer.Token, file string) *Parser {
	return &Parser{tokens: tokens, file: file}
}

// Parse consumes the whole token sequence and returns the parsed file.
// Parsing stops at the first error.
func (p *Parser) Parse() (*ast.File, error) {
	f := &ast.File{Name: p.file}
	for p.cur().Type != lexer.EOF {
		item, err := p.parseTopLevel()
		if err != nil {
			return nil, err
		}
		f.Items = append(f.Items, item)
	}
	return f, nil
}

// cur returns the current token without consuming it.
func (p *Parser) cur() lexer.Token {
	if p.pos >= len(p.tokens) {
		// Tokenize always emits EOF; guard for hand-built sequences.
		return lexer.NewToken(lexer.EOF, "", lexer.Position{File: p.file})
	}
	return p.tokens[p.pos]
}

// advance consumes and returns the current token.
func (p *Parser) advance() lexer.Token {
	tok := p.cur()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// errorf builds a ParseError anchored at the given token.
func (p *Parser) errorf(kind ErrorKind, tok lexer.Token, format string, args ...any) *ParseError {
	return &ParseError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Pos:     tok.Pos,
	}
}

// parseTopLevel parses one top-level item.
func (p *Parser) parseTopLevel() (ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.DEF:
		return p.parseDef()
	case lexer.MODULE:
		return p.parseModule()
	case lexer.IMPORT:
		return p.parseImport()
	case lexer.USE:
		return p.parseUse()
	case lexer.END:
		return nil, p.errorf(UnexpectedToken, tok, "'end' without matching 'def' or 'module'")
	case lexer.RBRACK, lexer.RBRACE:
		return nil, p.errorf(MismatchedBrackets, tok, "unmatched %q", tok.Literal)
	default:
		return p.parseNode()
	}
}

// parseDef parses def NAME body... end.
// The body is a node sequence; nested def is disallowed.
func (p *Parser) parseDef() (*ast.WordDef, error) {
	defTok := p.advance() // consume 'def'

	nameTok := p.cur()
	if nameTok.Type != lexer.IDENT {
		return nil, p.errorf(ExpectedName, nameTok, "'def' requires a word name, got %s", nameTok.Type)
	}
	p.advance()

	var body []ast.Node
	for {
		switch p.cur().Type {
		case lexer.END:
			p.advance()
			return &ast.WordDef{Name: nameTok.Literal, Body: body, Position: defTok.Pos}, nil
		case lexer.EOF:
			return nil, p.errorf(UnexpectedEnd, p.cur(), "'def %s' is missing its 'end'", nameTok.Literal)
		case lexer.DEF:
			return nil, p.errorf(UnexpectedToken, p.cur(), "nested 'def' inside 'def %s'", nameTok.Literal)
		case lexer.MODULE, lexer.IMPORT, lexer.USE:
			return nil, p.errorf(UnexpectedToken, p.cur(), "%q is not allowed inside a word body", p.cur().Literal)
		default:
			node, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			body = append(body, node)
		}
	}
}

// parseModule parses module NAME decl* end.
// A module block contains only word definitions; modules do not nest.
func (p *Parser) parseModule() (*ast.ModuleBlock, error) {
	modTok := p.advance() // consume 'module'

	nameTok := p.cur()
	if nameTok.Type != lexer.IDENT {
		return nil, p.errorf(ExpectedName, nameTok, "'module' requires a module name, got %s", nameTok.Type)
	}
	p.advance()

	var defs []*ast.WordDef
	for {
		switch p.cur().Type {
		case lexer.END:
			p.advance()
			return &ast.ModuleBlock{Name: nameTok.Literal, Defs: defs, Position: modTok.Pos}, nil
		case lexer.EOF:
			return nil, p.errorf(UnexpectedEnd, p.cur(), "'module %s' is missing its 'end'", nameTok.Literal)
		case lexer.DEF:
			def, err := p.parseDef()
			if err != nil {
				return nil, err
			}
			defs = append(defs, def)
		case lexer.MODULE:
			return nil, p.errorf(UnexpectedToken, p.cur(), "modules do not nest")
		default:
			return nil, p.errorf(UnexpectedToken, p.cur(),
				"only word definitions are allowed inside 'module %s', got %s", nameTok.Literal, p.cur().Type)
		}
	}
}

// parseImport parses import STRING-OR-IDENT.
func (p *Parser) parseImport() (*ast.ImportDecl, error) {
	impTok := p.advance() // consume 'import'

	tok := p.cur()
	switch tok.Type {
	case lexer.STRING, lexer.IDENT, lexer.QUALIFIED_IDENT:
		p.advance()
		return &ast.ImportDecl{Path: tok.Literal, Position: impTok.Pos}, nil
	default:
		return nil, p.errorf(ExpectedName, tok, "'import' requires a path, got %s", tok.Type)
	}
}

// parseUse parses use MODULE name1 name2 ... with a sole * meaning wildcard.
// The name list extends over the following identifier tokens; it ends at the
// first token that is not a bare identifier.
func (p *Parser) parseUse() (*ast.UseDecl, error) {
	useTok := p.advance() // consume 'use'

	modTok := p.cur()
	if modTok.Type != lexer.IDENT {
		return nil, p.errorf(ExpectedName, modTok, "'use' requires a module name, got %s", modTok.Type)
	}
	p.advance()

	decl := &ast.UseDecl{Module: modTok.Literal, Position: useTok.Pos}
	for p.cur().Type == lexer.IDENT {
		decl.Names = append(decl.Names, p.advance().Literal)
	}
	if len(decl.Names) == 0 {
		return nil, p.errorf(ExpectedName, p.cur(), "'use %s' requires at least one name or *", modTok.Literal)
	}
	if len(decl.Names) == 1 && decl.Names[0] == "*" {
		decl.Names = nil
		decl.Wildcard = true
	}
	return decl, nil
}

// parseNode parses one expression-level node.
func (p *Parser) parseNode() (ast.Node, error) {
	tok := p.cur()
	switch tok.Type {
	case lexer.INT:
		p.advance()
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, p.errorf(UnexpectedToken, tok, "invalid integer literal %q", tok.Literal)
		}
		return &ast.IntLit{Value: v, Position: tok.Pos}, nil
	case lexer.FLOAT:
		p.advance()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, p.errorf(UnexpectedToken, tok, "invalid float literal %q", tok.Literal)
		}
		return &ast.FloatLit{Value: v, Position: tok.Pos}, nil
	case lexer.STRING:
		p.advance()
		return &ast.StringLit{Value: tok.Literal, Position: tok.Pos}, nil
	case lexer.TRUE, lexer.FALSE:
		p.advance()
		return &ast.BoolLit{Value: tok.Type == lexer.TRUE, Position: tok.Pos}, nil
	case lexer.IDENT, lexer.QUALIFIED_IDENT:
		p.advance()
		return &ast.Ident{Name: tok.Literal, Position: tok.Pos}, nil
	case lexer.LBRACK:
		return p.parseQuotation()
	case lexer.LBRACE:
		return p.parseList()
	case lexer.RBRACK, lexer.RBRACE:
		return nil, p.errorf(MismatchedBrackets, tok, "unmatched %q", tok.Literal)
	case lexer.EOF:
		return nil, p.errorf(UnexpectedEnd, tok, "expected an expression")
	default:
		return nil, p.errorf(UnexpectedToken, tok, "%q cannot start an expression", tok.Literal)
	}
}

// parseQuotation parses [ body... ]. The body is any node sequence.
func (p *Parser) parseQuotation() (*ast.QuotLit, error) {
	openTok := p.advance() // consume '['

	var body []ast.Node
	for {
		switch p.cur().Type {
		case lexer.RBRACK:
			p.advance()
			return &ast.QuotLit{Body: body, Position: openTok.Pos}, nil
		case lexer.EOF:
			return nil, p.errorf(MismatchedBrackets, openTok, "'[' is never closed")
		case lexer.DEF, lexer.MODULE, lexer.IMPORT, lexer.USE, lexer.END:
			return nil, p.errorf(UnexpectedToken, p.cur(), "%q is not allowed inside a quotation", p.cur().Literal)
		default:
			node, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			body = append(body, node)
		}
	}
}

// parseList parses { value... }. Every element must be a literal value:
// integer, float, string, boolean, or nested list.
func (p *Parser) parseList() (*ast.ListLit, error) {
	openTok := p.advance() // consume '{'

	var elems []ast.Node
	for {
		tok := p.cur()
		switch tok.Type {
		case lexer.RBRACE:
			p.advance()
			return &ast.ListLit{Elements: elems, Position: openTok.Pos}, nil
		case lexer.EOF:
			return nil, p.errorf(MismatchedBrackets, openTok, "'{' is never closed")
		case lexer.INT, lexer.FLOAT, lexer.STRING, lexer.TRUE, lexer.FALSE, lexer.LBRACE:
			node, err := p.parseNode()
			if err != nil {
				return nil, err
			}
			elems = append(elems, node)
		default:
			return nil, p.errorf(UnexpectedToken, tok,
				"list literals may only contain literal values, got %s", tok.Type)
		}
	}
}
