package lexer

import "fmt"

// TokenType represents the type of a token in Ember source code.
type TokenType int

// Token type constants organized by category.
const (
	// Special tokens
	ILLEGAL TokenType = iota // Unexpected character
	EOF                      // End of file

	// Literals
	INT    // integer literals: 42, -17
	FLOAT  // float literals: 3.14, -0.5
	STRING // string literals: "hello"
	TRUE   // true boolean literal
	FALSE  // false boolean literal

	// Identifiers
	IDENT           // bare words: dup, fizz?, square-and-double
	QUALIFIED_IDENT // dotted words: Math.square

	// Delimiters
	LBRACE // { begins a list literal
	RBRACE // } ends a list literal
	LBRACK // [ begins a quotation
	RBRACK // ] ends a quotation

	// Keywords
	DEF    // def
	END    // end
	MODULE // module
	IMPORT // import
	USE    // use
)

// tokenTypeNames maps token types to their display names.
var tokenTypeNames = map[TokenType]string{
	ILLEGAL:         "ILLEGAL",
	EOF:             "EOF",
	INT:             "INT",
	FLOAT:           "FLOAT",
	STRING:          "STRING",
	TRUE:            "TRUE",
	FALSE:           "FALSE",
	IDENT:           "IDENT",
	QUALIFIED_IDENT: "QUALIFIED_IDENT",
	LBRACE:          "{",
	RBRACE:          "}",
	LBRACK:          "[",
	RBRACK:          "]",
	DEF:             "def",
	END:             "end",
	MODULE:          "module",
	IMPORT:          "import",
	USE:             "use",
}

// String returns the display name of the token type.
func (tt TokenType) String() string {
	if name, ok := tokenTypeNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// keywords maps reserved word literals to their token types.
var keywords = map[string]TokenType{
	"def":    DEF,
	"end":    END,
	"module": MODULE,
	"import": IMPORT,
	"use":    USE,
	"true":   TRUE,
	"false":  FALSE,
}

// LookupWord returns the keyword token type for a word, or IDENT if the word
// is not reserved.
func LookupWord(word string) TokenType {
	if tt, ok := keywords[word]; ok {
		return tt
	}
	return IDENT
}

// Position identifies a location in a source file.
// Column counts runes from the start of the line, 1-based.
type Position struct {
	File   string
	Line   int
	Column int
	Offset int
}

// String formats the position as file:line:column.
func (p Position) String() string {
	if p.File != "" {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token is a single lexical token with its source position.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position
}

// NewToken creates a token with the given type, literal and position.
func NewToken(tokenType TokenType, literal string, pos Position) Token {
	return Token{Type: tokenType, Literal: literal, Pos: pos}
}

// LexError reports a lexical error with its source position.
type LexError struct {
	Message string
	Pos     Position
}

// Error implements the error interface.
func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Message)
}
