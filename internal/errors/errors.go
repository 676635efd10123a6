// Package errors provides error formatting for the Ember toolchain.
// It renders errors with a kind label, source position, and a snippet of the
// offending line with a caret pointing at the error column.
package errors

import (
	"fmt"
	"strings"

	"github.com/sger/ember/internal/lexer"
)

// SourceError is an error bound to a location in a source file, carrying
// enough context to render a caret-underlined snippet.
type SourceError struct {
	Label   string // error band, e.g. "ParseError" or "RuntimeError"
	Message string
	Source  string // full source text of the file, may be empty
	File    string
	Pos     lexer.Position
}

// NewSourceError creates a source error. The file name is taken from the
// position when set, falling back to the file argument.
func NewSourceError(label string, pos lexer.Position, message, source, file string) *SourceError {
	if pos.File != "" {
		file = pos.File
	}
	return &SourceError{
		Label:   label,
		Message: message,
		Source:  source,
		File:    file,
		Pos:     pos,
	}
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return e.Format(false)
}

// Format renders the error with its source snippet.
// If color is true, ANSI color codes are used for terminal output.
func (e *SourceError) Format(color bool) string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(fmt.Sprintf("%s in %s:%d:%d\n", e.Label, e.File, e.Pos.Line, e.Pos.Column))
	} else {
		sb.WriteString(fmt.Sprintf("%s at line %d:%d\n", e.Label, e.Pos.Line, e.Pos.Column))
	}

	sourceLine := e.sourceLine(e.Pos.Line)
	if sourceLine != "" {
		lineNumStr := fmt.Sprintf("%4d | ", e.Pos.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(sourceLine)
		sb.WriteString("\n")

		caretCol := e.Pos.Column
		if caretCol < 1 {
			caretCol = 1
		}
		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+caretCol-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	return sb.String()
}

// sourceLine extracts a specific line from the source code. Lines are 1-indexed.
func (e *SourceError) sourceLine(lineNum int) string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return strings.TrimRight(lines[lineNum-1], "\r")
}
