package bytecode

import (
	"fmt"
	"strings"

	"github.com/sger/ember/internal/lexer"
)

// RuntimeErrorKind classifies fatal VM errors.
type RuntimeErrorKind int

const (
	StackUnderflow RuntimeErrorKind = iota
	TypeError
	DivisionByZero
	IndexOutOfBounds
	EmptyListHeadOrTail
	UndefinedWord
	CallStackOverflow
)

// runtimeErrorKindNames maps error kinds to their display labels.
var runtimeErrorKindNames = map[RuntimeErrorKind]string{
	StackUnderflow:      "StackUnderflow",
	TypeError:           "TypeError",
	DivisionByZero:      "DivisionByZero",
	IndexOutOfBounds:    "IndexOutOfBounds",
	EmptyListHeadOrTail: "EmptyListHeadOrTail",
	UndefinedWord:       "UndefinedWord",
	CallStackOverflow:   "CallStackOverflow",
}

// String returns the display label for the error kind.
func (k RuntimeErrorKind) String() string {
	if name, ok := runtimeErrorKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("RuntimeErrorKind(%d)", int(k))
}

// RuntimeError represents an error that occurred while executing bytecode.
// It carries the offending instruction's recorded source position and a
// snapshot of the top of the value stack at the time of failure. Runtime
// errors are fatal; Ember has no catch mechanism.
type RuntimeError struct {
	Kind     RuntimeErrorKind
	Message  string
	Pos      lexer.Position
	StackTop []Value
}

// Error implements the error interface.
func (r *RuntimeError) Error() string {
	if r == nil {
		return "<nil>"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s", r.Kind, r.Message)
	if r.Pos.Line > 0 {
		fmt.Fprintf(&sb, " at %s", r.Pos)
	}
	if len(r.StackTop) > 0 {
		parts := make([]string, len(r.StackTop))
		for i, v := range r.StackTop {
			parts[i] = v.String()
		}
		fmt.Fprintf(&sb, "\nstack top: %s", strings.Join(parts, " "))
	}
	return sb.String()
}
