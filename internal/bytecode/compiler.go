package bytecode

import (
	"fmt"
	"sort"

	"github.com/sger/ember/internal/ast"
	"github.com/sger/ember/internal/lexer"
	"github.com/sger/ember/internal/loader"
)

// CompileError reports a reference to a word that resolves neither to a
// user definition nor to a built-in.
type CompileError struct {
	Name string
	Pos  lexer.Position
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error at %s: undefined word %q", e.Pos, e.Name)
}

// Compiler lowers the loader's word table and root expressions into a linked
// bytecode program.
//
// Identifier resolution order: built-in table, word table as written, alias
// table, same-module lookup. Literal quotations immediately followed by the
// if, when or times combinators are lowered to inline code with conditional
// and unconditional jumps; dynamically supplied quotations go through the
// runtime combinator opcodes with identical observable behavior.
type Compiler struct {
	words   map[string]*loader.Word
	aliases map[string]string
}

// NewCompiler creates a compiler over the loader's accumulated tables.
func NewCompiler(result *loader.Result) *Compiler {
	return &Compiler{
		words:   result.Words,
		aliases: result.Aliases,
	}
}

// Compile is a convenience wrapper: compile the loader result into a program.
func Compile(result *loader.Result) (*Program, error) {
	return NewCompiler(result).Compile(result.Exprs, result.Root)
}

// Compile lowers every word plus the given root expressions and returns the
// linked program.
func (c *Compiler) Compile(rootExprs []ast.Node, rootFile string) (*Program, error) {
	main, err := c.compileChunk("main", rootFile, "", rootExprs, lexer.Position{File: rootFile, Line: 1, Column: 1})
	if err != nil {
		return nil, err
	}
	program := NewProgram(main)

	// Deterministic compile order keeps constant pools and disassembly
	// stable across runs.
	names := make([]string, 0, len(c.words))
	for name := range c.words {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		word := c.words[name]
		chunk, err := c.compileChunk(name, word.Origin.File, word.Module, word.Body, word.Origin)
		if err != nil {
			return nil, err
		}
		program.Words[name] = chunk
	}
	return program, nil
}

// compileChunk compiles a node sequence into a fresh chunk ending with an
// implicit RETURN. The module name scopes same-module identifier lookup.
func (c *Compiler) compileChunk(name, file, module string, body []ast.Node, origin lexer.Position) (*Chunk, error) {
	chunk := NewChunk(name, file)
	if err := c.compileBody(chunk, module, body); err != nil {
		return nil, err
	}
	endPos := origin
	if len(body) > 0 {
		endPos = body[len(body)-1].Pos()
	}
	chunk.WriteSimple(OpReturn, endPos)
	return chunk, nil
}

// compileBody emits instructions for a node sequence, recognizing the
// quotation-literal combinator patterns as it goes.
func (c *Compiler) compileBody(chunk *Chunk, module string, nodes []ast.Node) error {
	for i := 0; i < len(nodes); {
		consumed, err := c.matchCombinator(chunk, module, nodes, i)
		if err != nil {
			return err
		}
		if consumed > 0 {
			i += consumed
			continue
		}
		if err := c.compileNode(chunk, module, nodes[i]); err != nil {
			return err
		}
		i++
	}
	return nil
}

// matchCombinator attempts the peephole lowering of literal quotations
// followed by if, when or times. It returns the number of nodes consumed,
// zero when no pattern starts at i.
func (c *Compiler) matchCombinator(chunk *Chunk, module string, nodes []ast.Node, i int) (int, error) {
	quot, ok := nodes[i].(*ast.QuotLit)
	if !ok {
		return 0, nil
	}

	// [then] [else] if
	if i+2 < len(nodes) {
		if quot2, ok := nodes[i+1].(*ast.QuotLit); ok {
			if ident, ok := nodes[i+2].(*ast.Ident); ok && ident.Name == "if" {
				return 3, c.lowerIf(chunk, module, quot, quot2, ident.Pos())
			}
		}
	}

	if i+1 < len(nodes) {
		if ident, ok := nodes[i+1].(*ast.Ident); ok {
			switch ident.Name {
			case "when":
				return 2, c.lowerWhen(chunk, module, quot, ident.Pos())
			case "times":
				return 2, c.lowerTimes(chunk, module, quot, ident.Pos())
			}
		}
	}
	return 0, nil
}

// lowerIf inlines [then] [else] if as a conditional jump over the branches.
// The condition is already on the stack when control reaches the lowered code.
func (c *Compiler) lowerIf(chunk *Chunk, module string, thenQ, elseQ *ast.QuotLit, pos lexer.Position) error {
	jumpElse := chunk.EmitJump(OpJumpFalse, pos)
	if err := c.compileBody(chunk, module, thenQ.Body); err != nil {
		return err
	}
	jumpEnd := chunk.EmitJump(OpJump, pos)
	if err := chunk.PatchJump(jumpElse); err != nil {
		return err
	}
	if err := c.compileBody(chunk, module, elseQ.Body); err != nil {
		return err
	}
	return chunk.PatchJump(jumpEnd)
}

// lowerWhen inlines [body] when as a jump over the body.
func (c *Compiler) lowerWhen(chunk *Chunk, module string, bodyQ *ast.QuotLit, pos lexer.Position) error {
	jumpEnd := chunk.EmitJump(OpJumpFalse, pos)
	if err := c.compileBody(chunk, module, bodyQ.Body); err != nil {
		return err
	}
	return chunk.PatchJump(jumpEnd)
}

// lowerTimes inlines n [body] times as a counted loop. The count is moved
// into a hidden frame-local slot so the body never sees it on the stack.
func (c *Compiler) lowerTimes(chunk *Chunk, module string, bodyQ *ast.QuotLit, pos lexer.Position) error {
	slot := chunk.LocalCount
	if slot > 0xFFFF {
		return fmt.Errorf("too many nested times loops in %s", chunk.Name)
	}
	chunk.LocalCount++

	zero := uint16(chunk.AddConstant(IntValue(0)))
	one := uint16(chunk.AddConstant(IntValue(1)))

	chunk.Write(OpStoreLocal, uint16(slot), pos)
	loopStart := len(chunk.Code)
	chunk.Write(OpLoadLocal, uint16(slot), pos)
	chunk.Write(OpPush, zero, pos)
	chunk.WriteSimple(OpGt, pos)
	jumpEnd := chunk.EmitJump(OpJumpFalse, pos)

	if err := c.compileBody(chunk, module, bodyQ.Body); err != nil {
		return err
	}

	chunk.Write(OpLoadLocal, uint16(slot), pos)
	chunk.Write(OpPush, one, pos)
	chunk.WriteSimple(OpSub, pos)
	chunk.Write(OpStoreLocal, uint16(slot), pos)
	if err := chunk.EmitLoop(loopStart, pos); err != nil {
		return err
	}
	return chunk.PatchJump(jumpEnd)
}

// compileNode emits the instructions for a single node.
func (c *Compiler) compileNode(chunk *Chunk, module string, node ast.Node) error {
	switch n := node.(type) {
	case *ast.IntLit:
		return c.emitConstant(chunk, IntValue(n.Value), n.Position)
	case *ast.FloatLit:
		return c.emitConstant(chunk, FloatValue(n.Value), n.Position)
	case *ast.BoolLit:
		return c.emitConstant(chunk, BoolValue(n.Value), n.Position)
	case *ast.StringLit:
		return c.emitConstant(chunk, StringValue(n.Value), n.Position)
	case *ast.ListLit:
		value, err := constantValue(n)
		if err != nil {
			return err
		}
		return c.emitConstant(chunk, value, n.Position)
	case *ast.QuotLit:
		return c.compileQuotation(chunk, module, n)
	case *ast.Ident:
		return c.resolveIdent(chunk, module, n)
	default:
		return fmt.Errorf("cannot compile %T at %s", node, node.Pos())
	}
}

// emitConstant adds the value to the constant pool and pushes it.
func (c *Compiler) emitConstant(chunk *Chunk, value Value, pos lexer.Position) error {
	idx := chunk.AddConstant(value)
	if idx > 0xFFFF {
		return fmt.Errorf("too many constants in %s", chunk.Name)
	}
	chunk.Write(OpPush, uint16(idx), pos)
	return nil
}

// compileQuotation compiles a quotation body to an embedded chunk and pushes
// a reference to it.
func (c *Compiler) compileQuotation(chunk *Chunk, module string, n *ast.QuotLit) error {
	name := fmt.Sprintf("%s#%d", chunk.Name, chunk.ConstantCount())
	inner, err := c.compileChunk(name, chunk.File, module, n.Body, n.Position)
	if err != nil {
		return err
	}
	idx := chunk.AddConstant(QuotValue(inner))
	if idx > 0xFFFF {
		return fmt.Errorf("too many constants in %s", chunk.Name)
	}
	chunk.Write(OpPushQuot, uint16(idx), n.Position)
	return nil
}

// resolveIdent resolves a word reference and emits the call.
func (c *Compiler) resolveIdent(chunk *Chunk, module string, n *ast.Ident) error {
	if op, ok := BuiltinOp(n.Name); ok {
		chunk.WriteSimple(op, n.Position)
		return nil
	}
	if _, ok := c.words[n.Name]; ok {
		return c.emitCallWord(chunk, n.Name, n.Position)
	}
	if !n.Qualified() {
		if qualified, ok := c.aliases[n.Name]; ok {
			if _, defined := c.words[qualified]; defined {
				return c.emitCallWord(chunk, qualified, n.Position)
			}
			return &CompileError{Name: qualified, Pos: n.Position}
		}
		if module != "" {
			qualified := module + "." + n.Name
			if _, ok := c.words[qualified]; ok {
				return c.emitCallWord(chunk, qualified, n.Position)
			}
		}
	}
	return &CompileError{Name: n.Name, Pos: n.Position}
}

// emitCallWord pushes the qualified name into the constant pool and emits
// the call instruction.
func (c *Compiler) emitCallWord(chunk *Chunk, qualified string, pos lexer.Position) error {
	idx := chunk.AddConstant(StringValue(qualified))
	if idx > 0xFFFF {
		return fmt.Errorf("too many constants in %s", chunk.Name)
	}
	chunk.Write(OpCallWord, uint16(idx), pos)
	return nil
}

// constantValue converts a literal AST node into a runtime value.
// The parser guarantees list elements are literal, so this cannot encounter
// identifiers or quotations.
func constantValue(node ast.Node) (Value, error) {
	switch n := node.(type) {
	case *ast.IntLit:
		return IntValue(n.Value), nil
	case *ast.FloatLit:
		return FloatValue(n.Value), nil
	case *ast.BoolLit:
		return BoolValue(n.Value), nil
	case *ast.StringLit:
		return StringValue(n.Value), nil
	case *ast.ListLit:
		elems := make([]Value, 0, len(n.Elements))
		for _, e := range n.Elements {
			v, err := constantValue(e)
			if err != nil {
				return NilValue(), err
			}
			elems = append(elems, v)
		}
		return ListValue(NewListInstance(elems)), nil
	default:
		return NilValue(), fmt.Errorf("non-literal value in list literal at %s", node.Pos())
	}
}
