package bytecode

import (
	"fmt"

	"github.com/sger/ember/internal/lexer"
)

// PosInfo maps a range of instructions to a source position for error
// reporting. Uses run-length encoding to save memory: each entry covers all
// instructions from its offset up to the next entry.
type PosInfo struct {
	// InstructionOffset is the index of the first instruction covered.
	InstructionOffset int
	// Line and Column locate the source span, 1-based.
	Line   int
	Column int
}

// Chunk represents a compiled code object: an immutable instruction vector,
// its constant pool (including embedded quotation chunks), and a source
// position table. A chunk is the unit of bytecode dispatch - one word,
// quotation, or the program's main body.
type Chunk struct {
	Name      string
	File      string
	Code      []Instruction
	Constants []Value
	Positions []PosInfo
	// LocalCount is the number of frame-local slots the chunk needs.
	// Slots hold the hidden counters of lowered times loops.
	LocalCount int
}

// NewChunk creates a new empty bytecode chunk.
func NewChunk(name, file string) *Chunk {
	return &Chunk{
		Name:      name,
		File:      file,
		Code:      make([]Instruction, 0, 64),
		Constants: make([]Value, 0, 16),
		Positions: make([]PosInfo, 0, 16),
	}
}

// WriteInstruction appends an instruction to the chunk.
// Returns the index where the instruction was written.
func (c *Chunk) WriteInstruction(instruction Instruction, pos lexer.Position) int {
	index := len(c.Code)
	c.Code = append(c.Code, instruction)
	c.addPosInfo(index, pos)
	return index
}

// Write is a convenience method for writing an instruction with a B operand.
func (c *Chunk) Write(op OpCode, b uint16, pos lexer.Position) int {
	return c.WriteInstruction(MakeInstruction(op, 0, b), pos)
}

// WriteSimple is a convenience method for writing an instruction with no
// operands.
func (c *Chunk) WriteSimple(op OpCode, pos lexer.Position) int {
	return c.WriteInstruction(MakeSimpleInstruction(op), pos)
}

// AddConstant adds a constant to the constant pool and returns its index.
// Simple values are deduplicated; quotations are always appended, they
// compare by identity.
func (c *Chunk) AddConstant(value Value) int {
	switch value.Type {
	case ValueBool, ValueInt, ValueFloat, ValueString, ValueChar:
		for i, existing := range c.Constants {
			if existing.Type == value.Type && existing.Equal(value) {
				return i
			}
		}
	}
	index := len(c.Constants)
	c.Constants = append(c.Constants, value)
	return index
}

// GetConstant retrieves a constant by index.
func (c *Chunk) GetConstant(index int) Value {
	if index < 0 || index >= len(c.Constants) {
		return NilValue()
	}
	return c.Constants[index]
}

// addPosInfo records position information for an instruction.
// Only adds a new entry when the position changes.
func (c *Chunk) addPosInfo(instructionIndex int, pos lexer.Position) {
	if len(c.Positions) > 0 {
		last := c.Positions[len(c.Positions)-1]
		if last.Line == pos.Line && last.Column == pos.Column {
			return
		}
	}
	c.Positions = append(c.Positions, PosInfo{
		InstructionOffset: instructionIndex,
		Line:              pos.Line,
		Column:            pos.Column,
	})
}

// PosAt returns the source position recorded for the instruction index.
func (c *Chunk) PosAt(instructionIndex int) lexer.Position {
	pos := lexer.Position{File: c.File}
	if len(c.Positions) == 0 {
		return pos
	}

	// Binary search for the covering run-length entry.
	left, right := 0, len(c.Positions)-1
	for left <= right {
		mid := (left + right) / 2
		if c.Positions[mid].InstructionOffset <= instructionIndex {
			pos.Line = c.Positions[mid].Line
			pos.Column = c.Positions[mid].Column
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return pos
}

// EmitJump emits a jump instruction with a placeholder offset.
// Returns the index of the jump instruction for later patching.
func (c *Chunk) EmitJump(op OpCode, pos lexer.Position) int {
	return c.Write(op, 0xFFFF, pos)
}

// PatchJump patches a jump instruction to target the current end of code.
// Returns an error if the offset does not fit in a 16-bit signed offset.
func (c *Chunk) PatchJump(jumpInstruction int) error {
	// Offset is relative to the instruction after the jump.
	offset := len(c.Code) - jumpInstruction - 1
	if offset > 32767 || offset < -32768 {
		return fmt.Errorf("jump offset too large: %d", offset)
	}
	inst := c.Code[jumpInstruction]
	c.Code[jumpInstruction] = MakeInstruction(inst.OpCode(), inst.A(), uint16(offset))
	return nil
}

// EmitLoop emits a backward jump to loopStart.
// Returns an error if the offset is out of range.
func (c *Chunk) EmitLoop(loopStart int, pos lexer.Position) error {
	offset := len(c.Code) - loopStart + 1
	if offset > 32768 {
		return fmt.Errorf("loop body too large: %d instructions", offset)
	}
	c.Write(OpJump, uint16(-offset), pos)
	return nil
}

// InstructionCount returns the number of instructions in the chunk.
func (c *Chunk) InstructionCount() int {
	return len(c.Code)
}

// ConstantCount returns the number of constants in the constant pool.
func (c *Chunk) ConstantCount() int {
	return len(c.Constants)
}

// String returns a human-readable summary of the chunk.
func (c *Chunk) String() string {
	return fmt.Sprintf("Chunk '%s': %d instructions, %d constants, %d locals",
		c.Name, len(c.Code), len(c.Constants), c.LocalCount)
}

// Validate checks the chunk for basic structural correctness: constant
// references in range, jump targets strictly inside the instruction vector,
// local slots within LocalCount, and quotation constants present.
func (c *Chunk) Validate() error {
	for i, inst := range c.Code {
		switch inst.OpCode() {
		case OpPush, OpCallWord:
			if int(inst.B()) >= len(c.Constants) {
				return fmt.Errorf("instruction %d: constant index %d out of range (have %d constants)",
					i, inst.B(), len(c.Constants))
			}
		case OpPushQuot:
			idx := int(inst.B())
			if idx >= len(c.Constants) {
				return fmt.Errorf("instruction %d: constant index %d out of range (have %d constants)",
					i, idx, len(c.Constants))
			}
			if !c.Constants[idx].IsQuot() {
				return fmt.Errorf("instruction %d: PUSH_QUOT constant %d is not a quotation", i, idx)
			}
		case OpJump, OpJumpFalse:
			target := i + 1 + int(inst.SignedB())
			if target < 0 || target >= len(c.Code) {
				return fmt.Errorf("instruction %d: jump target %d outside code", i, target)
			}
		case OpLoadLocal, OpStoreLocal:
			if int(inst.B()) >= c.LocalCount {
				return fmt.Errorf("instruction %d: local slot %d out of range (have %d slots)",
					i, inst.B(), c.LocalCount)
			}
		}
	}

	for i, constant := range c.Constants {
		if inner := constant.AsQuot(); inner != nil {
			if err := inner.Validate(); err != nil {
				return fmt.Errorf("constant %d (%s): %w", i, inner.Name, err)
			}
		}
	}
	return nil
}
